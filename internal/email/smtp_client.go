package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"maps"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/config"
	"github.com/brandon/persona-responder/pkg/types"
)

// SMTPClient wraps an SMTP client
type SMTPClient struct {
	config *config.AccountConfig
	logger *logrus.Logger
}

// NewSMTPClient creates a new SMTP client
func NewSMTPClient(cfg *config.AccountConfig, logger *logrus.Logger) *SMTPClient {
	return &SMTPClient{
		config: cfg,
		logger: logger,
	}
}

// Send delivers msg. The session authenticates as the service account but
// the envelope sender is the persona address in msg.FromAddress.
func (c *SMTPClient) Send(ctx context.Context, msg *types.OutboundMessage) error {
	emailBytes, err := createMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return c.deliver(client, msg, emailBytes)
}

// deliver runs the mail transaction on an open session. Once the server has
// accepted the DATA payload the message is queued, so a failed QUIT is not a
// failed send.
func (c *SMTPClient) deliver(client *smtp.Client, msg *types.OutboundMessage, payload []byte) error {
	if c.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", c.config.SMTPUsername, c.config.SMTPPassword, c.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(msg.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send data command: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	log := c.logger.WithFields(logrus.Fields{
		"from":       msg.FromAddress,
		"to":         msg.To,
		"message_id": msg.MessageID,
	})
	log.Debug("SMTP delivery accepted")

	if err := client.Quit(); err != nil {
		log.WithError(err).Warn("SMTP QUIT failed after message was accepted")
	}
	return nil
}

// dial opens the session: implicit TLS on port 465, STARTTLS otherwise.
func (c *SMTPClient) dial(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.config.SMTPHost, c.config.SMTPPort)
	tlsConfig := &tls.Config{
		ServerName: c.config.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}

	var (
		conn net.Conn
		err  error
	)
	if c.config.SMTPPort == 465 {
		dialer := &tls.Dialer{Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline) //nolint:errcheck
	}

	client, err := smtp.NewClient(conn, c.config.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if c.config.SMTPPort != 465 {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	return client, nil
}

// createMessage renders msg as a plain-text RFC 5322 message
func createMessage(msg *types.OutboundMessage) ([]byte, error) {
	if msg.FromAddress == "" || msg.To == "" {
		return nil, fmt.Errorf("sender and recipient are required")
	}

	var buf bytes.Buffer

	from := &mail.Address{Name: msg.FromName, Address: msg.FromAddress}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	writeHeader(&buf, "From", from.String())
	writeHeader(&buf, "To", msg.To)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	if msg.MessageID != "" {
		writeHeader(&buf, "Message-ID", msg.MessageID)
	}
	if msg.InReplyTo != "" {
		writeHeader(&buf, "In-Reply-To", msg.InReplyTo)
	}
	if msg.References != "" {
		writeHeader(&buf, "References", msg.References)
	}
	for _, name := range slices.Sorted(maps.Keys(msg.Headers)) {
		writeHeader(&buf, name, msg.Headers[name])
	}
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
	writeHeader(&buf, "Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	// Header values must not smuggle extra lines.
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	fmt.Fprintf(buf, "%s: %s\r\n", name, value)
}
