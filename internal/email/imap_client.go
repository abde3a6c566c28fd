package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/config"
)

// IMAPClient wraps an IMAP client connection bound to one folder
type IMAPClient struct {
	config    *config.AccountConfig
	client    *client.Client
	logger    *logrus.Logger
	connected bool
	selected  bool
}

// NewIMAPClient creates a new IMAP client (does not connect immediately)
func NewIMAPClient(cfg *config.AccountConfig, logger *logrus.Logger) *IMAPClient {
	return &IMAPClient{
		config: cfg,
		logger: logger,
	}
}

// Connect establishes a connection to the IMAP server
func (c *IMAPClient) Connect() error {
	if c.connected && c.client != nil {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", c.config.IMAPHost, c.config.IMAPPort)

	cl, err := client.DialTLS(addr, &tls.Config{
		ServerName: c.config.IMAPHost,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	c.client = cl

	if err := c.client.Login(c.config.IMAPUsername, c.config.IMAPPassword); err != nil {
		c.logger.WithError(err).Error("Failed to login to IMAP server")
		c.client.Logout() //nolint:errcheck
		c.client = nil
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	c.connected = true
	c.logger.WithField("host", c.config.IMAPHost).Debug("Connected to IMAP server")
	return nil
}

// selectFolder connects and opens the configured folder read-write.
func (c *IMAPClient) selectFolder(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Connect(); err != nil {
		return err
	}
	if c.selected {
		return nil
	}

	if _, err := c.client.Select(c.config.IMAPFolder, false); err != nil {
		c.drop()
		return fmt.Errorf("failed to select folder: %w", err)
	}
	c.selected = true
	return nil
}

// Unseen returns the UIDs of messages without the \Seen flag, oldest first.
func (c *IMAPClient) Unseen(ctx context.Context) ([]uint32, error) {
	if err := c.selectFolder(ctx); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		c.drop()
		return nil, fmt.Errorf("failed to search unseen: %w", err)
	}

	return uids, nil
}

// Fetch returns the raw RFC 822 bytes of a message. It uses BODY.PEEK[] so
// the server does not set \Seen.
func (c *IMAPClient) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	if err := c.selectFolder(ctx); err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		for _, literal := range msg.Body {
			if literal == nil {
				continue
			}
			body, err := io.ReadAll(literal)
			if err != nil {
				c.logger.WithError(err).WithField("uid", uid).Warn("Error reading literal")
				continue
			}
			if len(body) > 0 && raw == nil {
				raw = body
			}
		}
	}

	if err := <-done; err != nil {
		c.drop()
		return nil, fmt.Errorf("failed to fetch message %d: %w", uid, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body", uid)
	}

	return raw, nil
}

// MarkSeen sets \Seen on a message.
func (c *IMAPClient) MarkSeen(ctx context.Context, uid uint32) error {
	if err := c.selectFolder(ctx); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		c.drop()
		return fmt.Errorf("failed to mark message %d seen: %w", uid, err)
	}
	return nil
}

// Close logs out. The next call reconnects.
func (c *IMAPClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout()
	c.client = nil
	c.connected = false
	c.selected = false
	return err
}

// drop discards a connection that failed mid-command.
func (c *IMAPClient) drop() {
	if c.client != nil {
		c.client.Logout() //nolint:errcheck
	}
	c.client = nil
	c.connected = false
	c.selected = false
}
