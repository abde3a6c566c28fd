package email

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/config"
	"github.com/brandon/persona-responder/pkg/types"
)

// Manager manages the service account's mail operations: it reads the
// mailbox over IMAP and delivers replies over SMTP.
type Manager struct {
	imap   *IMAPClient
	smtp   *SMTPClient
	logger *logrus.Logger
}

// NewManager creates a new email manager
func NewManager(cfg *config.AccountConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		imap:   NewIMAPClient(cfg, logger),
		smtp:   NewSMTPClient(cfg, logger),
		logger: logger,
	}
}

// Unseen lists unseen message UIDs
func (m *Manager) Unseen(ctx context.Context) ([]uint32, error) {
	return m.imap.Unseen(ctx)
}

// Fetch returns a message's raw bytes without marking it seen
func (m *Manager) Fetch(ctx context.Context, uid uint32) ([]byte, error) {
	return m.imap.Fetch(ctx, uid)
}

// MarkSeen flags a message as seen
func (m *Manager) MarkSeen(ctx context.Context, uid uint32) error {
	return m.imap.MarkSeen(ctx, uid)
}

// Send delivers a reply
func (m *Manager) Send(ctx context.Context, msg *types.OutboundMessage) error {
	if err := m.smtp.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Close closes the IMAP session
func (m *Manager) Close() error {
	return m.imap.Close()
}
