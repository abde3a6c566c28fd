package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/memory"
)

// ErrNotFound is returned by a Backend that has never been written.
var ErrNotFound = errors.New("state not found")

// Backend reads and writes the whole persisted record.
type Backend interface {
	Read(ctx context.Context) (*State, error)
	Write(ctx context.Context, s *State) error
	Close() error
}

// Policy bounds how much state survives a save.
type Policy struct {
	HandledCap            int
	SendLogRetention      time.Duration
	ConversationRetention time.Duration
}

// DefaultPolicy returns the stock retention limits.
func DefaultPolicy() Policy {
	return Policy{
		HandledCap:            1000,
		SendLogRetention:      24 * time.Hour,
		ConversationRetention: memory.DefaultRetention,
	}
}

// Store is the single writer of persisted state.
type Store struct {
	backend Backend
	policy  Policy
	logger  *logrus.Logger
	now     func() time.Time
}

// NewStore creates a store over backend
func NewStore(backend Backend, policy Policy, logger *logrus.Logger) *Store {
	return &Store{
		backend: backend,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source used for compaction.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Load returns the persisted state. A missing or unreadable record yields an
// empty state rather than an error.
func (s *Store) Load(ctx context.Context) *State {
	st, err := s.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("No persisted state, starting empty")
		} else {
			s.logger.WithError(err).Warn("Failed to read state, starting empty")
		}
		return New()
	}
	st.ensure()
	return st
}

// Save compacts st and writes it.
func (s *Store) Save(ctx context.Context, st *State) error {
	Compact(st, s.now(), s.policy)
	if err := s.backend.Write(ctx, st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Compact applies policy to st in place: the handled list is cut to the newest
// HandledCap entries, send events older than SendLogRetention are dropped and
// stale conversations are pruned.
func Compact(st *State, now time.Time, policy Policy) {
	st.ensure()

	if policy.HandledCap > 0 && len(st.HandledIDs) > policy.HandledCap {
		st.HandledIDs = append([]string(nil), st.HandledIDs[len(st.HandledIDs)-policy.HandledCap:]...)
	}

	if policy.SendLogRetention > 0 {
		cutoff := now.Add(-policy.SendLogRetention)
		kept := make([]SendEvent, 0, len(st.SendLog))
		for _, ev := range st.SendLog {
			if ev.Time.After(cutoff) {
				kept = append(kept, ev)
			}
		}
		st.SendLog = kept
	}

	if policy.ConversationRetention > 0 {
		st.Conversations.Prune(now.Add(-policy.ConversationRetention))
	}
}
