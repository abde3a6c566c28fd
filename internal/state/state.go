// Package state owns the responder's durable loop-prevention state: the set of
// handled message IDs, the send log used for rate accounting, and the
// conversation book.
package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/brandon/persona-responder/internal/memory"
)

// SendEvent records one delivered reply.
type SendEvent struct {
	Time      time.Time `json:"time"`
	Sender    string    `json:"sender"`
	MessageID string    `json:"message_id"`
}

// naiveISO is the zone-less timestamp layout found in older state files; such
// values are UTC.
const naiveISO = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON accepts RFC 3339 and zone-less timestamps.
func (e *SendEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time      string `json:"time"`
		Sender    string `json:"sender"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t, err := time.Parse(time.RFC3339Nano, raw.Time)
	if err != nil {
		t, err = time.ParseInLocation(naiveISO, raw.Time, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid send event time %q: %w", raw.Time, err)
		}
	}

	e.Time = t.UTC()
	e.Sender = raw.Sender
	e.MessageID = raw.MessageID
	return nil
}

// State is the in-memory image of the persisted record. It is not safe for
// concurrent use; the responder mutates it from a single goroutine.
type State struct {
	HandledIDs    []string    `json:"replied_ids"`
	SendLog       []SendEvent `json:"reply_log"`
	Conversations memory.Book `json:"conversations"`
}

// New returns an empty state.
func New() *State {
	return &State{
		HandledIDs:    []string{},
		SendLog:       []SendEvent{},
		Conversations: memory.Book{},
	}
}

// HasHandled reports whether id was already answered.
func (s *State) HasHandled(id string) bool {
	if id == "" {
		return false
	}
	return slices.Contains(s.HandledIDs, id)
}

// MarkHandled remembers id as answered. Empty IDs are ignored.
func (s *State) MarkHandled(id string) {
	if id == "" || s.HasHandled(id) {
		return
	}
	s.HandledIDs = append(s.HandledIDs, id)
}

// RecordSend appends a send event.
func (s *State) RecordSend(ev SendEvent) {
	ev.Time = ev.Time.UTC()
	s.SendLog = append(s.SendLog, ev)
}

// SendsSince returns the send events at or after since.
func (s *State) SendsSince(since time.Time) []SendEvent {
	var out []SendEvent
	for _, ev := range s.SendLog {
		if !ev.Time.Before(since) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *State) ensure() {
	if s.HandledIDs == nil {
		s.HandledIDs = []string{}
	}
	if s.SendLog == nil {
		s.SendLog = []SendEvent{}
	}
	if s.Conversations == nil {
		s.Conversations = memory.Book{}
	}
}
