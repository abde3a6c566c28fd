// Package memory keeps a bounded record of recent exchanges per correspondent
// and persona.
package memory

import (
	"strings"
	"time"

	"github.com/brandon/persona-responder/pkg/types"
)

const (
	DefaultMaxHistory    = 5
	DefaultContextSize   = 3
	DefaultInboundLimit  = 500
	DefaultOutboundLimit = 1000
	DefaultRetention     = 180 * 24 * time.Hour
)

// Exchange is one inbound message and the reply sent to it.
type Exchange struct {
	Time     time.Time `json:"time"`
	Inbound  string    `json:"inbound"`
	Outbound string    `json:"outbound"`
}

// Options bounds what Record stores.
type Options struct {
	MaxHistory    int
	InboundLimit  int
	OutboundLimit int
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		MaxHistory:    DefaultMaxHistory,
		InboundLimit:  DefaultInboundLimit,
		OutboundLimit: DefaultOutboundLimit,
	}
}

// Book maps correspondent -> persona key -> exchanges, oldest first.
type Book map[string]map[string][]Exchange

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// History returns up to limit most recent exchanges for the pair, oldest first.
func (b Book) History(correspondent, personaKey string, limit int) []Exchange {
	if limit <= 0 {
		return nil
	}
	exchanges := b[key(correspondent)][key(personaKey)]
	if len(exchanges) > limit {
		exchanges = exchanges[len(exchanges)-limit:]
	}
	out := make([]Exchange, len(exchanges))
	copy(out, exchanges)
	return out
}

// Record appends an exchange and evicts the oldest entries beyond MaxHistory.
func (b Book) Record(correspondent, personaKey, inbound, outbound string, at time.Time, opts Options) {
	c, p := key(correspondent), key(personaKey)
	if c == "" || p == "" {
		return
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}

	byPersona, ok := b[c]
	if !ok {
		byPersona = make(map[string][]Exchange)
		b[c] = byPersona
	}

	exchanges := append(byPersona[p], Exchange{
		Time:     at.UTC(),
		Inbound:  types.Truncate(inbound, opts.InboundLimit),
		Outbound: types.Truncate(outbound, opts.OutboundLimit),
	})
	if len(exchanges) > opts.MaxHistory {
		exchanges = append([]Exchange(nil), exchanges[len(exchanges)-opts.MaxHistory:]...)
	}
	byPersona[p] = exchanges
}

// Prune drops exchanges older than cutoff and removes containers left empty.
// It returns the number of exchanges removed.
func (b Book) Prune(cutoff time.Time) int {
	removed := 0
	for c, byPersona := range b {
		for p, exchanges := range byPersona {
			kept := exchanges[:0]
			for _, ex := range exchanges {
				if ex.Time.Before(cutoff) {
					removed++
					continue
				}
				kept = append(kept, ex)
			}
			if len(kept) == 0 {
				delete(byPersona, p)
				continue
			}
			byPersona[p] = kept
		}
		if len(byPersona) == 0 {
			delete(b, c)
		}
	}
	return removed
}

// Pairs returns the number of (correspondent, persona) entries.
func (b Book) Pairs() int {
	n := 0
	for _, byPersona := range b {
		n += len(byPersona)
	}
	return n
}
