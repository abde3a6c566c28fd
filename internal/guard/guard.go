// Package guard decides whether an inbound message must not be answered.
//
// A missed skip here can start an endless reply loop with another automated
// responder, so every rule errs towards skipping.
package guard

import (
	"strings"

	"github.com/brandon/persona-responder/pkg/types"
)

// Skip reasons
const (
	ReasonOwnEmail        = "own email"
	ReasonAutomatedSender = "automated sender"
	ReasonAlreadyReplied  = "already replied"
	ReasonAutoSubmitted   = "auto-submitted"
	ReasonPrecedence      = "precedence"
	ReasonSuppression     = "suppression requested"
)

// DefaultAutomatedMarkers are substrings identifying robot senders.
var DefaultAutomatedMarkers = []string{"mailer-daemon", "postmaster", "noreply", "no-reply"}

var bulkPrecedence = map[string]bool{
	"bulk": true,
	"junk": true,
	"list": true,
}

// HandledSet answers whether a message ID was already replied to.
type HandledSet interface {
	HasHandled(messageID string) bool
}

// Guard applies the skip rules.
type Guard struct {
	own     map[string]struct{}
	markers []string
}

// New creates a guard. ownAddresses are this system's addresses (service
// account and every persona); markers are matched as lowercase substrings of
// the sender address.
func New(ownAddresses []string, markers []string) *Guard {
	g := &Guard{own: make(map[string]struct{}, len(ownAddresses))}
	for _, addr := range ownAddresses {
		if addr = types.NormalizeAddress(addr); addr != "" {
			g.own[addr] = struct{}{}
		}
	}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			g.markers = append(g.markers, m)
		}
	}
	return g
}

// IsOwn reports whether addr belongs to this system.
func (g *Guard) IsOwn(addr string) bool {
	_, ok := g.own[strings.ToLower(strings.TrimSpace(addr))]
	return ok
}

// Check evaluates the rules in order; the first match wins.
func (g *Guard) Check(msg *types.InboundMessage, handled HandledSet) types.Verdict {
	from := strings.ToLower(msg.From)

	if g.IsOwn(from) && (msg.ReplyTo == "" || g.IsOwn(msg.ReplyTo)) {
		return types.SkipVerdict(ReasonOwnEmail, from)
	}

	for _, marker := range g.markers {
		if strings.Contains(from, marker) {
			return types.SkipVerdict(ReasonAutomatedSender, from)
		}
	}

	if msg.MessageID != "" && handled != nil && handled.HasHandled(msg.MessageID) {
		return types.SkipVerdict(ReasonAlreadyReplied, msg.MessageID)
	}

	if v := strings.ToLower(strings.TrimSpace(msg.AutoSubmitted)); v != "" && v != "no" {
		return types.SkipVerdict(ReasonAutoSubmitted, v)
	}

	if v := strings.ToLower(strings.TrimSpace(msg.Precedence)); bulkPrecedence[v] {
		return types.SkipVerdict(ReasonPrecedence, v)
	}

	if strings.TrimSpace(msg.AutoResponseSuppress) != "" {
		return types.SkipVerdict(ReasonSuppression, msg.AutoResponseSuppress)
	}

	return types.ProceedVerdict()
}
