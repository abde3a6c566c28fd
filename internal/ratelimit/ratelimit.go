// Package ratelimit enforces global and per-sender reply ceilings over a
// sliding window of the send log.
package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/brandon/persona-responder/internal/state"
	"github.com/brandon/persona-responder/pkg/types"
)

const (
	ReasonGlobal    = "global rate limit"
	ReasonPerSender = "per-sender rate limit"
)

// Limits configures the limiter. Zero ceilings disable the corresponding check.
type Limits struct {
	Global    int
	PerSender int
	Window    time.Duration
}

// DefaultLimits returns 10 replies per hour globally and per sender.
func DefaultLimits() Limits {
	return Limits{Global: 10, PerSender: 10, Window: time.Hour}
}

// Limiter checks candidate senders against the send log.
type Limiter struct {
	limits Limits
}

// New creates a limiter.
func New(limits Limits) *Limiter {
	if limits.Window <= 0 {
		limits.Window = time.Hour
	}
	return &Limiter{limits: limits}
}

// Limits returns the configured limits.
func (l *Limiter) Limits() Limits {
	return l.limits
}

// Check returns Proceed when a reply to sender at now stays under both
// ceilings. The global ceiling is checked first.
func (l *Limiter) Check(log []state.SendEvent, sender string, now time.Time) types.Verdict {
	cutoff := now.Add(-l.limits.Window)

	var recent []state.SendEvent
	for _, ev := range log {
		if ev.Time.After(cutoff) {
			recent = append(recent, ev)
		}
	}

	if l.limits.Global > 0 && len(recent) >= l.limits.Global {
		return types.DenyVerdict(ReasonGlobal, fmt.Sprintf("%d/%s", l.limits.Global, l.limits.Window))
	}

	if l.limits.PerSender > 0 {
		sender = strings.ToLower(sender)
		count := 0
		for _, ev := range recent {
			if strings.ToLower(ev.Sender) == sender {
				count++
			}
		}
		if count >= l.limits.PerSender {
			return types.DenyVerdict(ReasonPerSender, sender)
		}
	}

	return types.ProceedVerdict()
}
