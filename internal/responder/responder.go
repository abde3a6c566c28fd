// Package responder runs the poll loop: it reads unseen mail, gates each
// message through the loop guard and rate limiter, and answers the survivors
// in persona.
package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/contentfilter"
	"github.com/brandon/persona-responder/internal/guard"
	"github.com/brandon/persona-responder/internal/memory"
	"github.com/brandon/persona-responder/internal/persona"
	"github.com/brandon/persona-responder/internal/ratelimit"
	"github.com/brandon/persona-responder/internal/state"
	"github.com/brandon/persona-responder/internal/textgen"
	"github.com/brandon/persona-responder/pkg/types"
)

// Mailbox is the mail retrieval side.
type Mailbox interface {
	Unseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) ([]byte, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// Transport delivers replies.
type Transport interface {
	Send(ctx context.Context, msg *types.OutboundMessage) error
}

// Options tunes the orchestrator.
type Options struct {
	PollInterval    time.Duration
	MessageDelay    time.Duration
	GenerateTimeout time.Duration
	SendTimeout     time.Duration
	MaxReplyTokens  int
	Temperature     float32
	HistoryContext  int
	Memory          memory.Options
}

// DefaultOptions returns the stock timings and limits.
func DefaultOptions() Options {
	return Options{
		PollInterval:    30 * time.Second,
		MessageDelay:    2 * time.Second,
		GenerateTimeout: 30 * time.Second,
		SendTimeout:     60 * time.Second,
		MaxReplyTokens:  800,
		Temperature:     0.8,
		HistoryContext:  memory.DefaultContextSize,
		Memory:          memory.DefaultOptions(),
	}
}

// Deps are the collaborators a Responder drives.
type Deps struct {
	Mailbox   Mailbox
	Transport Transport
	Generator textgen.Generator
	Checker   contentfilter.Checker
	Guard     *guard.Guard
	Limiter   *ratelimit.Limiter
	Personas  *persona.Registry
	Store     *state.Store
}

func (d Deps) validate() error {
	switch {
	case d.Mailbox == nil:
		return errors.New("mailbox is required")
	case d.Transport == nil:
		return errors.New("transport is required")
	case d.Generator == nil:
		return errors.New("generator is required")
	case d.Guard == nil:
		return errors.New("guard is required")
	case d.Limiter == nil:
		return errors.New("rate limiter is required")
	case d.Personas == nil:
		return errors.New("persona registry is required")
	case d.Store == nil:
		return errors.New("state store is required")
	}
	return nil
}

// Responder owns one mailbox's reply loop. It is not safe for concurrent use;
// cycles run one at a time on the caller's goroutine.
type Responder struct {
	deps   Deps
	opts   Options
	logger *logrus.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// New creates a responder.
func New(deps Deps, opts Options, logger *logrus.Logger) (*Responder, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid responder dependencies: %w", err)
	}
	if deps.Checker == nil {
		deps.Checker = contentfilter.AllowAll{}
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultOptions().SendTimeout
	}
	if opts.Memory.MaxHistory <= 0 {
		opts.Memory = memory.DefaultOptions()
	}

	return &Responder{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
		newID:  uuid.NewString,
	}, nil
}

// LogStartup writes the startup banner.
func (r *Responder) LogStartup() {
	r.logger.WithFields(logrus.Fields{
		"poll_interval": r.opts.PollInterval.String(),
		"personas":      len(r.deps.Personas.All()),
		"default":       r.deps.Personas.Default().Key,
	}).Info("Persona responder started")

	for _, p := range r.deps.Personas.All() {
		r.logger.WithFields(logrus.Fields{
			"persona": p.Key,
			"name":    p.Name,
			"address": p.Address,
		}).Info("Persona available")
	}
}

// Run polls until ctx is cancelled. Each pass runs a full cycle and then
// sleeps PollInterval. A failed cycle is logged and the loop carries on.
func (r *Responder) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			break
		}

		if _, err := r.RunCycle(ctx); err != nil {
			r.logger.WithError(err).Error("Cycle failed")
		}

		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			break
		}
	}

	r.logger.Info("Persona responder stopped")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
