package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/persona-responder/internal/config"
	"github.com/brandon/persona-responder/internal/contentfilter"
	"github.com/brandon/persona-responder/internal/email"
	"github.com/brandon/persona-responder/internal/guard"
	"github.com/brandon/persona-responder/internal/memory"
	"github.com/brandon/persona-responder/internal/persona"
	"github.com/brandon/persona-responder/internal/ratelimit"
	"github.com/brandon/persona-responder/internal/responder"
	"github.com/brandon/persona-responder/internal/state"
	"github.com/brandon/persona-responder/internal/textgen"
)

// openStore opens the configured state backend.
func openStore(cfg *config.Config, logger *logrus.Logger) (*state.Store, error) {
	if err := cfg.ValidateState(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		backend state.Backend
		err     error
	)
	switch cfg.StateBackend {
	case config.BackendJSON:
		backend, err = state.NewFileBackend(cfg.StatePath)
	default:
		backend, err = state.NewSQLiteBackend(cfg.StatePath, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	policy := state.Policy{
		HandledCap:            cfg.HandledCap,
		SendLogRetention:      state.DefaultPolicy().SendLogRetention,
		ConversationRetention: cfg.HistoryRetention(),
	}
	return state.NewStore(backend, policy, logger), nil
}

func newGenerator(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (textgen.Generator, error) {
	tg := cfg.TextGen

	if tg.Provider == config.ProviderGemini {
		return textgen.NewGeminiClient(ctx, tg.APIKey, tg.Model, logger)
	}

	chat := textgen.DefaultChatConfig(tg.APIKey)
	if tg.BaseURL != "" {
		chat.BaseURL = tg.BaseURL
	}
	if tg.Model != "" {
		chat.Model = tg.Model
	}
	chat.Timeout = cfg.GenerateTimeout

	if tg.APIKey == "" {
		logger.WithField("provider", tg.Provider).Warn("No text generation API key; every reply will be the apology")
	}
	return textgen.NewChatClient(chat, logger), nil
}

// app is a fully wired responder plus what must be closed afterwards.
type app struct {
	responder *responder.Responder
	store     *state.Store
	mail      *email.Manager
}

func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	personas, err := persona.Load(cfg.PersonasFile, cfg.DefaultPersona)
	if err != nil {
		return nil, fmt.Errorf("failed to load personas: %w", err)
	}

	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	mail := email.NewManager(&cfg.Account, logger)
	own := append([]string{cfg.ServiceAddress}, personas.Addresses()...)

	r, err := responder.New(responder.Deps{
		Mailbox:   mail,
		Transport: mail,
		Generator: generator,
		Checker:   contentfilter.NewKeywordChecker(cfg.ContentFilterKeywords),
		Guard:     guard.New(own, cfg.AutomatedSenderMarkers),
		Limiter: ratelimit.New(ratelimit.Limits{
			Global:    cfg.MaxRepliesPerHour,
			PerSender: cfg.MaxRepliesPerSenderPerHour,
		}),
		Personas: personas,
		Store:    store,
	}, responder.Options{
		PollInterval:    cfg.PollInterval,
		MessageDelay:    cfg.MessageDelay,
		GenerateTimeout: cfg.GenerateTimeout,
		SendTimeout:     cfg.SendTimeout,
		MaxReplyTokens:  cfg.MaxReplyTokens,
		Temperature:     float32(cfg.Temperature),
		HistoryContext:  cfg.HistoryContext,
		Memory: memory.Options{
			MaxHistory:    cfg.MaxHistory,
			InboundLimit:  memory.DefaultInboundLimit,
			OutboundLimit: memory.DefaultOutboundLimit,
		},
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{responder: r, store: store, mail: mail}, nil
}

func (a *app) Close() {
	if err := a.mail.Close(); err != nil {
		logger.WithError(err).Debug("Failed to close mailbox")
	}
	if err := a.store.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close state store")
	}
}
