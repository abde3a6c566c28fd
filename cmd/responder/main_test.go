package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/persona-responder/internal/config"
	"github.com/brandon/persona-responder/internal/textgen"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestOpenStoreBackends(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendJSON} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.LoadConfig()
			cfg.StateBackend = backend
			cfg.StatePath = filepath.Join(t.TempDir(), "state")

			store, err := openStore(cfg, quietLogger())
			require.NoError(t, err)
			defer store.Close()

			st := store.Load(context.Background())
			st.MarkHandled("<x@example.com>")
			require.NoError(t, store.Save(context.Background(), st))
			assert.True(t, store.Load(context.Background()).HasHandled("<x@example.com>"))
		})
	}
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.StateBackend = "etcd"
	_, err := openStore(cfg, quietLogger())
	assert.Error(t, err)
}

func TestNewGeneratorChat(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.TextGen = config.TextGenConfig{Provider: config.ProviderDeepSeek, APIKey: "k"}

	gen, err := newGenerator(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &textgen.ChatClient{}, gen)
}

func TestPersonasCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "personas"})
	t.Setenv("PERSONAS_FILE", "")
	t.Setenv("DEFAULT_PERSONA", "")

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "henry")
	assert.Contains(t, out.String(), "tesla@askian.net")
	assert.Regexp(t, `askian\s+Ian\s+askian@askian\.net\s+\*`, out.String())
}
