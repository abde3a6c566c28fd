package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtin(t *testing.T) *Registry {
	t.Helper()
	r, err := Load("", "")
	require.NoError(t, err)
	return r
}

func TestBuiltinRegistry(t *testing.T) {
	r := builtin(t)

	assert.Equal(t, "askian", r.Default().Key)
	assert.Len(t, r.All(), 9)

	henry, ok := r.Get("HENRY")
	require.True(t, ok)
	assert.Equal(t, "Henry VIII", henry.Name)
	assert.Equal(t, "henry@askian.net", henry.Address)
	assert.Equal(t, "Henry R", henry.SignOff)
	assert.NotEmpty(t, henry.Instructions)

	assert.Contains(t, r.Addresses(), "tesla@askian.net")
}

func TestResolve(t *testing.T) {
	r := builtin(t)

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"bare to", []string{"tesla@askian.net"}, "tesla"},
		{"display name", []string{`"Nikola" <Tesla@askian.net>`}, "tesla"},
		{"unknown local part", []string{"random@askian.net"}, "askian"},
		{"no headers", nil, "askian"},
		{"falls through to delivered-to", []string{"list@example.com", "henry@askian.net", ""}, "henry"},
		{"falls through to original-to", []string{"", "", "ada@askian.net"}, "ada"},
		{"first header wins", []string{"churchill@askian.net", "henry@askian.net"}, "churchill"},
		{"second address in list", []string{"someone@example.com, Dave <dave@askian.net>"}, "dave"},
		{"garbage", []string{"<<<", "not-an-address"}, "askian"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.candidates...).Key)
		})
	}
}

func TestLoadFromFileWithDefaultOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: alpha
personas:
  - key: Alpha
    name: Alpha
    address: alpha@example.org
    instructions: be alpha
    sign_off: A
  - key: beta
    address: Beta <beta@example.org>
`), 0644))

	r, err := Load(path, "beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", r.Default().Key)

	beta, _ := r.Get("beta")
	assert.Equal(t, "beta@example.org", beta.Address)
	assert.Equal(t, "beta", beta.Name)
	assert.Equal(t, "beta", beta.SignOff)

	assert.Equal(t, "alpha", r.Resolve("alpha@example.org").Key)
}

func TestNewValidation(t *testing.T) {
	_, err := New([]Persona{{Key: "a", Address: "a@x.org"}}, "")
	assert.ErrorContains(t, err, "no default")

	_, err = New([]Persona{{Key: "a", Address: "a@x.org"}}, "b")
	assert.ErrorContains(t, err, "not defined")

	_, err = New([]Persona{{Key: "a", Address: "a@x.org"}, {Key: "A", Address: "b@x.org"}}, "a")
	assert.ErrorContains(t, err, "duplicate")

	_, err = New([]Persona{{Key: "a", Address: "nope"}}, "a")
	assert.ErrorContains(t, err, "invalid address")

	_, err = New([]Persona{{Address: "a@x.org"}}, "a")
	assert.ErrorContains(t, err, "no key")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
