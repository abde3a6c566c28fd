// Package persona holds the registry of reply identities and maps delivery
// addresses onto them.
package persona

import (
	_ "embed"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brandon/persona-responder/pkg/types"
)

//go:embed personas.yaml
var defaultRegistryYAML []byte

// Persona is an immutable reply identity.
type Persona struct {
	Key          string `yaml:"key"`
	Name         string `yaml:"name"`
	Address      string `yaml:"address"`
	Instructions string `yaml:"instructions"`
	SignOff      string `yaml:"sign_off"`
}

// file models the on-disk registry schema.
type file struct {
	Default  string    `yaml:"default"`
	Personas []Persona `yaml:"personas"`
}

// Registry is the set of known personas plus the fallback.
type Registry struct {
	byKey      map[string]*Persona
	order      []*Persona
	defaultKey string
}

// Load reads the registry at path, or the built-in registry when path is
// empty. defaultKey, when set, overrides the file's default.
func Load(path, defaultKey string) (*Registry, error) {
	data := defaultRegistryYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("persona: read %s: %w", path, err)
		}
	}
	return Parse(data, defaultKey)
}

// Parse builds a registry from YAML.
func Parse(data []byte, defaultKey string) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("persona: parse registry: %w", err)
	}
	if defaultKey != "" {
		f.Default = defaultKey
	}
	return New(f.Personas, f.Default)
}

// New validates personas and builds a registry. defaultKey must name one of
// them.
func New(personas []Persona, defaultKey string) (*Registry, error) {
	r := &Registry{
		byKey:      make(map[string]*Persona, len(personas)),
		defaultKey: strings.ToLower(strings.TrimSpace(defaultKey)),
	}

	for i := range personas {
		p := personas[i]
		p.Key = strings.ToLower(strings.TrimSpace(p.Key))
		if p.Key == "" {
			return nil, fmt.Errorf("persona: entry %d has no key", i)
		}
		if _, dup := r.byKey[p.Key]; dup {
			return nil, fmt.Errorf("persona: duplicate key %q", p.Key)
		}
		addr := types.NormalizeAddress(p.Address)
		if addr == "" {
			return nil, fmt.Errorf("persona %q: invalid address %q", p.Key, p.Address)
		}
		p.Address = addr
		if p.Name == "" {
			p.Name = p.Key
		}
		if strings.TrimSpace(p.SignOff) == "" {
			p.SignOff = p.Name
		}
		r.byKey[p.Key] = &p
		r.order = append(r.order, &p)
	}

	if r.defaultKey == "" {
		return nil, fmt.Errorf("persona: no default persona configured")
	}
	if _, ok := r.byKey[r.defaultKey]; !ok {
		return nil, fmt.Errorf("persona: default persona %q is not defined", r.defaultKey)
	}
	return r, nil
}

// Default returns the fallback persona.
func (r *Registry) Default() *Persona {
	return r.byKey[r.defaultKey]
}

// Get looks up a persona by key.
func (r *Registry) Get(key string) (*Persona, bool) {
	p, ok := r.byKey[strings.ToLower(key)]
	return p, ok
}

// All returns personas in registry order.
func (r *Registry) All() []*Persona {
	out := make([]*Persona, len(r.order))
	copy(out, r.order)
	return out
}

// Addresses returns every persona address.
func (r *Registry) Addresses() []string {
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.Address)
	}
	return out
}

// Resolve picks the persona for a message from its delivery-target header
// values, given in preference order. The first address whose local part names
// a persona wins; otherwise the default persona is returned.
func (r *Registry) Resolve(candidates ...string) *Persona {
	for _, header := range candidates {
		for _, addr := range parseAddresses(header) {
			if p, ok := r.byKey[strings.ToLower(types.LocalPart(addr))]; ok {
				return p
			}
		}
	}
	return r.Default()
}

func parseAddresses(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	list, err := mail.ParseAddressList(header)
	if err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.Address)
		}
		return out
	}
	if addr := types.NormalizeAddress(header); addr != "" {
		return []string{addr}
	}
	return nil
}
