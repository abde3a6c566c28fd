// Package textgen talks to the external text-generation service that writes
// persona replies.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brandon/persona-responder/internal/memory"
	"github.com/brandon/persona-responder/pkg/types"
)

// BodyLimit caps the inbound text sent upstream.
const BodyLimit = 2000

var (
	// ErrNoCompletion means the service answered without any text.
	ErrNoCompletion = errors.New("no completion returned")
	// ErrNoAPIKey means the client was built without credentials.
	ErrNoAPIKey = errors.New("API key not configured")
)

// Request is everything the generator needs for one reply.
type Request struct {
	Instructions string
	History      []memory.Exchange
	Body         string
	SignOff      string
	Temperature  float32
	MaxTokens    int
}

// Generator produces reply text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Turn is one chat message in provider-neutral form.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Turns lays out the conversation: prior exchanges as alternating user and
// assistant turns, then the current letter.
func (r Request) Turns() []Turn {
	turns := make([]Turn, 0, len(r.History)*2+1)
	for _, ex := range r.History {
		turns = append(turns,
			Turn{Role: "user", Content: ex.Inbound},
			Turn{Role: "assistant", Content: ex.Outbound},
		)
	}
	return append(turns, Turn{Role: "user", Content: r.Prompt()})
}

// Prompt is the final user turn.
func (r Request) Prompt() string {
	var b strings.Builder
	b.WriteString("You have received the following letter. Compose a reply in character.\n\n")
	fmt.Fprintf(&b, "---\n%s\n---\n\n", types.Truncate(r.Body, BodyLimit))
	fmt.Fprintf(&b, "Sign off as: %s", r.SignOff)
	return b.String()
}
