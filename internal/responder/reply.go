package responder

import (
	"fmt"
	"time"

	"github.com/brandon/persona-responder/internal/persona"
	"github.com/brandon/persona-responder/pkg/types"
)

// Headers on every reply. Other responders, and our own later cycles, key off
// these to avoid answering an auto-reply.
var antiLoopHeaders = map[string]string{
	"Auto-Submitted":           "auto-replied",
	"X-Auto-Response-Suppress": "All",
	"Precedence":               "bulk",
}

func fallbackText(p *persona.Persona) string {
	return "My apologies, I am temporarily indisposed and unable to compose a proper reply. " +
		"Please try again shortly.\n\n" + p.SignOff
}

func declineText(p *persona.Persona) string {
	return "Thank you for your email. Unfortunately, I'm unable to respond to this particular message.\n\n" +
		p.SignOff
}

// buildReply addresses text from persona p to the correspondent, threaded
// under msg.
func (r *Responder) buildReply(msg *types.InboundMessage, p *persona.Persona, to, text string, now time.Time) *types.OutboundMessage {
	domain := types.Domain(p.Address)
	if domain == "" {
		domain = "localhost"
	}

	headers := make(map[string]string, len(antiLoopHeaders))
	for k, v := range antiLoopHeaders {
		headers[k] = v
	}

	out := &types.OutboundMessage{
		FromName:    p.Name,
		FromAddress: p.Address,
		To:          to,
		Subject:     types.ReplySubject(msg.Subject),
		Body:        text,
		MessageID:   fmt.Sprintf("<%s@%s>", r.newID(), domain),
		Date:        now,
		Headers:     headers,
	}
	if msg.MessageID != "" {
		out.InReplyTo = msg.MessageID
		out.References = msg.MessageID
	}
	return out
}
