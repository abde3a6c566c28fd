package email

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/brandon/persona-responder/pkg/types"
)

// ParseMessage normalizes a raw message into an InboundMessage. Addresses are
// reduced to bare lowercase form; the text body is enmime's plain-text view,
// which falls back to a rendering of the HTML part.
func ParseMessage(uid uint32, raw []byte) (*types.InboundMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %d: %w", uid, err)
	}

	msg := &types.InboundMessage{
		UID:       uid,
		MessageID: strings.TrimSpace(env.GetHeader("Message-ID")),
		Subject:   strings.TrimSpace(env.GetHeader("Subject")),

		From:    types.NormalizeAddress(env.GetHeader("From")),
		ReplyTo: types.NormalizeAddress(env.GetHeader("Reply-To")),

		To:          env.GetHeader("To"),
		DeliveredTo: env.GetHeader("Delivered-To"),
		OriginalTo:  env.GetHeader("X-Original-To"),

		Text: env.Text,

		AutoSubmitted:        strings.TrimSpace(env.GetHeader("Auto-Submitted")),
		Precedence:           strings.TrimSpace(env.GetHeader("Precedence")),
		AutoResponseSuppress: strings.TrimSpace(env.GetHeader("X-Auto-Response-Suppress")),
	}

	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		msg.Date = date
	}

	return msg, nil
}
