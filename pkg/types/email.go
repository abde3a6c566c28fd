package types

import (
	"strings"
	"time"
)

// InboundMessage is the normalized view of a fetched message
type InboundMessage struct {
	UID       uint32    `json:"uid"`
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	Date      time.Time `json:"date"`

	// Bare, lowercased addresses
	From    string `json:"from"`
	ReplyTo string `json:"reply_to,omitempty"`

	// Raw delivery-target header values, checked by persona resolution in this order
	To          string `json:"to,omitempty"`
	DeliveredTo string `json:"delivered_to,omitempty"`
	OriginalTo  string `json:"original_to,omitempty"`

	Text string `json:"text"`

	// Loop-detection headers
	AutoSubmitted        string `json:"auto_submitted,omitempty"`
	Precedence           string `json:"precedence,omitempty"`
	AutoResponseSuppress string `json:"auto_response_suppress,omitempty"`
}

// Correspondent returns the address treated as the real sender: Reply-To when
// present, otherwise From.
func (m *InboundMessage) Correspondent() string {
	if m.ReplyTo != "" {
		return m.ReplyTo
	}
	return m.From
}

// DeliveryTargets returns the To, Delivered-To and X-Original-To values in
// preference order
func (m *InboundMessage) DeliveryTargets() []string {
	return []string{m.To, m.DeliveredTo, m.OriginalTo}
}

// OutboundMessage represents a reply to be delivered
type OutboundMessage struct {
	FromName    string
	FromAddress string
	To          string
	Subject     string
	Body        string
	MessageID   string
	InReplyTo   string
	References  string
	Date        time.Time

	// Extra headers written verbatim, in key order
	Headers map[string]string
}

// ReplySubject prefixes subject with "Re: " unless it already carries one.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "(no subject)"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
