package email

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/persona-responder/pkg/types"
)

const sampleRaw = "From: Alice Example <Alice@Example.com>\r\n" +
	"Reply-To: alice.personal@example.org\r\n" +
	"To: Henry VIII <henry@askian.net>, someone@else.com\r\n" +
	"Delivered-To: askian@askian.net\r\n" +
	"X-Original-To: henry@askian.net\r\n" +
	"Subject: =?utf-8?q?A_question_about_Anne?=\r\n" +
	"Date: Mon, 02 Jun 2025 10:15:00 +0100\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Precedence: list\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"How fares the court?\r\n"

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(42, []byte(sampleRaw))
	require.NoError(t, err)

	assert.Equal(t, uint32(42), msg.UID)
	assert.Equal(t, "<abc123@example.com>", msg.MessageID)
	assert.Equal(t, "A question about Anne", msg.Subject)
	assert.Equal(t, "alice@example.com", msg.From)
	assert.Equal(t, "alice.personal@example.org", msg.ReplyTo)
	assert.Equal(t, "alice.personal@example.org", msg.Correspondent())
	assert.Contains(t, msg.To, "henry@askian.net")
	assert.Equal(t, "askian@askian.net", msg.DeliveredTo)
	assert.Equal(t, "henry@askian.net", msg.OriginalTo)
	assert.Equal(t, "list", msg.Precedence)
	assert.Empty(t, msg.AutoSubmitted)
	assert.Equal(t, "How fares the court?", strings.TrimSpace(msg.Text))
	assert.Equal(t, 2025, msg.Date.Year())
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: bob@example.com\r\n" +
		"Subject: hi\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Greetings from Bob</p></body></html>\r\n"

	msg, err := ParseMessage(7, []byte(raw))
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Greetings from Bob")
	assert.Empty(t, msg.ReplyTo)
	assert.Equal(t, "bob@example.com", msg.Correspondent())
}

func TestCreateMessage(t *testing.T) {
	out := &types.OutboundMessage{
		FromName:    "Henry VIII",
		FromAddress: "henry@askian.net",
		To:          "alice@example.com",
		Subject:     "Re: A question",
		Body:        "Well met.\n\nHenry R",
		MessageID:   "<id-1@askian.net>",
		InReplyTo:   "<abc123@example.com>",
		References:  "<abc123@example.com>",
		Date:        time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Headers: map[string]string{
			"X-Auto-Response-Suppress": "All",
			"Auto-Submitted":           "auto-replied",
			"Precedence":               "bulk",
		},
	}

	raw, err := createMessage(out)
	require.NoError(t, err)
	text := string(raw)

	head, body, ok := strings.Cut(text, "\r\n\r\n")
	require.True(t, ok)
	assert.Equal(t, "Well met.\r\n\r\nHenry R", body)

	lines := strings.Split(head, "\r\n")
	assert.Equal(t, `From: "Henry VIII" <henry@askian.net>`, lines[0])
	assert.Equal(t, "To: alice@example.com", lines[1])
	assert.Equal(t, "Subject: Re: A question", lines[2])
	assert.Equal(t, "Date: Mon, 02 Jun 2025 10:00:00 +0000", lines[3])
	assert.Contains(t, lines, "Message-ID: <id-1@askian.net>")
	assert.Contains(t, lines, "In-Reply-To: <abc123@example.com>")
	assert.Contains(t, lines, "References: <abc123@example.com>")

	// Extra headers appear in key order.
	auto := indexOf(lines, "Auto-Submitted: auto-replied")
	prec := indexOf(lines, "Precedence: bulk")
	supp := indexOf(lines, "X-Auto-Response-Suppress: All")
	require.True(t, auto >= 0 && prec >= 0 && supp >= 0)
	assert.Less(t, auto, prec)
	assert.Less(t, prec, supp)
}

func TestCreateMessageEncodesSubjectAndStripsNewlines(t *testing.T) {
	raw, err := createMessage(&types.OutboundMessage{
		FromAddress: "ada@askian.net",
		To:          "bob@example.com",
		Subject:     "Re: Über engines\r\nBcc: victim@example.com",
	})
	require.NoError(t, err)

	head, _, _ := strings.Cut(string(raw), "\r\n\r\n")
	assert.NotContains(t, head, "\r\nBcc:")
	assert.Contains(t, head, "Subject: =?utf-8?q?")
}

func TestCreateMessageRequiresAddresses(t *testing.T) {
	_, err := createMessage(&types.OutboundMessage{To: "bob@example.com"})
	assert.Error(t, err)
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}
