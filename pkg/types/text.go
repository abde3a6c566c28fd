package types

import (
	"net/mail"
	"strings"
)

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// NormalizeAddress extracts the bare address from a header value such as
// `Alice <Alice@Example.com>` and lowercases it. Unparseable input yields "".
func NormalizeAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		if strings.Count(value, "@") == 1 && !strings.ContainsAny(value, " <>\"") {
			return strings.ToLower(value)
		}
		return ""
	}
	return strings.ToLower(addr.Address)
}

// LocalPart returns the portion of addr before the last '@'.
func LocalPart(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return addr[:i]
	}
	return addr
}

// Domain returns the portion of addr after the last '@'.
func Domain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return addr[i+1:]
	}
	return ""
}
