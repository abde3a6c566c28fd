// Package contentfilter decides whether inbound text is acceptable to answer.
package contentfilter

import "strings"

// DefaultKeywords is the stock block list.
var DefaultKeywords = []string{"inappropriate", "offensive"}

// Checker is a pluggable content policy.
type Checker interface {
	Appropriate(text string) bool
}

// KeywordChecker rejects text containing any keyword, case-insensitively.
type KeywordChecker struct {
	keywords []string
}

// NewKeywordChecker builds a checker; blank keywords are ignored.
func NewKeywordChecker(keywords []string) *KeywordChecker {
	c := &KeywordChecker{}
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			c.keywords = append(c.keywords, k)
		}
	}
	return c
}

// Appropriate implements Checker.
func (c *KeywordChecker) Appropriate(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return false
		}
	}
	return true
}

// AllowAll accepts everything.
type AllowAll struct{}

// Appropriate implements Checker.
func (AllowAll) Appropriate(string) bool { return true }
