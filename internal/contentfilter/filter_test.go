package contentfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordChecker(t *testing.T) {
	c := NewKeywordChecker(append(DefaultKeywords, "  ", "Spam"))

	assert.True(t, c.Appropriate("What did you think of the Field of the Cloth of Gold?"))
	assert.False(t, c.Appropriate("This is OFFENSIVE stuff"))
	assert.False(t, c.Appropriate("buy spam now"))
	assert.True(t, c.Appropriate(""))
}

func TestAllowAll(t *testing.T) {
	var c Checker = AllowAll{}
	assert.True(t, c.Appropriate("offensive"))
}
