package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReasonAliases(t *testing.T) {
	assert := assert.New(t)

	aliases := map[string]string{
		"r1": "Rule 1: no spamming",
	}

	assert.Equal("Rule 1: no spamming", ParseReason(aliases, "r1"))
	assert.Equal("Rule 1: no spamming", ParseReason(aliases, "R1"))
	assert.Equal("something else", ParseReason(aliases, "something else"))
	assert.Equal("", ParseReason(aliases, ""))
	assert.Equal("r1", ParseReason(nil, "r1"))
}

func TestParseReasonTruncation(t *testing.T) {
	assert := assert.New(t)

	long := strings.Repeat("a", MaxReasonLength+100)
	got := ParseReason(nil, long)
	assert.Len(got, MaxReasonLength)
	assert.True(strings.HasSuffix(got, " [...]"))

	exact := strings.Repeat("b", MaxReasonLength)
	assert.Equal(exact, ParseReason(nil, exact))
}

func TestReasonWithAttachments(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("spam", reasonWithAttachments("spam", nil))
	assert.Equal("spam https://a/1 https://a/2", reasonWithAttachments("spam", []string{"https://a/1", "https://a/2"}))
	assert.Equal("https://a/1", reasonWithAttachments("", []string{"https://a/1"}))
}

func TestUcfirst(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("Failed to message user", ucfirst("failed to message user"))
	assert.Equal("", ucfirst(""))
	assert.Equal("Already upper", ucfirst("Already upper"))
}
