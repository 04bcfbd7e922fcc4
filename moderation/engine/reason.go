package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const MaxReasonLength = 512

const truncationMarker = " [...]"

// ParseReason normalizes a moderator-supplied reason: applies the configured
// alias substitutions (the whole reason, lowercased, as the lookup key) and
// enforces the maximum length with a truncation marker.
func ParseReason(aliases map[string]string, reason string) string {
	if reason == "" {
		return ""
	}
	if expanded, ok := aliases[strings.ToLower(reason)]; ok {
		reason = expanded
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		runes := []rune(reason)
		reason = string(runes[:MaxReasonLength-utf8.RuneCountInString(truncationMarker)]) + truncationMarker
	}
	return reason
}

// reasonWithAttachments appends attachment references after the reason so
// they survive in the case record's own text, even past the length cap.
func reasonWithAttachments(reason string, attachments []string) string {
	if len(attachments) == 0 {
		return reason
	}
	joined := strings.Join(attachments, " ")
	if reason == "" {
		return joined
	}
	return reason + " " + joined
}

func ucfirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
