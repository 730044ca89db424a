package app

import (
	"strings"
	"unicode/utf8"
)

// AckPolicy decides whether a message sent to a CLOSED ticket is a plain
// acknowledgment (leave the ticket closed) or substantive content (reopen).
// It is a replaceable policy: deployments may swap the phrase set without
// touching lifecycle logic.
type AckPolicy func(text string) bool

// maxAckRunes bounds how long an acknowledgment can be. Long messages almost
// always carry new content even when they open with thanks.
const maxAckRunes = 100

var gratitudePhrases = []string{
	"спасибо", "благодарю", "спс", "помогло", "выручили",
	"от души", "thanks", "thank you", "thx",
}

// complaintMarkers override gratitude phrases: "спасибо, но не помогло"
// must reopen, not close the loop.
var complaintMarkers = []string{
	"не помогло", "не работает", "снова", "опять", "ошибка", "проблема", "?",
}

// DefaultAckPolicy is a fixed-phrase heuristic. It is approximate; tone
// classification mistakes are a product limitation, not something to fix
// locally.
func DefaultAckPolicy(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if utf8.RuneCountInString(t) > maxAckRunes {
		return false
	}
	for _, m := range complaintMarkers {
		if strings.Contains(t, m) {
			return false
		}
	}
	for _, p := range gratitudePhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
