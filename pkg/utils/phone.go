package utils

import "strings"

// ContactKey derives the lead key from a chat identifier:
// "972501234567@c.us" becomes "+972501234567".
func ContactKey(chatID string) string {
	id := strings.TrimSpace(chatID)
	if i := strings.Index(id, "@"); i >= 0 {
		id = id[:i]
	}
	id = strings.TrimPrefix(id, "+")
	if id == "" {
		return ""
	}
	return "+" + id
}

// ChatNumber returns the bare number portion of a chat identifier.
func ChatNumber(chatID string) string {
	return strings.TrimPrefix(ContactKey(chatID), "+")
}

// NormalizeNumber strips formatting so configured numbers compare equal to
// chat identifiers ("+972-50 123" -> "97250123").
func NormalizeNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "@"); i >= 0 {
		raw = raw[:i]
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChatID builds a personal chat identifier from a phone number.
func ChatID(number string) string {
	n := NormalizeNumber(number)
	if n == "" {
		return ""
	}
	return n + "@c.us"
}
