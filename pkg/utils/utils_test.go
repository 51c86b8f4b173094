package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactKey(t *testing.T) {
	assert.Equal(t, "+972501234567", ContactKey("972501234567@c.us"))
	assert.Equal(t, "+972501234567", ContactKey("+972501234567"))
	assert.Equal(t, "", ContactKey("@c.us"))
	assert.Equal(t, "972501234567", ChatNumber("972501234567@c.us"))
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, "972501234567", NormalizeNumber("+972-50-123 4567"))
	assert.Equal(t, "972501234567", NormalizeNumber("972501234567@c.us"))
	assert.Equal(t, "972501234567@c.us", ChatID("+972 50 1234567"))
	assert.Equal(t, "", ChatID("n/a"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello world", 6))
	assert.Equal(t, "שלו...", Truncate("שלום עולם", 6))
	assert.Equal(t, "", Truncate("x", 0))
}
