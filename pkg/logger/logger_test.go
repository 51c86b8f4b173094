package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoCF_AttachesComponentAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Use(zap.New(core))
	defer restore()

	InfoCF("pipeline", "reply sent", map[string]interface{}{
		"chat_id": "972500000001@c.us",
		"error":   errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "reply sent", entries[0].Message)
	assert.Equal(t, "pipeline", ctx["component"])
	assert.Equal(t, "972500000001@c.us", ctx["chat_id"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Use(zap.New(core).WithOptions(zap.IncreaseLevel(level)))
	defer restore()
	defer SetLevel(INFO)

	SetLevel(WARN)
	InfoC("sweep", "hidden")
	WarnC("sweep", "visible")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "visible", logs.All()[0].Message)
	assert.Equal(t, WARN, GetLevel())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"WARNING": WARN,
		"error":   ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
