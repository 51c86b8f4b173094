package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_AllFieldsPopulated(t *testing.T) {
	s := Default()
	assert.NotEmpty(t, s.System)
	assert.Contains(t, s.Analysis, "match_score")
	assert.Equal(t, "תודה על ההודעה! יש לי תקלה טכנית קטנה. נסה שוב בעוד רגע.", s.FallbackReply)
	assert.NotEmpty(t, s.OfflineReply)
	assert.NotEmpty(t, s.StopReply)
	assert.Equal(t, "היי", s.ContextOpening)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: |\n  custom persona\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom persona", s.System)
	assert.Equal(t, Default().FallbackReply, s.FallbackReply)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("system: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)
}
