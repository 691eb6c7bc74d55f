package redact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskaudit/internal/domain"
)

func TestLoadPolicy(t *testing.T) {
	t.Run("valid_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "redaction.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sensitive_keys:\n  - internal_note\n  - badge\n"), 0o600))

		p, err := LoadPolicy(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"internal_note", "badge"}, p.SensitiveKeys)
	})

	t.Run("missing_file_uses_defaults", func(t *testing.T) {
		p, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))

		require.NoError(t, err)
		assert.Empty(t, p.SensitiveKeys)
	})

	t.Run("empty_path", func(t *testing.T) {
		p, err := LoadPolicy("")

		require.NoError(t, err)
		assert.Empty(t, p.SensitiveKeys)
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sensitive_keys: {nope"), 0o600))

		_, err := LoadPolicy(path)

		assert.Error(t, err)
	})
}

func TestNewEngineFromPolicy(t *testing.T) {
	e := NewEngineFromPolicy(&Policy{SensitiveKeys: []string{"internal_note"}})

	out := e.RedactMap(map[string]any{"internal_note": "x"}, domain.RedactionStrict)
	assert.Equal(t, "[REDACTED]", out["internal_note"])

	// nil policy falls back to built-in defaults only.
	e = NewEngineFromPolicy(nil)
	out = e.RedactMap(map[string]any{"internal_note": "x", "password": "y"}, domain.RedactionStrict)
	assert.Equal(t, "x", out["internal_note"])
	assert.Equal(t, "[REDACTED]", out["password"])
}
