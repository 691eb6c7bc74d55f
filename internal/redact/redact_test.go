package redact

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskaudit/internal/domain"
)

func TestRedactLevelNone(t *testing.T) {
	e := NewEngine()
	in := map[string]any{
		"email":    "john.doe@example.com",
		"phone":    "+1 (555) 123-4567",
		"password": "hunter2",
		"nested":   map[string]any{"token": "abcdefghijklmnop1234"},
	}

	out := e.RedactMap(in, domain.RedactionNone)

	assert.Equal(t, in, out, "level 0 is the identity")
}

func TestRedactModerate(t *testing.T) {
	e := NewEngine()

	t.Run("email_local_part_hashed", func(t *testing.T) {
		out := e.Redact("john.doe@example.com", domain.RedactionModerate).(string)

		assert.Regexp(t, `^[0-9a-f]{8}@example\.com$`, out)
		assert.NotContains(t, out, "john.doe")
	})

	t.Run("same_email_same_pseudonym", func(t *testing.T) {
		a := e.Redact("john.doe@example.com", domain.RedactionModerate)
		b := e.Redact("john.doe@example.com", domain.RedactionModerate)
		c := e.Redact("jane.roe@example.com", domain.RedactionModerate)

		assert.Equal(t, a, b, "deterministic")
		assert.NotEqual(t, a, c, "distinct users stay distinguishable")
	})

	t.Run("email_inside_free_text", func(t *testing.T) {
		out := e.Redact("contact john.doe@example.com for details", domain.RedactionModerate).(string)

		assert.NotContains(t, out, "john.doe@")
		assert.Contains(t, out, "@example.com")
		assert.Contains(t, out, "for details")
	})

	t.Run("phone_keeps_head_and_tail", func(t *testing.T) {
		out := e.Redact("+1 (555) 123-4567", domain.RedactionModerate).(string)

		assert.Contains(t, out, "*")
		assert.NotContains(t, out, "123-45")
		// First 3 and last 2 digits survive.
		assert.True(t, strings.HasPrefix(out, "+1 (5"), out)
		assert.True(t, strings.HasSuffix(out, "67"), out)
	})

	t.Run("short_digit_runs_left_alone", func(t *testing.T) {
		out := e.Redact("qty 12345", domain.RedactionModerate).(string)
		assert.Equal(t, "qty 12345", out)
	})

	t.Run("opaque_token_masked", func(t *testing.T) {
		out := e.Redact("sk_live_abcdef123456789", domain.RedactionModerate).(string)

		assert.True(t, strings.HasPrefix(out, "sk_l"), out)
		assert.Contains(t, out, "****")
		assert.NotContains(t, out, "abcdef12345")
	})

	t.Run("long_text_truncated", func(t *testing.T) {
		long := strings.Repeat("x", 600)
		out := e.Redact(long, domain.RedactionModerate).(string)

		assert.True(t, strings.HasSuffix(out, "…[truncated]"), "suffix marks truncation")
		assert.Less(t, len(out), len(long))
	})

	t.Run("unbroken_prose_truncated_not_token_masked", func(t *testing.T) {
		// A long run without spaces fits the token alphabet but carries no
		// digits; it must be truncated, never collapsed to a token mask.
		long := strings.Repeat("x", 600)
		out := e.Redact(long, domain.RedactionModerate).(string)

		assert.NotContains(t, out, "****")
		assert.True(t, strings.HasSuffix(out, "…[truncated]"), out)
		assert.True(t, strings.HasPrefix(out, "xxxx"), out)
	})

	t.Run("digit_free_run_not_token_masked", func(t *testing.T) {
		out := e.Redact("abcdefghijklmnopqrst", domain.RedactionModerate).(string)
		assert.Equal(t, "abcdefghijklmnopqrst", out)
	})

	t.Run("overlong_secret_truncated", func(t *testing.T) {
		long := strings.Repeat("a1", 400)
		out := e.Redact(long, domain.RedactionModerate).(string)

		assert.True(t, strings.HasSuffix(out, "…[truncated]"), out)
		assert.Less(t, len(out), len(long))
	})

	t.Run("truncation_respects_rune_boundaries", func(t *testing.T) {
		// 3-byte runes so the byte threshold lands mid-rune.
		long := strings.Repeat("日", 200)
		out := e.Redact(long, domain.RedactionModerate).(string)

		assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
		assert.True(t, strings.HasSuffix(out, "…[truncated]"), out)
	})

	t.Run("numbers_and_bools_untouched", func(t *testing.T) {
		in := map[string]any{"count": float64(42), "open": true, "note": nil}
		out := e.RedactMap(in, domain.RedactionModerate)
		assert.Equal(t, in, out)
	})
}

func TestRedactStrict(t *testing.T) {
	e := NewEngine()

	t.Run("email_reduced_to_domain", func(t *testing.T) {
		out := e.Redact("john.doe@example.com", domain.RedactionStrict).(string)
		assert.Equal(t, "***@example.com", out)
	})

	t.Run("phone_fully_masked", func(t *testing.T) {
		out := e.Redact("555-123-4567", domain.RedactionStrict).(string)
		assert.NotContains(t, out, "5")
		assert.Contains(t, out, "*")
	})

	t.Run("sensitive_keys_fully_redacted", func(t *testing.T) {
		in := map[string]any{
			"password":     "hunter2",
			"api_key":      "whatever",
			"cardNumber":   "4111111111111111",
			"description":  "plain text",
			"oauth_secret": "deep",
		}
		out := e.RedactMap(in, domain.RedactionStrict)

		assert.Equal(t, "[REDACTED]", out["password"])
		assert.Equal(t, "[REDACTED]", out["api_key"])
		assert.Equal(t, "[REDACTED]", out["cardNumber"], "key match is case-insensitive")
		assert.Equal(t, "[REDACTED]", out["oauth_secret"], "key match is substring")
		assert.Equal(t, "plain text", out["description"])
	})

	t.Run("sensitive_keys_kept_at_moderate", func(t *testing.T) {
		in := map[string]any{"password": "short"}
		out := e.RedactMap(in, domain.RedactionModerate)
		assert.Equal(t, "short", out["password"], "key-based blanking is strict-only")
	})

	t.Run("tighter_truncation", func(t *testing.T) {
		long := strings.Repeat("y", 300)
		out := e.Redact(long, domain.RedactionStrict).(string)
		assert.True(t, strings.HasSuffix(out, "…[truncated]"))
		assert.Less(t, len(out), 300)
	})
}

func TestRedactIdempotent(t *testing.T) {
	e := NewEngine()
	in := map[string]any{
		"email":   "john.doe@example.com",
		"phone":   "+1 (555) 123-4567",
		"token":   "sk_live_abcdef123456789",
		"comment": strings.Repeat("z", 700),
		"nested": map[string]any{
			"reporter": "jane.roe@corp.example",
			"items":    []any{"alpha@beta.example", float64(7)},
		},
	}

	for _, level := range []domain.RedactionLevel{domain.RedactionModerate, domain.RedactionStrict} {
		once := e.RedactMap(in, level)
		twice := e.RedactMap(once, level)
		assert.Equal(t, once, twice, "level %d must be idempotent", level)
	}
}

func TestRedactNested(t *testing.T) {
	e := NewEngine()
	in := map[string]any{
		"outer": map[string]any{
			"inner": map[string]any{"secret_ref": "value"},
			"list":  []any{"john.doe@example.com"},
		},
	}

	out := e.RedactMap(in, domain.RedactionStrict)

	outer := out["outer"].(map[string]any)
	inner := outer["inner"].(map[string]any)
	assert.Equal(t, "[REDACTED]", inner["secret_ref"])
	list := outer["list"].([]any)
	assert.Equal(t, "***@example.com", list[0])
}

func TestRedactUnknownType(t *testing.T) {
	e := NewEngine()
	type opaque struct{ X int }

	out := e.Redact(opaque{X: 1}, domain.RedactionModerate)

	assert.Equal(t, "[REDACTED]", out, "uninterpretable values are masked, not passed through")
}

func TestRedactMapNil(t *testing.T) {
	e := NewEngine()
	assert.Nil(t, e.RedactMap(nil, domain.RedactionStrict))
}

func TestNewEngineExtraKeys(t *testing.T) {
	e := NewEngine("internal_note", "  Badge  ")
	in := map[string]any{
		"internal_note": "sensitive",
		"badge_id":      "B-123",
	}

	out := e.RedactMap(in, domain.RedactionStrict)

	require.Equal(t, "[REDACTED]", out["internal_note"])
	assert.Equal(t, "[REDACTED]", out["badge_id"], "extra keys are normalized and substring-matched")
}
