// Package redact sanitizes audit event payloads per a declared redaction
// level before they are hashed or stored.
//
// Redaction is deterministic and idempotent: the same input and level
// always yield the same output, and re-redacting an already redacted value
// is a no-op. Both properties matter because redacted payloads feed the
// hash chain.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"deskaudit/internal/domain"
)

const (
	fullMask        = "[REDACTED]"
	truncatedSuffix = "…[truncated]"

	// Free-text truncation thresholds per level.
	moderateMaxText = 500
	strictMaxText   = 200
)

// defaultSensitiveKeys are matched case-insensitively as substrings of
// field names. Values under matching keys are fully redacted at the strict
// level.
var defaultSensitiveKeys = []string{
	"password", "passwd", "secret", "token", "apikey", "api_key",
	"ssn", "social", "creditcard", "credit_card", "cardnumber", "cvv",
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// The boundary groups keep digit runs embedded in identifiers (API
	// keys, hashed email locals) from being treated as phone numbers.
	phoneRe = regexp.MustCompile(`(^|[^0-9A-Za-z@.])(\+?[0-9][0-9()\-\s.]{5,}[0-9])($|[^0-9A-Za-z@])`)
	// Candidate alphabet for opaque secrets (API keys, bearer tokens,
	// session ids); isOpaqueToken adds the letter+digit mix requirement.
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_\-.]{16,}$`)
	hex8Re  = regexp.MustCompile(`^[0-9a-f]{8}$`)
)

// Engine applies graduated redaction policies to arbitrary structured data.
type Engine struct {
	sensitiveKeys []string
}

// NewEngine creates a redaction engine. extraKeys extend the built-in
// sensitive-field-name list (matched case-insensitively as substrings).
func NewEngine(extraKeys ...string) *Engine {
	keys := make([]string, 0, len(defaultSensitiveKeys)+len(extraKeys))
	keys = append(keys, defaultSensitiveKeys...)
	for _, k := range extraKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keys = append(keys, k)
		}
	}
	return &Engine{sensitiveKeys: keys}
}

// Redact sanitizes data per the given level, recursing depth-first over
// nested maps and slices. Level 0 returns the input unchanged. Values the
// engine cannot interpret are redacted conservatively (fully masked)
// rather than failing the event.
func (e *Engine) Redact(data any, level domain.RedactionLevel) any {
	if level <= domain.RedactionNone {
		return data
	}
	return e.redactValue("", data, level)
}

// RedactMap sanitizes a payload map, preserving nil for nil input so the
// stored form distinguishes "absent" from "empty".
func (e *Engine) RedactMap(data map[string]any, level domain.RedactionLevel) map[string]any {
	if data == nil || level <= domain.RedactionNone {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = e.redactValue(k, v, level)
	}
	return out
}

func (e *Engine) redactValue(key string, v any, level domain.RedactionLevel) any {
	if level >= domain.RedactionStrict && key != "" && e.isSensitiveKey(key) {
		return fullMask
	}

	switch val := v.(type) {
	case nil:
		return nil
	case bool, float64, float32, int, int32, int64, uint, uint32, uint64:
		return val
	case string:
		return e.redactString(val, level)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = e.redactValue(k, nested, level)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = e.redactValue(key, nested, level)
		}
		return out
	default:
		// Unknown shape: treat as sensitive rather than guess.
		return fullMask
	}
}

func (e *Engine) isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range e.sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (e *Engine) redactString(s string, level domain.RedactionLevel) string {
	if s == fullMask {
		return s
	}

	s = emailRe.ReplaceAllStringFunc(s, func(m string) string {
		return maskEmail(m, level)
	})
	s = phoneRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := phoneRe.FindStringSubmatch(m)
		return sub[1] + maskPhone(sub[2], level) + sub[3]
	})

	// Truncation runs before the token check so overlong unbroken text is
	// cut down rather than collapsed to a short token mask; the suffix
	// falls outside the token alphabet, so truncated strings never
	// re-match.
	maxLen := moderateMaxText
	if level >= domain.RedactionStrict {
		maxLen = strictMaxText
	}
	if len(s) > maxLen && !strings.HasSuffix(s, truncatedSuffix) {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + truncatedSuffix
	}

	if isOpaqueToken(s) {
		s = maskToken(s)
	}
	return s
}

// isOpaqueToken reports whether s looks like a machine-generated secret:
// an unbroken run of token characters mixing letters and digits. Uniform
// runs and digit-free prose are left for truncation to handle.
func isOpaqueToken(s string) bool {
	if !tokenRe.MatchString(s) {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}

// maskEmail reduces an email to a pseudonymous or anonymous form. At the
// moderate level the local part becomes an 8-hex SHA-256 prefix (the
// domain is kept, so per-user activity stays correlatable without exposing
// the address); at the strict level the local part is dropped entirely.
func maskEmail(email string, level domain.RedactionLevel) string {
	at := strings.LastIndex(email, "@")
	local, dom := email[:at], email[at+1:]

	if level >= domain.RedactionStrict {
		return "***@" + dom
	}
	// Already-hashed local parts pass through, keeping redaction idempotent.
	if hex8Re.MatchString(local) {
		return email
	}
	sum := sha256.Sum256([]byte(local))
	return hex.EncodeToString(sum[:4]) + "@" + dom
}

// maskPhone masks phone digits, keeping the first 3 and last 2 visible at
// the moderate level and none at the strict level. Non-digit formatting
// characters are preserved. Runs with fewer than 7 digits are left alone —
// they are more likely quantities than phone numbers.
func maskPhone(m string, level domain.RedactionLevel) string {
	digits := 0
	for _, r := range m {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 {
		return m
	}

	keepHead, keepTail := 3, 2
	if level >= domain.RedactionStrict {
		keepHead, keepTail = 0, 0
	}

	out := []rune(m)
	seen := 0
	for i, r := range out {
		if r < '0' || r > '9' {
			continue
		}
		seen++
		if seen <= keepHead || seen > digits-keepTail {
			continue
		}
		out[i] = '*'
	}
	return string(out)
}

// maskToken keeps the first and last 4 characters of an opaque secret
// visible. The masked form contains '*' so it no longer matches the token
// pattern, keeping the operation idempotent.
func maskToken(s string) string {
	return s[:4] + strings.Repeat("*", 4) + s[len(s)-4:]
}
