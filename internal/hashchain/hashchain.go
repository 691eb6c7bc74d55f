// Package hashchain canonicalizes audit log entries and maintains the
// SHA-256 hash chain that makes the audit trail tamper-evident.
//
// Every entry's hash is computed over its own canonical form plus the
// previous entry's hash, so a silent retroactive edit to any stored field
// breaks recomputation at that entry and every linkage after it.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"deskaudit/internal/domain"
)

// TimestampFormat is the wire format for entry timestamps, normalized to
// UTC. Round-tripping through this format must be the identity, because
// the formatted string is hash input.
const TimestampFormat = time.RFC3339Nano

// Canonicalize produces the stable string representation of an entry used
// as hash input: a fixed field list excluding Hash/PrevHash (and the
// storage-assigned Seq), JSON-serialized with lexicographically sorted keys
// and the timestamp normalized to UTC RFC 3339.
//
// Nested payload maps rely on encoding/json's sorted map-key order, which
// holds at every nesting depth. Payloads must already be JSON-native
// (maps, slices, strings, float64, bool, nil) for write-time and read-time
// canonical forms to agree; the logger guarantees this by normalizing
// payloads before hashing.
func Canonicalize(e *domain.AuditLogEntry) (string, error) {
	m := map[string]any{
		"id":               e.ID,
		"ts":               e.Timestamp.UTC().Format(TimestampFormat),
		"action":           e.Action,
		"actorId":          e.ActorID,
		"actorEmail":       e.ActorEmail,
		"actorType":        e.ActorType,
		"impersonatedUser": e.ImpersonatedUser,
		"entityType":       e.EntityType,
		"entityId":         e.EntityID,
		"targetId":         e.TargetID,
		"requestId":        e.RequestID,
		"correlationId":    e.CorrelationID,
		"ip":               e.IP,
		"userAgent":        e.UserAgent,
		"prevValues":       e.PrevValues,
		"newValues":        e.NewValues,
		"metadata":         e.Metadata,
		"redactionLevel":   int(e.RedactionLevel),
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("canonicalize entry %s: %w", e.ID, err)
	}
	return string(b), nil
}

// ComputeHash returns the hex SHA-256 digest of prevHash + Canonicalize(e).
func ComputeHash(e *domain.AuditLogEntry, prevHash string) (string, error) {
	canonical, err := Canonicalize(e)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(prevHash + canonical))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyEntryHash checks a single entry's self-consistency: its stored hash
// must equal the hash recomputed from its content and stored PrevHash.
// Returns the expected (recomputed) hash for reporting.
func VerifyEntryHash(e *domain.AuditLogEntry) (bool, string, error) {
	expected, err := ComputeHash(e, e.PrevHash)
	if err != nil {
		return false, "", err
	}
	return expected == e.Hash, expected, nil
}

// VerifyChain walks entries in order, checking that each entry's stored
// PrevHash equals the previous entry's hash and that each entry's hash
// recomputes from its content. anchor is the expected PrevHash of the
// first entry (domain.GenesisHash for a full scan, the preceding entry's
// hash for a range); pass "" to skip the anchor check.
//
// Verification stops at the first break: entries after it are counted in
// TotalEntries but not in VerifiedEntries.
func VerifyChain(entries []domain.AuditLogEntry, anchor string) domain.ChainVerificationResult {
	result := domain.ChainVerificationResult{
		TotalEntries: len(entries),
		Status:       domain.ChainValid,
	}
	if len(entries) == 0 {
		result.Status = domain.ChainPartial
		return result
	}

	prev := anchor
	for i := range entries {
		e := &entries[i]

		if prev != "" && e.PrevHash != prev {
			return failAt(result, e, prev, e.PrevHash, i)
		}

		ok, expected, err := VerifyEntryHash(e)
		if err != nil {
			return failAt(result, e, "", "", i)
		}
		if !ok {
			return failAt(result, e, expected, e.Hash, i)
		}

		prev = e.Hash
		result.VerifiedEntries = i + 1
	}
	return result
}

func failAt(result domain.ChainVerificationResult, e *domain.AuditLogEntry, expected, actual string, index int) domain.ChainVerificationResult {
	ts := e.Timestamp
	result.Status = domain.ChainInvalid
	result.VerifiedEntries = index
	result.FirstFailureID = e.ID
	result.FirstFailureTS = &ts
	result.ExpectedHash = expected
	result.ActualHash = actual
	return result
}
