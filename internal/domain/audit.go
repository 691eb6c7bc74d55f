package domain

import "time"

// GenesisHash is the prev-hash sentinel carried by the first entry ever
// written to the chain.
const GenesisHash = "GENESIS"

// RedactionLevel controls how aggressively sensitive fields are masked
// before an event is hashed and stored.
type RedactionLevel int

const (
	// RedactionNone stores payloads verbatim.
	RedactionNone RedactionLevel = 0
	// RedactionModerate hashes email local parts, partially masks phone
	// numbers and secrets, and truncates long free text.
	RedactionModerate RedactionLevel = 1
	// RedactionStrict reduces emails to their domain, fully masks phone
	// digits, and blanks any field with a sensitive-looking key.
	RedactionStrict RedactionLevel = 2
)

// Valid reports whether the level is one of the defined levels.
func (l RedactionLevel) Valid() bool {
	return l >= RedactionNone && l <= RedactionStrict
}

// Audit action taxonomy. Collaborators pass these as AuditEvent.Action;
// free-form actions are accepted but the known set is preferred.
const (
	ActionTicketCreated       = "ticket.created"
	ActionTicketUpdated       = "ticket.updated"
	ActionTicketAssigned      = "ticket.assigned"
	ActionTicketStatusChanged = "ticket.status_changed"
	ActionTicketClosed        = "ticket.closed"
	ActionCommentCreated      = "comment.created"
	ActionUserLogin           = "user.login"
	ActionUserLogout          = "user.logout"
	ActionUserLoginFailed     = "user.login_failed"
	ActionSettingsUpdated     = "settings.updated"
	ActionAutomationRuleFired = "automation.rule_fired"
	ActionAICategorized       = "ai.categorized"
	ActionChainVerified       = "audit.chain.verified"
	ActionChainWarning        = "audit.chain.warning"
	ActionAuditExport         = "audit.export"
	ActionDLQRetried          = "dlq.retried"
)

// AuditEvent is the transient input to the audit logger. Actor fields left
// empty are resolved from the caller's context; a zero Timestamp defaults
// to now. JSON tags define the DLQ serialization format.
type AuditEvent struct {
	Action           string          `json:"action"`
	ActorID          string          `json:"actorId,omitempty"`
	ActorEmail       string          `json:"actorEmail,omitempty"`
	ActorType        string          `json:"actorType,omitempty"`
	ImpersonatedUser string          `json:"impersonatedUser,omitempty"`
	EntityType       string          `json:"entityType"`
	EntityID         string          `json:"entityId"`
	TargetID         string          `json:"targetId,omitempty"`
	RequestID        string          `json:"requestId,omitempty"`
	CorrelationID    string          `json:"correlationId,omitempty"`
	IP               string          `json:"ip,omitempty"`
	UserAgent        string          `json:"userAgent,omitempty"`
	PrevValues       map[string]any  `json:"prevValues,omitempty"`
	NewValues        map[string]any  `json:"newValues,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	RedactionLevel   *RedactionLevel `json:"redactionLevel,omitempty"` // nil → system default
	Timestamp        time.Time       `json:"ts,omitempty"`
}

// AuditLogEntry is a persisted, immutable audit record. Once written it is
// never updated or deleted; any mutation invalidates its hash.
type AuditLogEntry struct {
	ID               string
	Seq              int64 // storage insertion order, assigned on append
	Timestamp        time.Time
	Action           string
	ActorID          string
	ActorEmail       string
	ActorType        string
	ImpersonatedUser string
	EntityType       string
	EntityID         string
	TargetID         string
	RequestID        string
	CorrelationID    string
	IP               string
	UserAgent        string
	PrevValues       map[string]any
	NewValues        map[string]any
	Metadata         map[string]any
	RedactionLevel   RedactionLevel
	PrevHash         string
	Hash             string
}

// ChainStatus is the outcome of a chain verification run.
type ChainStatus string

const (
	ChainValid   ChainStatus = "valid"
	ChainInvalid ChainStatus = "invalid"
	ChainPartial ChainStatus = "partial"
)

// ChainVerificationResult records the outcome of one verification pass.
// FirstFailure fields are only set when Status is invalid; verification
// stops at the first break, so entries after it are not re-verified.
type ChainVerificationResult struct {
	ID              string
	RangeStart      *time.Time // nil for a full-chain scan
	RangeEnd        *time.Time
	TotalEntries    int
	VerifiedEntries int
	Status          ChainStatus
	FirstFailureID  string
	FirstFailureTS  *time.Time
	ExpectedHash    string
	ActualHash      string
	CreatedAt       time.Time
}

// DLQEntry holds an audit event that failed to persist, awaiting bounded
// retry. Entries that exhaust their retries stay unresolved for manual
// operator action.
type DLQEntry struct {
	ID          string
	Payload     []byte // JSON-serialized AuditEvent
	Reason      string
	RetryCount  int
	LastRetryAt *time.Time
	LastError   string
	Resolved    bool
	CreatedAt   time.Time
}

// AuditFilter holds the optional filters for listing audit log entries.
type AuditFilter struct {
	From       *time.Time
	To         *time.Time
	Action     *string
	ActorEmail *string
	EntityType *string
	EntityID   *string
	Page       PageRequest
}
