// Package api implements the admin HTTP surface over the audit core:
// entry queries, chain verification, DLQ maintenance, and export. It holds
// no chain logic of its own.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"deskaudit/internal/domain"
	"deskaudit/internal/hashchain"
	auditsvc "deskaudit/internal/service/audit"
)

// queryService defines the read operations used by the API handler.
type queryService interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, int64, error)
	Get(ctx context.Context, id string) (*domain.AuditLogEntry, error)
	ListVerifications(ctx context.Context, page domain.PageRequest) ([]domain.ChainVerificationResult, int64, error)
	ListDLQ(ctx context.Context, page domain.PageRequest) ([]domain.DLQEntry, int64, error)
}

// verifierService defines the verification operations used by the handler.
type verifierService interface {
	VerifyRange(ctx context.Context, start, end time.Time) (*domain.ChainVerificationResult, error)
	VerifyEntireChain(ctx context.Context) (*domain.ChainVerificationResult, error)
}

// dlqService defines the DLQ maintenance operations used by the handler.
type dlqService interface {
	RetryDLQEvents(ctx context.Context, maxRetries int) (*auditsvc.RetryStats, error)
}

// exporterService defines the export operation used by the handler.
type exporterService interface {
	Export(ctx context.Context, w io.Writer, format string, filter domain.AuditFilter) (int, error)
}

// Handler serves the admin API.
type Handler struct {
	query      queryService
	verifier   verifierService
	dlq        dlqService
	exporter   exporterService
	maxRetries int
	log        *slog.Logger
}

// NewHandler creates the admin API handler.
func NewHandler(query queryService, verifier verifierService, dlq dlqService, exporter exporterService, maxRetries int, log *slog.Logger) *Handler {
	return &Handler{
		query:      query,
		verifier:   verifier,
		dlq:        dlq,
		exporter:   exporter,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/audit/entries", h.listEntries)
	r.Get("/audit/entries/{id}", h.getEntry)
	r.Get("/audit/export", h.exportEntries)
	r.Post("/audit/verify", h.verify)
	r.Get("/audit/verifications", h.listVerifications)
	r.Get("/audit/dlq", h.listDLQ)
	r.Post("/audit/dlq/retry", h.retryDLQ)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, total, err := h.query.List(r.Context(), filter)
	if err != nil {
		h.logInternal(r, err)
		writeError(w, err)
		return
	}

	data := make([]auditEntryDTO, len(entries))
	for i := range entries {
		data[i] = entryToDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, paginated[auditEntryDTO]{
		Data:          data,
		NextPageToken: domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total),
		Total:         total,
	})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.query.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logInternal(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entryToDTO(entry))
}

// verifyRequest selects either a time range or a full-chain scan.
type verifyRequest struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Full  bool       `json:"full,omitempty"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var result *domain.ChainVerificationResult
	var err error
	switch {
	case req.Full:
		result, err = h.verifier.VerifyEntireChain(r.Context())
	case req.Start != nil && req.End != nil:
		result, err = h.verifier.VerifyRange(r.Context(), *req.Start, *req.End)
	default:
		writeError(w, domain.ErrValidation("either full=true or both start and end are required"))
		return
	}
	if err != nil {
		h.logInternal(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verificationToDTO(result))
}

func (h *Handler) listVerifications(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	results, total, err := h.query.ListVerifications(r.Context(), page)
	if err != nil {
		h.logInternal(r, err)
		writeError(w, err)
		return
	}
	data := make([]verificationDTO, len(results))
	for i := range results {
		data[i] = verificationToDTO(&results[i])
	}
	writeJSON(w, http.StatusOK, paginated[verificationDTO]{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
		Total:         total,
	})
}

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	entries, total, err := h.query.ListDLQ(r.Context(), page)
	if err != nil {
		h.logInternal(r, err)
		writeError(w, err)
		return
	}
	data := make([]dlqEntryDTO, len(entries))
	for i := range entries {
		data[i] = dlqEntryToDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, paginated[dlqEntryDTO]{
		Data:          data,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
		Total:         total,
	})
}

func (h *Handler) retryDLQ(w http.ResponseWriter, r *http.Request) {
	if a, ok := domain.ActorFromContext(r.Context()); !ok || !a.IsAdmin {
		writeError(w, domain.ErrAccessDenied("admin privileges required"))
		return
	}

	maxRetries := h.maxRetries
	if v := r.URL.Query().Get("maxRetries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, domain.ErrValidation("invalid maxRetries %q", v))
			return
		}
		maxRetries = n
	}

	stats, err := h.dlq.RetryDLQEvents(r.Context(), maxRetries)
	if err != nil {
		h.logInternal(r, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) exportEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = auditsvc.FormatJSONL
	}

	switch format {
	case auditsvc.FormatJSONL:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.jsonl"`)
	case auditsvc.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	default:
		writeError(w, domain.ErrValidation("unsupported export format %q", format))
		return
	}

	if _, err := h.exporter.Export(r.Context(), w, format, filter); err != nil {
		// Headers may already be sent — log and cut the stream.
		h.log.Error("audit export failed", "error", err)
	}
}

func (h *Handler) logInternal(r *http.Request, err error) {
	if httpStatusFromDomainError(err) == http.StatusInternalServerError {
		h.log.Error("admin API internal error",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// === request parsing ===

func filterFromQuery(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()
	filter := domain.AuditFilter{Page: pageFromQuery(r)}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, domain.ErrValidation("invalid %s timestamp %q: use RFC 3339", name, v)
			}
			*dst = &t
		}
	}
	if v := q.Get("action"); v != "" {
		filter.Action = &v
	}
	if v := q.Get("actorEmail"); v != "" {
		filter.ActorEmail = &v
	}
	if v := q.Get("entityType"); v != "" {
		filter.EntityType = &v
	}
	if v := q.Get("entityId"); v != "" {
		filter.EntityID = &v
	}
	return filter, nil
}

func pageFromQuery(r *http.Request) domain.PageRequest {
	q := r.URL.Query()
	page := domain.PageRequest{PageToken: q.Get("pageToken")}
	if v := q.Get("maxResults"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.MaxResults = n
		}
	}
	return page
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// === DTOs ===

type paginated[T any] struct {
	Data          []T    `json:"data"`
	NextPageToken string `json:"nextPageToken,omitempty"`
	Total         int64  `json:"total"`
}

type auditEntryDTO struct {
	ID               string         `json:"id"`
	Timestamp        string         `json:"ts"`
	Action           string         `json:"action"`
	ActorID          string         `json:"actorId,omitempty"`
	ActorEmail       string         `json:"actorEmail,omitempty"`
	ActorType        string         `json:"actorType,omitempty"`
	ImpersonatedUser string         `json:"impersonatedUser,omitempty"`
	EntityType       string         `json:"entityType"`
	EntityID         string         `json:"entityId"`
	TargetID         string         `json:"targetId,omitempty"`
	RequestID        string         `json:"requestId,omitempty"`
	CorrelationID    string         `json:"correlationId,omitempty"`
	IP               string         `json:"ip,omitempty"`
	UserAgent        string         `json:"userAgent,omitempty"`
	PrevValues       map[string]any `json:"prevValues,omitempty"`
	NewValues        map[string]any `json:"newValues,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	RedactionLevel   int            `json:"redactionLevel"`
	PrevHash         string         `json:"prevHash"`
	Hash             string         `json:"hash"`
}

func entryToDTO(e *domain.AuditLogEntry) auditEntryDTO {
	return auditEntryDTO{
		ID:               e.ID,
		Timestamp:        e.Timestamp.UTC().Format(hashchain.TimestampFormat),
		Action:           e.Action,
		ActorID:          e.ActorID,
		ActorEmail:       e.ActorEmail,
		ActorType:        e.ActorType,
		ImpersonatedUser: e.ImpersonatedUser,
		EntityType:       e.EntityType,
		EntityID:         e.EntityID,
		TargetID:         e.TargetID,
		RequestID:        e.RequestID,
		CorrelationID:    e.CorrelationID,
		IP:               e.IP,
		UserAgent:        e.UserAgent,
		PrevValues:       e.PrevValues,
		NewValues:        e.NewValues,
		Metadata:         e.Metadata,
		RedactionLevel:   int(e.RedactionLevel),
		PrevHash:         e.PrevHash,
		Hash:             e.Hash,
	}
}

type verificationDTO struct {
	ID              string `json:"id"`
	RangeStart      string `json:"rangeStart,omitempty"`
	RangeEnd        string `json:"rangeEnd,omitempty"`
	TotalEntries    int    `json:"totalEntries"`
	VerifiedEntries int    `json:"verifiedEntries"`
	Status          string `json:"status"`
	FirstFailureID  string `json:"firstFailureId,omitempty"`
	FirstFailureTS  string `json:"firstFailureTs,omitempty"`
	ExpectedHash    string `json:"expectedHash,omitempty"`
	ActualHash      string `json:"actualHash,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func verificationToDTO(v *domain.ChainVerificationResult) verificationDTO {
	dto := verificationDTO{
		ID:              v.ID,
		TotalEntries:    v.TotalEntries,
		VerifiedEntries: v.VerifiedEntries,
		Status:          string(v.Status),
		FirstFailureID:  v.FirstFailureID,
		ExpectedHash:    v.ExpectedHash,
		ActualHash:      v.ActualHash,
		CreatedAt:       v.CreatedAt.UTC().Format(hashchain.TimestampFormat),
	}
	if v.RangeStart != nil {
		dto.RangeStart = v.RangeStart.UTC().Format(hashchain.TimestampFormat)
	}
	if v.RangeEnd != nil {
		dto.RangeEnd = v.RangeEnd.UTC().Format(hashchain.TimestampFormat)
	}
	if v.FirstFailureTS != nil {
		dto.FirstFailureTS = v.FirstFailureTS.UTC().Format(hashchain.TimestampFormat)
	}
	return dto
}

type dlqEntryDTO struct {
	ID          string `json:"id"`
	Reason      string `json:"reason"`
	RetryCount  int    `json:"retryCount"`
	LastRetryAt string `json:"lastRetryAt,omitempty"`
	LastError   string `json:"lastError,omitempty"`
	Exhausted   bool   `json:"exhausted"`
	CreatedAt   string `json:"createdAt"`
}

func dlqEntryToDTO(e *domain.DLQEntry) dlqEntryDTO {
	dto := dlqEntryDTO{
		ID:         e.ID,
		Reason:     e.Reason,
		RetryCount: e.RetryCount,
		LastError:  e.LastError,
		Exhausted:  e.RetryCount >= auditsvc.DefaultMaxRetries,
		CreatedAt:  e.CreatedAt.UTC().Format(hashchain.TimestampFormat),
	}
	if e.LastRetryAt != nil {
		dto.LastRetryAt = e.LastRetryAt.UTC().Format(hashchain.TimestampFormat)
	}
	return dto
}
