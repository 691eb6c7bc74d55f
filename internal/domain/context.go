package domain

import "context"

// Actor types recorded on audit entries.
const (
	ActorTypeUser    = "user"
	ActorTypeAgent   = "agent"
	ActorTypeService = "service"
	ActorTypeSystem  = "system"
)

// SystemActor is the fixed identity attributed to automation and
// background-job events when no caller identity is in scope.
var SystemActor = Actor{
	ID:    "system",
	Email: "system@deskaudit.local",
	Type:  ActorTypeSystem,
}

// Actor identifies who performed an audited action. IsAdmin is an
// authorization attribute for the admin API; it is never hashed or stored.
type Actor struct {
	ID      string
	Email   string
	Type    string
	IsAdmin bool
}

type actorKey struct{}

type correlationKey struct{}

// Correlation carries the request and correlation identifiers for one
// logical task through its call tree.
type Correlation struct {
	RequestID     string
	CorrelationID string
}

// WithActor stores an actor in the context. Fields left empty on the new
// actor are inherited from any actor already present, so nested calls can
// narrow identity without losing what the outer scope established.
func WithActor(ctx context.Context, a Actor) context.Context {
	if existing, ok := ActorFromContext(ctx); ok {
		if a.ID == "" {
			a.ID = existing.ID
		}
		if a.Email == "" {
			a.Email = existing.Email
		}
		if a.Type == "" {
			a.Type = existing.Type
		}
	}
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext extracts the actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ResolveActor returns the actor in scope, falling back to SystemActor when
// none is present (automation and cron paths). A missing actor is not an
// error.
func ResolveActor(ctx context.Context) Actor {
	if a, ok := ActorFromContext(ctx); ok {
		return a
	}
	return SystemActor
}

// WithSystemActor stores the system actor in the context and seeds fresh
// request/correlation ids if none exist. Scheduled jobs and automation
// handlers wrap their work in this.
func WithSystemActor(ctx context.Context) context.Context {
	return EnsureCorrelation(context.WithValue(ctx, actorKey{}, SystemActor))
}

// WithNamedActor stores the given identity in the context and seeds fresh
// request/correlation ids if none exist. Request handlers wrap downstream
// work in this once authentication has resolved the caller.
func WithNamedActor(ctx context.Context, email, id, actorType string) context.Context {
	return EnsureCorrelation(WithActor(ctx, Actor{ID: id, Email: email, Type: actorType}))
}

// WithCorrelation stores request/correlation identifiers in the context.
func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

// CorrelationFromContext extracts the correlation identifiers from the
// context.
func CorrelationFromContext(ctx context.Context) (Correlation, bool) {
	c, ok := ctx.Value(correlationKey{}).(Correlation)
	return c, ok
}

// EnsureCorrelation returns a context that carries request/correlation ids,
// generating fresh ones when absent.
func EnsureCorrelation(ctx context.Context) context.Context {
	if c, ok := CorrelationFromContext(ctx); ok && c.RequestID != "" && c.CorrelationID != "" {
		return ctx
	}
	c, _ := CorrelationFromContext(ctx)
	if c.RequestID == "" {
		c.RequestID = NewID()
	}
	if c.CorrelationID == "" {
		c.CorrelationID = NewID()
	}
	return WithCorrelation(ctx, c)
}
