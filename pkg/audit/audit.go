// Package audit records who changed what. Writers are external collaborators;
// a failed write never aborts the mutation it describes.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Actor identifies the caller on whose behalf a mutation runs.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// System is the actor used for mutations driven by background workers.
var System = Actor{ID: "system", Role: "system"}

type actorKey struct{}

// WithActor returns a context carrying the actor on whose behalf mutations run.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, or System.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return System
}

// Event is one audit record.
type Event struct {
	Actor      Actor     `json:"actor"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Before     any       `json:"before,omitempty"`
	After      any       `json:"after,omitempty"`
	At         time.Time `json:"at"`
}

// Logger defines the interface for an audit sink.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Emit writes event to l and logs, but otherwise ignores, a failure.
func Emit(ctx context.Context, l Logger, logger *slog.Logger, event Event) {
	if l == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := l.Log(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to write audit event",
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("resource_id", event.ResourceID),
			slog.String("error", err.Error()),
		)
	}
}

// SlogLogger writes audit events as structured log records.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates an audit logger that writes to logger under the "audit" group.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// Log implements Logger.
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	l.logger.InfoContext(ctx, "audit",
		slog.Group("audit",
			slog.String("actor_id", event.Actor.ID),
			slog.String("actor_role", event.Actor.Role),
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("resource_id", event.ResourceID),
			slog.Any("before", event.Before),
			slog.Any("after", event.After),
			slog.Time("at", event.At),
		),
	)
	return nil
}

// Recorder keeps events in memory. Useful for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Log call return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Log implements Logger.
func (r *Recorder) Log(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Actions returns the recorded actions in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}
