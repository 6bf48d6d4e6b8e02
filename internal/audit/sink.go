package audit

import (
	"context"
	"sync"
	"time"

	"hullscope.io/internal/access"
	"hullscope.io/internal/ids"
)

// Publisher receives every appended event for live fan-out.
type Publisher interface {
	Publish(evt access.Event)
}

// recentKeep bounds the in-process backlog kept for log-only sinks.
const recentKeep = 64

// Sink implements access.AuditSink. Every event is written to the structured
// log; when a durable store or a publisher is configured the event also goes
// there. Log failures never fail the calling operation.
type Sink struct {
	store access.AuditSink
	pub   Publisher

	mu     sync.Mutex
	recent []access.Event
}

// NewSink builds a sink. Both store and pub may be nil.
func NewSink(store access.AuditSink, pub Publisher) *Sink {
	return &Sink{store: store, pub: pub}
}

// Append stamps, logs, persists and publishes the event.
func (s *Sink) Append(ctx context.Context, evt access.Event) error {
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if actorID, ok := access.PrincipalIDFromContext(ctx); ok && evt.ActorID == "" {
		evt.ActorID = actorID
	}

	fields := map[string]any{
		"actor_id":      evt.ActorID,
		"resource_type": evt.ResourceType,
		"resource_id":   evt.ResourceID,
	}
	for k, v := range evt.Fields {
		fields[k] = v
	}
	_ = LogEvent(ctx, evt.Action, fields)

	if s.store != nil {
		if err := s.store.Append(ctx, evt); err != nil {
			return err
		}
	}
	s.remember(evt)
	if s.pub != nil {
		s.pub.Publish(evt)
	}
	return nil
}

func (s *Sink) remember(evt access.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) == recentKeep {
		copy(s.recent, s.recent[1:])
		s.recent[len(s.recent)-1] = evt
		return
	}
	s.recent = append(s.recent, evt)
}

// Recent returns the event backlog, newest first. A durable store answers
// when one is configured; otherwise the in-process buffer does, so log-only
// deployments still get replay.
func (s *Sink) Recent(ctx context.Context, limit int) ([]access.Event, error) {
	if backlog, ok := s.store.(interface {
		Recent(ctx context.Context, limit int) ([]access.Event, error)
	}); ok {
		return backlog.Recent(ctx, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]access.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}
