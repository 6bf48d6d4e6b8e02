package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hullscope.io/internal/access"
)

// Audit implements access.AuditSink on an append-only table.
type Audit struct {
	db *sql.DB
}

var _ access.AuditSink = (*Audit)(nil)

func (s *Audit) Append(ctx context.Context, event access.Event) error {
	var fields []byte
	if len(event.Fields) > 0 {
		var err error
		fields, err = json.Marshal(event.Fields)
		if err != nil {
			return fmt.Errorf("encode fields: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_events (id, occurred_at, actor_id, action, resource_type, resource_id, fields)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.OccurredAt, nullIfEmpty(event.ActorID), event.Action,
		nullIfEmpty(event.ResourceType), nullIfEmpty(event.ResourceID), nullableJSON(fields))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return access.ErrConflict
		}
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events, most recent first. Used by the events
// backlog on the streaming endpoint.
func (s *Audit) Recent(ctx context.Context, limit int) ([]access.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, occurred_at, coalesce(actor_id, ''), action, coalesce(resource_type, ''), coalesce(resource_id, ''), fields
		from audit_events
		order by occurred_at desc, id desc
		limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []access.Event
	for rows.Next() {
		var (
			event  access.Event
			fields []byte
		)
		if err := rows.Scan(&event.ID, &event.OccurredAt, &event.ActorID, &event.Action, &event.ResourceType, &event.ResourceID, &fields); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &event.Fields); err != nil {
				return nil, fmt.Errorf("decode fields: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
