package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hullscope.io/internal/access"
)

// Requests implements access.RequestStore. Payloads are stored as jsonb so a
// new request kind does not need a schema change.
type Requests struct {
	db *sql.DB
}

var _ access.RequestStore = (*Requests)(nil)

const requestColumns = `id, kind, coalesce(requester_id, ''), coalesce(target_org_id, ''), status, coalesce(approver_id, ''), coalesce(reason, ''), payload, created_at, decided_at`

func (s *Requests) Create(ctx context.Context, req access.AccessRequest) (access.AccessRequest, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return access.AccessRequest{}, fmt.Errorf("encode payload: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into access_requests (id, kind, requester_id, target_org_id, status, payload)
		values ($1, $2, $3, $4, $5, $6)
		returning `+requestColumns,
		req.ID, string(req.Kind), nullIfEmpty(req.RequesterID), nullIfEmpty(req.TargetOrgID), string(req.Status), payload)
	return scanRequest(row)
}

func (s *Requests) Find(ctx context.Context, id string) (access.AccessRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+requestColumns+` from access_requests where id = $1`, id)
	return scanRequest(row)
}

func (s *Requests) Claim(ctx context.Context, id string, status access.RequestStatus, approverID, reason string) (access.AccessRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		update access_requests
		set status = $2, approver_id = $3, reason = $4, decided_at = now()
		where id = $1 and status = 'pending'
		returning `+requestColumns,
		id, string(status), nullIfEmpty(approverID), nullIfEmpty(reason))
	req, err := scanRequest(row)
	if errors.Is(err, access.ErrNotFound) {
		// No pending row. Either the request does not exist, or someone
		// already decided it.
		if _, findErr := s.Find(ctx, id); findErr == nil {
			return access.AccessRequest{}, access.ErrConflict
		}
		return access.AccessRequest{}, access.ErrNotFound
	}
	return req, err
}

func (s *Requests) ListForRequester(ctx context.Context, requesterID string) ([]access.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+requestColumns+` from access_requests
		where requester_id = $1
		order by created_at, id`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []access.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row interface{ Scan(...any) error }) (access.AccessRequest, error) {
	var (
		req     access.AccessRequest
		kind    string
		status  string
		payload []byte
		decided sql.NullTime
	)
	err := row.Scan(&req.ID, &kind, &req.RequesterID, &req.TargetOrgID, &status, &req.ApproverID, &req.Reason, &payload, &req.CreatedAt, &decided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return access.AccessRequest{}, access.ErrNotFound
		}
		if pgErr, ok := maybePgError(err); ok {
			if pgErr.Code == pgErrUniqueViolation {
				return access.AccessRequest{}, access.ErrConflict
			}
			if pgErr.Code == pgErrForeignKeyViolation {
				return access.AccessRequest{}, access.ErrNotFound
			}
		}
		return access.AccessRequest{}, fmt.Errorf("scan request: %w", err)
	}
	req.Kind = access.RequestKind(kind)
	req.Status = access.RequestStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req.Payload); err != nil {
			return access.AccessRequest{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	if decided.Valid {
		t := decided.Time
		req.DecidedAt = &t
	}
	return req, nil
}
