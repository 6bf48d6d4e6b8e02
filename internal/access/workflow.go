package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Workflow is the request/approve/reject state machine for permission
// changes, resource access and account creation. Approvers are authorized by
// the evaluator; approved changes are applied through the same guarded paths
// direct mutations take, so escalation rules bind approvals too.
type Workflow struct {
	requests  RequestStore
	directory *Directory
	dirStore  DirectoryStore
	ledgers   *Ledgers
	shares    ShareStore
	grants    GrantStore
	ownership OwnershipStore
	eval      *Evaluator
	audit     AuditSink
}

// NewWorkflow constructs the workflow service.
func NewWorkflow(requests RequestStore, directory *Directory, dirStore DirectoryStore, ledgers *Ledgers, shares ShareStore, grants GrantStore, ownership OwnershipStore, eval *Evaluator, audit AuditSink) (*Workflow, error) {
	if requests == nil || directory == nil || dirStore == nil || ledgers == nil || shares == nil || grants == nil || ownership == nil || eval == nil || audit == nil {
		return nil, errors.New("access: workflow requires all collaborators")
	}
	return &Workflow{
		requests:  requests,
		directory: directory,
		dirStore:  dirStore,
		ledgers:   ledgers,
		shares:    shares,
		grants:    grants,
		ownership: ownership,
		eval:      eval,
		audit:     audit,
	}, nil
}

// Submit files a pending request. Account requests may be anonymous
// (requesterID empty); everything else needs an authenticated requester.
func (w *Workflow) Submit(ctx context.Context, requesterID string, kind RequestKind, payload RequestPayload) (AccessRequest, error) {
	requesterID = strings.TrimSpace(requesterID)

	req := AccessRequest{
		Kind:        kind,
		RequesterID: requesterID,
		Status:      StatusPending,
		Payload:     payload,
	}

	switch kind {
	case RequestRoleChange:
		if requesterID == "" {
			return AccessRequest{}, fmt.Errorf("%w: role changes need an authenticated requester", ErrInvalidInput)
		}
		payload.TargetUserID = strings.TrimSpace(payload.TargetUserID)
		if payload.TargetUserID == "" {
			return AccessRequest{}, fmt.Errorf("%w: target user is required", ErrInvalidInput)
		}
		if !payload.RequestedRole.Valid() {
			return AccessRequest{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, payload.RequestedRole)
		}
		target, err := w.dirStore.Lookup(ctx, payload.TargetUserID)
		if err != nil {
			return AccessRequest{}, err
		}
		req.TargetOrgID = target.OrgID

	case RequestResourceAccess:
		if requesterID == "" {
			return AccessRequest{}, fmt.Errorf("%w: access requests need an authenticated requester", ErrInvalidInput)
		}
		ref, err := resourceAccessRef(&payload)
		if err != nil {
			return AccessRequest{}, err
		}
		owner, err := w.ownership.Resolve(ctx, ref)
		if err != nil {
			return AccessRequest{}, err
		}
		req.TargetOrgID = owner.OrgID

	case RequestAccount:
		payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))
		if payload.Email == "" || !strings.Contains(payload.Email, "@") {
			return AccessRequest{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		if pw := strings.TrimSpace(payload.Password); pw != "" {
			hash, err := HashPassword(pw)
			if err != nil {
				return AccessRequest{}, err
			}
			payload.PasswordHash = hash
		}
		payload.Password = ""
		req.TargetOrgID = strings.TrimSpace(payload.OrgID)

	default:
		return AccessRequest{}, fmt.Errorf("%w: unknown request kind %q", ErrInvalidInput, kind)
	}

	req.Payload = payload
	created, err := w.requests.Create(ctx, req)
	if err != nil {
		return AccessRequest{}, err
	}
	_ = w.audit.Append(ctx, Event{
		ActorID:      requesterID,
		Action:       "access.request.submit",
		ResourceType: string(KindRequest),
		ResourceID:   created.ID,
		Fields:       map[string]string{"kind": string(kind)},
	})
	return created, nil
}

// Decide transitions a pending request to approved or rejected, exactly once.
// The approver must administer the request's target organization. Approvals
// are pre-validated against the self-escalation guard before the pending row
// is claimed, so a guard-violating approval fails outright and leaves the
// request pending.
func (w *Workflow) Decide(ctx context.Context, requestID, approverID string, approve bool, reason string) (AccessRequest, error) {
	requestID = strings.TrimSpace(requestID)
	approverID = strings.TrimSpace(approverID)
	if requestID == "" || approverID == "" {
		return AccessRequest{}, fmt.Errorf("%w: request and approver ids are required", ErrInvalidInput)
	}

	req, err := w.requests.Find(ctx, requestID)
	if err != nil {
		return AccessRequest{}, err
	}
	if req.Status != StatusPending {
		return AccessRequest{}, fmt.Errorf("%w: request %s already %s", ErrConflict, req.ID, req.Status)
	}

	ok, err := w.eval.CanAdministerOrg(ctx, approverID, req.TargetOrgID)
	if err != nil {
		return AccessRequest{}, err
	}
	if !ok {
		return AccessRequest{}, ErrUnauthorized
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
		if err := w.prevalidate(ctx, req, approverID); err != nil {
			return AccessRequest{}, err
		}
	}

	claimed, err := w.requests.Claim(ctx, requestID, status, approverID, strings.TrimSpace(reason))
	if err != nil {
		return AccessRequest{}, err
	}

	if approve {
		if err := w.apply(ctx, claimed, approverID); err != nil {
			return AccessRequest{}, err
		}
	}

	_ = w.audit.Append(ctx, Event{
		ActorID:      approverID,
		Action:       "access.request.decide",
		ResourceType: string(KindRequest),
		ResourceID:   claimed.ID,
		Fields: map[string]string{
			"kind":   string(claimed.Kind),
			"status": string(claimed.Status),
		},
	})
	return claimed, nil
}

// prevalidate checks an approval's side effect before the pending row is
// claimed, so decision-relevant failures (the guard above all) surface while
// the request is still pending.
func (w *Workflow) prevalidate(ctx context.Context, req AccessRequest, approverID string) error {
	switch req.Kind {
	case RequestRoleChange:
		approver, err := w.dirStore.Lookup(ctx, approverID)
		if err != nil {
			return err
		}
		target, err := w.dirStore.Lookup(ctx, req.Payload.TargetUserID)
		if err != nil {
			return err
		}
		updated := target
		updated.Role = req.Payload.RequestedRole
		return CheckProfileWrite(approver, target, updated)

	case RequestResourceAccess:
		ref, err := resourceAccessRef(&req.Payload)
		if err != nil {
			return err
		}
		if _, err := w.ownership.Resolve(ctx, ref); err != nil {
			return err
		}
		return nil

	case RequestAccount:
		if _, err := w.dirStore.LookupByEmail(ctx, req.Payload.Email); err == nil {
			return fmt.Errorf("%w: account %s already exists", ErrConflict, req.Payload.Email)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown request kind %q", ErrInvalidInput, req.Kind)
	}
}

// apply executes the approved change through the regular guarded paths.
func (w *Workflow) apply(ctx context.Context, req AccessRequest, approverID string) error {
	switch req.Kind {
	case RequestRoleChange:
		role := req.Payload.RequestedRole
		_, err := w.directory.Update(ctx, approverID, req.Payload.TargetUserID, ProfileUpdate{Role: &role})
		return err

	case RequestResourceAccess:
		if req.Payload.GrantUserID != "" {
			existing, err := w.grants.Find(ctx, req.Payload.GrantUserID, req.Payload.GrantAssetID)
			if err == nil && existing.Level.AtLeast(req.Payload.GrantLevel) {
				// Approvals upgrade, never downgrade.
				return nil
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			_, err = w.ledgers.GrantUserAccess(ctx, approverID, UserGrant{
				UserID:  req.Payload.GrantUserID,
				AssetID: req.Payload.GrantAssetID,
				Level:   req.Payload.GrantLevel,
				Notes:   fmt.Sprintf("approved request %s", req.ID),
			})
			return err
		}
		existing, err := w.shares.Find(ctx, req.TargetOrgID, req.Payload.ShareTargetOrgID, req.Payload.ResourceKind, req.Payload.ResourceID)
		if err == nil && existing.Permission.AtLeast(req.Payload.SharePermission) {
			return nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		_, err = w.ledgers.GrantOrgShare(ctx, approverID, OrgShare{
			OwnerOrgID:  req.TargetOrgID,
			TargetOrgID: req.Payload.ShareTargetOrgID,
			Kind:        req.Payload.ResourceKind,
			ResourceID:  req.Payload.ResourceID,
			Permission:  req.Payload.SharePermission,
		})
		return err

	case RequestAccount:
		_, err := w.directory.Provision(ctx, approverID, NewProfile{
			Email:        req.Payload.Email,
			Name:         req.Payload.FullName,
			OrgID:        req.TargetOrgID,
			PasswordHash: req.Payload.PasswordHash,
		})
		return err

	default:
		return fmt.Errorf("%w: unknown request kind %q", ErrInvalidInput, req.Kind)
	}
}

// Get returns a request the actor may read: its requester, an org_admin of
// its target organization, or a global reader.
func (w *Workflow) Get(ctx context.Context, actorID, requestID string) (AccessRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return AccessRequest{}, fmt.Errorf("%w: request id is required", ErrInvalidInput)
	}
	ok, err := w.eval.CanAccess(ctx, actorID, ResourceRef{Kind: KindRequest, ID: requestID}, ActionRead)
	if err != nil {
		return AccessRequest{}, err
	}
	if !ok {
		return AccessRequest{}, ErrUnauthorized
	}
	return w.requests.Find(ctx, requestID)
}

// ListOwn returns the actor's own submitted requests.
func (w *Workflow) ListOwn(ctx context.Context, actorID string) ([]AccessRequest, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}
	return w.requests.ListForRequester(ctx, actorID)
}

// resourceAccessRef validates a resource_access payload and returns the
// resource it points at. Exactly one of the share and grant shapes must be
// populated.
func resourceAccessRef(payload *RequestPayload) (ResourceRef, error) {
	payload.ShareTargetOrgID = strings.TrimSpace(payload.ShareTargetOrgID)
	payload.ResourceID = strings.TrimSpace(payload.ResourceID)
	payload.GrantUserID = strings.TrimSpace(payload.GrantUserID)
	payload.GrantAssetID = strings.TrimSpace(payload.GrantAssetID)

	shareShape := payload.ShareTargetOrgID != "" || payload.ResourceID != "" || payload.SharePermission != ""
	grantShape := payload.GrantUserID != "" || payload.GrantAssetID != "" || payload.GrantLevel != ""
	switch {
	case shareShape && grantShape:
		return ResourceRef{}, fmt.Errorf("%w: request mixes share and grant fields", ErrInvalidInput)
	case shareShape:
		if payload.ShareTargetOrgID == "" || payload.ResourceID == "" || !payload.ResourceKind.ShareableKind() || !payload.SharePermission.Valid() {
			return ResourceRef{}, fmt.Errorf("%w: incomplete share request", ErrInvalidInput)
		}
		return ResourceRef{Kind: payload.ResourceKind, ID: payload.ResourceID}, nil
	case grantShape:
		if payload.GrantUserID == "" || payload.GrantAssetID == "" || !payload.GrantLevel.Valid() {
			return ResourceRef{}, fmt.Errorf("%w: incomplete grant request", ErrInvalidInput)
		}
		return ResourceRef{Kind: KindAsset, ID: payload.GrantAssetID}, nil
	default:
		return ResourceRef{}, fmt.Errorf("%w: empty access request", ErrInvalidInput)
	}
}
