package mem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hullscope.io/internal/access"
	"hullscope.io/internal/ids"
)

// ChainResolver expands a resource into itself plus its ancestors, nearest
// first. The catalog provides it; the share store needs it to honor shares
// granted above the requested resource.
type ChainResolver interface {
	ChainFor(ctx context.Context, ref access.ResourceRef) ([]access.ResourceRef, error)
}

// Store bundles in-memory implementations of every engine store. It backs
// development and test deployments; production uses the Postgres store.
type Store struct {
	Directory *Directory
	Shares    *Shares
	Grants    *Grants
	Requests  *Requests
}

// New builds a store. The chain resolver is usually the fleet catalog.
func New(chain ChainResolver) *Store {
	return &Store{
		Directory: NewDirectory(),
		Shares:    NewShares(chain),
		Grants:    NewGrants(),
		Requests:  NewRequests(),
	}
}

// Directory implements access.DirectoryStore.
type Directory struct {
	mu       sync.RWMutex
	orgs     map[string]access.Organization
	profiles map[string]access.Profile
	byEmail  map[string]string
}

func NewDirectory() *Directory {
	return &Directory{
		orgs:     make(map[string]access.Organization),
		profiles: make(map[string]access.Profile),
		byEmail:  make(map[string]string),
	}
}

// PutOrganization seeds or replaces a tenant record.
func (d *Directory) PutOrganization(org access.Organization) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	org.UpdatedAt = time.Now().UTC()
	d.orgs[org.ID] = org
}

func (d *Directory) Organization(ctx context.Context, orgID string) (access.Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.orgs[orgID]
	if !ok {
		return access.Organization{}, access.ErrNotFound
	}
	return org, nil
}

func (d *Directory) Lookup(ctx context.Context, profileID string) (access.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[profileID]
	if !ok {
		return access.Profile{}, access.ErrNotFound
	}
	return p, nil
}

func (d *Directory) LookupByEmail(ctx context.Context, email string) (access.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return access.Profile{}, access.ErrNotFound
	}
	return d.profiles[id], nil
}

func (d *Directory) Create(ctx context.Context, profile access.Profile) (access.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(profile.Email)
	if _, taken := d.byEmail[key]; taken {
		return access.Profile{}, fmt.Errorf("%w: email %s already registered", access.ErrConflict, profile.Email)
	}
	if profile.ID == "" {
		profile.ID = ids.New()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	d.profiles[profile.ID] = profile
	d.byEmail[key] = profile.ID
	return profile, nil
}

func (d *Directory) Update(ctx context.Context, profile access.Profile) (access.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.profiles[profile.ID]
	if !ok {
		return access.Profile{}, access.ErrNotFound
	}
	newKey := strings.ToLower(profile.Email)
	oldKey := strings.ToLower(current.Email)
	if newKey != oldKey {
		if owner, taken := d.byEmail[newKey]; taken && owner != profile.ID {
			return access.Profile{}, fmt.Errorf("%w: email %s already registered", access.ErrConflict, profile.Email)
		}
		delete(d.byEmail, oldKey)
		d.byEmail[newKey] = profile.ID
	}
	profile.CreatedAt = current.CreatedAt
	profile.UpdatedAt = time.Now().UTC()
	d.profiles[profile.ID] = profile
	return profile, nil
}

// Shares implements access.ShareStore.
type Shares struct {
	mu     sync.RWMutex
	chain  ChainResolver
	shares map[string]access.OrgShare
}

func NewShares(chain ChainResolver) *Shares {
	return &Shares{chain: chain, shares: make(map[string]access.OrgShare)}
}

func shareKey(owner, target string, kind access.ResourceKind, id string) string {
	return owner + "|" + target + "|" + string(kind) + "|" + id
}

func (s *Shares) Upsert(ctx context.Context, share access.OrgShare) (access.OrgShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := shareKey(share.OwnerOrgID, share.TargetOrgID, share.Kind, share.ResourceID)
	now := time.Now().UTC()
	if existing, ok := s.shares[key]; ok {
		share.CreatedAt = existing.CreatedAt
	} else {
		share.CreatedAt = now
	}
	share.UpdatedAt = now
	s.shares[key] = share
	return share, nil
}

func (s *Shares) Delete(ctx context.Context, ownerOrgID, targetOrgID string, kind access.ResourceKind, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := shareKey(ownerOrgID, targetOrgID, kind, resourceID)
	if _, ok := s.shares[key]; !ok {
		return access.ErrNotFound
	}
	delete(s.shares, key)
	return nil
}

func (s *Shares) Find(ctx context.Context, ownerOrgID, targetOrgID string, kind access.ResourceKind, resourceID string) (access.OrgShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	share, ok := s.shares[shareKey(ownerOrgID, targetOrgID, kind, resourceID)]
	if !ok {
		return access.OrgShare{}, access.ErrNotFound
	}
	return share, nil
}

func (s *Shares) FindCovering(ctx context.Context, ownerOrgID, targetOrgID string, ref access.ResourceRef) (access.OrgShare, error) {
	chain := []access.ResourceRef{ref}
	if s.chain != nil {
		resolved, err := s.chain.ChainFor(ctx, ref)
		if err == nil {
			chain = resolved
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var best access.OrgShare
	found := false
	for _, link := range chain {
		share, ok := s.shares[shareKey(ownerOrgID, targetOrgID, link.Kind, link.ID)]
		if !ok {
			continue
		}
		if !found || share.Permission.AtLeast(best.Permission) {
			best = share
			found = true
		}
	}
	if !found {
		return access.OrgShare{}, access.ErrNotFound
	}
	return best, nil
}

func (s *Shares) ListForTarget(ctx context.Context, targetOrgID string) ([]access.OrgShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []access.OrgShare
	for _, share := range s.shares {
		if share.TargetOrgID == targetOrgID {
			out = append(out, share)
		}
	}
	return out, nil
}

// Grants implements access.GrantStore.
type Grants struct {
	mu     sync.RWMutex
	grants map[string]access.UserGrant
}

func NewGrants() *Grants {
	return &Grants{grants: make(map[string]access.UserGrant)}
}

func grantKey(userID, assetID string) string { return userID + "|" + assetID }

func (g *Grants) Upsert(ctx context.Context, grant access.UserGrant) (access.UserGrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := grantKey(grant.UserID, grant.AssetID)
	now := time.Now().UTC()
	if existing, ok := g.grants[key]; ok {
		grant.CreatedAt = existing.CreatedAt
	} else {
		grant.CreatedAt = now
	}
	grant.UpdatedAt = now
	g.grants[key] = grant
	return grant, nil
}

func (g *Grants) Delete(ctx context.Context, userID, assetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := grantKey(userID, assetID)
	if _, ok := g.grants[key]; !ok {
		return access.ErrNotFound
	}
	delete(g.grants, key)
	return nil
}

func (g *Grants) Find(ctx context.Context, userID, assetID string) (access.UserGrant, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	grant, ok := g.grants[grantKey(userID, assetID)]
	if !ok {
		return access.UserGrant{}, access.ErrNotFound
	}
	return grant, nil
}

func (g *Grants) ListForUser(ctx context.Context, userID string) ([]access.UserGrant, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []access.UserGrant
	for _, grant := range g.grants {
		if grant.UserID == userID {
			out = append(out, grant)
		}
	}
	return out, nil
}

// Requests implements access.RequestStore.
type Requests struct {
	mu       sync.RWMutex
	requests map[string]access.AccessRequest
	order    []string
}

func NewRequests() *Requests {
	return &Requests{requests: make(map[string]access.AccessRequest)}
}

func (r *Requests) Create(ctx context.Context, req access.AccessRequest) (access.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == "" {
		req.ID = ids.New()
	}
	req.CreatedAt = time.Now().UTC()
	r.requests[req.ID] = req
	r.order = append(r.order, req.ID)
	return req, nil
}

func (r *Requests) Find(ctx context.Context, id string) (access.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return access.AccessRequest{}, access.ErrNotFound
	}
	return req, nil
}

func (r *Requests) Claim(ctx context.Context, id string, status access.RequestStatus, approverID, reason string) (access.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return access.AccessRequest{}, access.ErrNotFound
	}
	if req.Status != access.StatusPending {
		return access.AccessRequest{}, fmt.Errorf("%w: request %s already %s", access.ErrConflict, id, req.Status)
	}
	now := time.Now().UTC()
	req.Status = status
	req.ApproverID = approverID
	req.Reason = reason
	req.DecidedAt = &now
	r.requests[id] = req
	return req, nil
}

func (r *Requests) ListForRequester(ctx context.Context, requesterID string) ([]access.AccessRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []access.AccessRequest
	for _, id := range r.order {
		if req := r.requests[id]; req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out, nil
}
