package fleet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hullscope.io/internal/access"
	"hullscope.io/internal/ids"
)

// Service defines the resource catalog operations. Authorization happens in
// the caller; the service enforces referential shape only (a vessel needs an
// existing asset, a scan an existing vessel).
type Service interface {
	CreateAsset(ctx context.Context, orgID, name, hullNo string) (Asset, error)
	GetAsset(ctx context.Context, id string) (Asset, error)
	UpdateAsset(ctx context.Context, id, name, hullNo string) (Asset, error)
	DeleteAsset(ctx context.Context, id string) error
	TransferAsset(ctx context.Context, id, toOrgID string) (Asset, error)

	CreateVessel(ctx context.Context, assetID, name, imo, class string) (Vessel, error)
	GetVessel(ctx context.Context, id string) (Vessel, error)
	DeleteVessel(ctx context.Context, id string) error

	CreateScan(ctx context.Context, vesselID string, capturedAt time.Time) (Scan, error)
	GetScan(ctx context.Context, id string) (Scan, error)
	SetScanStatus(ctx context.Context, id string, status ScanStatus) (Scan, error)
	AddImage(ctx context.Context, scanID, uri string) (Image, error)

	CreateDocument(ctx context.Context, orgID, title, uri string) (Document, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// InMemory implements Service and access.OwnershipStore with in-process
// concurrency safety. The Postgres store supersedes it wherever a DSN is
// configured.
type InMemory struct {
	mu      sync.RWMutex
	assets  map[string]*Asset
	vessels map[string]*Vessel
	scans   map[string]*Scan
	images  map[string]*Image
	docs    map[string]*Document
}

// NewInMemory creates an empty catalog.
func NewInMemory() *InMemory {
	return &InMemory{
		assets:  make(map[string]*Asset),
		vessels: make(map[string]*Vessel),
		scans:   make(map[string]*Scan),
		images:  make(map[string]*Image),
		docs:    make(map[string]*Document),
	}
}

func (s *InMemory) CreateAsset(ctx context.Context, orgID, name, hullNo string) (Asset, error) {
	orgID = strings.TrimSpace(orgID)
	name = strings.TrimSpace(name)
	if orgID == "" || name == "" {
		return Asset{}, fmt.Errorf("%w: organization and name are required", access.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	a := &Asset{
		ID:        ids.New(),
		OrgID:     orgID,
		Name:      name,
		HullNo:    strings.TrimSpace(hullNo),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.assets[a.ID] = a
	return *a, nil
}

func (s *InMemory) GetAsset(ctx context.Context, id string) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return Asset{}, access.ErrNotFound
	}
	return *a, nil
}

func (s *InMemory) UpdateAsset(ctx context.Context, id, name, hullNo string) (Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Asset{}, fmt.Errorf("%w: name is required", access.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return Asset{}, access.ErrNotFound
	}
	a.Name = name
	a.HullNo = strings.TrimSpace(hullNo)
	a.UpdatedAt = time.Now().UTC()
	return *a, nil
}

func (s *InMemory) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return access.ErrNotFound
	}
	for vid, v := range s.vessels {
		if v.AssetID != id {
			continue
		}
		for sid, sc := range s.scans {
			if sc.VesselID != vid {
				continue
			}
			for iid, img := range s.images {
				if img.ScanID == sid {
					delete(s.images, iid)
				}
			}
			delete(s.scans, sid)
		}
		delete(s.vessels, vid)
	}
	delete(s.assets, id)
	return nil
}

// TransferAsset moves an asset with its whole subtree to another
// organization. Shares keyed to the previous owner stop matching from the
// next evaluation on.
func (s *InMemory) TransferAsset(ctx context.Context, id, toOrgID string) (Asset, error) {
	toOrgID = strings.TrimSpace(toOrgID)
	if toOrgID == "" {
		return Asset{}, fmt.Errorf("%w: destination organization is required", access.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return Asset{}, access.ErrNotFound
	}
	if a.OrgID == toOrgID {
		return Asset{}, fmt.Errorf("%w: asset already belongs to %s", access.ErrConflict, toOrgID)
	}
	a.OrgID = toOrgID
	a.UpdatedAt = time.Now().UTC()
	return *a, nil
}

func (s *InMemory) CreateVessel(ctx context.Context, assetID, name, imo, class string) (Vessel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Vessel{}, fmt.Errorf("%w: name is required", access.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[assetID]; !ok {
		return Vessel{}, access.ErrNotFound
	}
	now := time.Now().UTC()
	v := &Vessel{
		ID:        ids.New(),
		AssetID:   assetID,
		Name:      name,
		IMO:       strings.TrimSpace(imo),
		Class:     strings.TrimSpace(class),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.vessels[v.ID] = v
	return *v, nil
}

func (s *InMemory) GetVessel(ctx context.Context, id string) (Vessel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vessels[id]
	if !ok {
		return Vessel{}, access.ErrNotFound
	}
	return *v, nil
}

func (s *InMemory) DeleteVessel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vessels[id]; !ok {
		return access.ErrNotFound
	}
	for sid, sc := range s.scans {
		if sc.VesselID != id {
			continue
		}
		for iid, img := range s.images {
			if img.ScanID == sid {
				delete(s.images, iid)
			}
		}
		delete(s.scans, sid)
	}
	delete(s.vessels, id)
	return nil
}

func (s *InMemory) CreateScan(ctx context.Context, vesselID string, capturedAt time.Time) (Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vessels[vesselID]; !ok {
		return Scan{}, access.ErrNotFound
	}
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	sc := &Scan{
		ID:         ids.New(),
		VesselID:   vesselID,
		Status:     ScanUploaded,
		CapturedAt: capturedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	s.scans[sc.ID] = sc
	return *sc, nil
}

func (s *InMemory) GetScan(ctx context.Context, id string) (Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scans[id]
	if !ok {
		return Scan{}, access.ErrNotFound
	}
	return *sc, nil
}

func (s *InMemory) SetScanStatus(ctx context.Context, id string, status ScanStatus) (Scan, error) {
	switch status {
	case ScanUploaded, ScanProcessed, ScanFailed:
	default:
		return Scan{}, fmt.Errorf("%w: unknown scan status %q", access.ErrInvalidInput, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return Scan{}, access.ErrNotFound
	}
	sc.Status = status
	return *sc, nil
}

func (s *InMemory) AddImage(ctx context.Context, scanID, uri string) (Image, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Image{}, fmt.Errorf("%w: uri is required", access.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[scanID]; !ok {
		return Image{}, access.ErrNotFound
	}
	img := &Image{
		ID:        ids.New(),
		ScanID:    scanID,
		URI:       uri,
		CreatedAt: time.Now().UTC(),
	}
	s.images[img.ID] = img
	return *img, nil
}

func (s *InMemory) CreateDocument(ctx context.Context, orgID, title, uri string) (Document, error) {
	orgID = strings.TrimSpace(orgID)
	title = strings.TrimSpace(title)
	if orgID == "" || title == "" {
		return Document{}, fmt.Errorf("%w: organization and title are required", access.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &Document{
		ID:        ids.New(),
		OrgID:     orgID,
		Title:     title,
		URI:       strings.TrimSpace(uri),
		CreatedAt: time.Now().UTC(),
	}
	s.docs[d.ID] = d
	return *d, nil
}

func (s *InMemory) GetDocument(ctx context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, access.ErrNotFound
	}
	return *d, nil
}

func (s *InMemory) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return access.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// Resolve walks a resource up to its owning organization and top-level asset.
// Implements access.OwnershipStore.
func (s *InMemory) Resolve(ctx context.Context, ref access.ResourceRef) (access.Ownership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch ref.Kind {
	case access.KindAsset:
		a, ok := s.assets[ref.ID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		return access.Ownership{OrgID: a.OrgID, AssetID: a.ID}, nil
	case access.KindVessel:
		v, ok := s.vessels[ref.ID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		return s.resolveAsset(v.AssetID)
	case access.KindScan:
		sc, ok := s.scans[ref.ID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		v, ok := s.vessels[sc.VesselID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		return s.resolveAsset(v.AssetID)
	case access.KindImage:
		img, ok := s.images[ref.ID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		sc, ok := s.scans[img.ScanID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		v, ok := s.vessels[sc.VesselID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		return s.resolveAsset(v.AssetID)
	case access.KindDocument:
		d, ok := s.docs[ref.ID]
		if !ok {
			return access.Ownership{}, access.ErrNotFound
		}
		return access.Ownership{OrgID: d.OrgID}, nil
	default:
		return access.Ownership{}, fmt.Errorf("%w: unknown resource kind %q", access.ErrInvalidInput, ref.Kind)
	}
}

func (s *InMemory) resolveAsset(assetID string) (access.Ownership, error) {
	a, ok := s.assets[assetID]
	if !ok {
		return access.Ownership{}, access.ErrNotFound
	}
	return access.Ownership{OrgID: a.OrgID, AssetID: a.ID}, nil
}

// ListAssets returns asset refs for one organization, or all when orgID is
// empty. Implements access.OwnershipStore.
func (s *InMemory) ListAssets(ctx context.Context, orgID string) ([]access.ResourceRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []access.ResourceRef
	for _, a := range s.assets {
		if orgID != "" && a.OrgID != orgID {
			continue
		}
		refs = append(refs, assetRef(a.ID))
	}
	return refs, nil
}

// ChainFor returns the resource itself followed by its ancestors up to the
// top-level asset. Used by the share lookup to honor shares granted at any
// level above the requested resource.
func (s *InMemory) ChainFor(ctx context.Context, ref access.ResourceRef) ([]access.ResourceRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := []access.ResourceRef{ref}
	switch ref.Kind {
	case access.KindAsset:
	case access.KindVessel:
		v, ok := s.vessels[ref.ID]
		if !ok {
			return nil, access.ErrNotFound
		}
		chain = append(chain, assetRef(v.AssetID))
	case access.KindScan:
		sc, ok := s.scans[ref.ID]
		if !ok {
			return nil, access.ErrNotFound
		}
		v, ok := s.vessels[sc.VesselID]
		if !ok {
			return nil, access.ErrNotFound
		}
		chain = append(chain, vesselRef(v.ID), assetRef(v.AssetID))
	case access.KindImage:
		img, ok := s.images[ref.ID]
		if !ok {
			return nil, access.ErrNotFound
		}
		sc, ok := s.scans[img.ScanID]
		if !ok {
			return nil, access.ErrNotFound
		}
		v, ok := s.vessels[sc.VesselID]
		if !ok {
			return nil, access.ErrNotFound
		}
		chain = append(chain, scanRef(sc.ID), vesselRef(v.ID), assetRef(v.AssetID))
	default:
		return nil, fmt.Errorf("%w: %q has no share chain", access.ErrInvalidInput, ref.Kind)
	}
	return chain, nil
}
