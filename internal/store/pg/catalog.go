package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hullscope.io/internal/access"
	"hullscope.io/internal/fleet"
	"hullscope.io/internal/ids"
)

// Catalog implements fleet.Service and access.OwnershipStore.
type Catalog struct {
	db *sql.DB
}

var (
	_ fleet.Service         = (*Catalog)(nil)
	_ access.OwnershipStore = (*Catalog)(nil)
)

func (s *Catalog) CreateAsset(ctx context.Context, orgID, name, hullNo string) (fleet.Asset, error) {
	var a fleet.Asset
	err := s.db.QueryRowContext(ctx, `
		insert into assets (id, org_id, name, hull_no)
		values ($1, $2, $3, $4)
		returning id, org_id, name, coalesce(hull_no, ''), created_at, updated_at
	`, ids.New(), orgID, name, nullIfEmpty(hullNo)).
		Scan(&a.ID, &a.OrgID, &a.Name, &a.HullNo, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fleet.Asset{}, fmt.Errorf("%w: organization %s", access.ErrNotFound, orgID)
		}
		return fleet.Asset{}, err
	}
	return a, nil
}

func (s *Catalog) GetAsset(ctx context.Context, id string) (fleet.Asset, error) {
	var a fleet.Asset
	err := s.db.QueryRowContext(ctx, `
		select id, org_id, name, coalesce(hull_no, ''), created_at, updated_at
		from assets
		where id = $1
	`, id).Scan(&a.ID, &a.OrgID, &a.Name, &a.HullNo, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Asset{}, access.ErrNotFound
	}
	if err != nil {
		return fleet.Asset{}, err
	}
	return a, nil
}

func (s *Catalog) UpdateAsset(ctx context.Context, id, name, hullNo string) (fleet.Asset, error) {
	var a fleet.Asset
	err := s.db.QueryRowContext(ctx, `
		update assets
		set name = $2, hull_no = $3, updated_at = now()
		where id = $1
		returning id, org_id, name, coalesce(hull_no, ''), created_at, updated_at
	`, id, name, nullIfEmpty(hullNo)).
		Scan(&a.ID, &a.OrgID, &a.Name, &a.HullNo, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Asset{}, access.ErrNotFound
	}
	if err != nil {
		return fleet.Asset{}, err
	}
	return a, nil
}

func (s *Catalog) DeleteAsset(ctx context.Context, id string) error {
	// Child rows cascade at the schema level.
	res, err := s.db.ExecContext(ctx, `delete from assets where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Catalog) TransferAsset(ctx context.Context, id, toOrgID string) (fleet.Asset, error) {
	var a fleet.Asset
	err := s.db.QueryRowContext(ctx, `
		update assets
		set org_id = $2, updated_at = now()
		where id = $1 and org_id <> $2
		returning id, org_id, name, coalesce(hull_no, ''), created_at, updated_at
	`, id, toOrgID).Scan(&a.ID, &a.OrgID, &a.Name, &a.HullNo, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the asset is missing or it already belongs to the target.
		if _, lookupErr := s.GetAsset(ctx, id); lookupErr != nil {
			return fleet.Asset{}, lookupErr
		}
		return fleet.Asset{}, fmt.Errorf("%w: asset already belongs to %s", access.ErrConflict, toOrgID)
	}
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fleet.Asset{}, fmt.Errorf("%w: organization %s", access.ErrNotFound, toOrgID)
		}
		return fleet.Asset{}, err
	}
	return a, nil
}

func (s *Catalog) CreateVessel(ctx context.Context, assetID, name, imo, class string) (fleet.Vessel, error) {
	var v fleet.Vessel
	err := s.db.QueryRowContext(ctx, `
		insert into vessels (id, asset_id, name, imo, class)
		values ($1, $2, $3, $4, $5)
		returning id, asset_id, name, coalesce(imo, ''), coalesce(class, ''), created_at, updated_at
	`, ids.New(), assetID, name, nullIfEmpty(imo), nullIfEmpty(class)).
		Scan(&v.ID, &v.AssetID, &v.Name, &v.IMO, &v.Class, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fleet.Vessel{}, fmt.Errorf("%w: asset %s", access.ErrNotFound, assetID)
		}
		return fleet.Vessel{}, err
	}
	return v, nil
}

func (s *Catalog) GetVessel(ctx context.Context, id string) (fleet.Vessel, error) {
	var v fleet.Vessel
	err := s.db.QueryRowContext(ctx, `
		select id, asset_id, name, coalesce(imo, ''), coalesce(class, ''), created_at, updated_at
		from vessels
		where id = $1
	`, id).Scan(&v.ID, &v.AssetID, &v.Name, &v.IMO, &v.Class, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Vessel{}, access.ErrNotFound
	}
	if err != nil {
		return fleet.Vessel{}, err
	}
	return v, nil
}

func (s *Catalog) DeleteVessel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from vessels where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Catalog) CreateScan(ctx context.Context, vesselID string, capturedAt time.Time) (fleet.Scan, error) {
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	var sc fleet.Scan
	err := s.db.QueryRowContext(ctx, `
		insert into scans (id, vessel_id, status, captured_at)
		values ($1, $2, $3, $4)
		returning id, vessel_id, status, captured_at, created_at
	`, ids.New(), vesselID, string(fleet.ScanUploaded), capturedAt.UTC()).
		Scan(&sc.ID, &sc.VesselID, &sc.Status, &sc.CapturedAt, &sc.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fleet.Scan{}, fmt.Errorf("%w: vessel %s", access.ErrNotFound, vesselID)
		}
		return fleet.Scan{}, err
	}
	return sc, nil
}

func (s *Catalog) GetScan(ctx context.Context, id string) (fleet.Scan, error) {
	var sc fleet.Scan
	err := s.db.QueryRowContext(ctx, `
		select id, vessel_id, status, captured_at, created_at
		from scans
		where id = $1
	`, id).Scan(&sc.ID, &sc.VesselID, &sc.Status, &sc.CapturedAt, &sc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Scan{}, access.ErrNotFound
	}
	if err != nil {
		return fleet.Scan{}, err
	}
	return sc, nil
}

func (s *Catalog) SetScanStatus(ctx context.Context, id string, status fleet.ScanStatus) (fleet.Scan, error) {
	switch status {
	case fleet.ScanUploaded, fleet.ScanProcessed, fleet.ScanFailed:
	default:
		return fleet.Scan{}, fmt.Errorf("%w: unknown scan status %q", access.ErrInvalidInput, status)
	}
	var sc fleet.Scan
	err := s.db.QueryRowContext(ctx, `
		update scans
		set status = $2
		where id = $1
		returning id, vessel_id, status, captured_at, created_at
	`, id, string(status)).Scan(&sc.ID, &sc.VesselID, &sc.Status, &sc.CapturedAt, &sc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Scan{}, access.ErrNotFound
	}
	if err != nil {
		return fleet.Scan{}, err
	}
	return sc, nil
}

func (s *Catalog) AddImage(ctx context.Context, scanID, uri string) (fleet.Image, error) {
	var img fleet.Image
	err := s.db.QueryRowContext(ctx, `
		insert into images (id, scan_id, uri)
		values ($1, $2, $3)
		returning id, scan_id, uri, created_at
	`, ids.New(), scanID, uri).Scan(&img.ID, &img.ScanID, &img.URI, &img.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fleet.Image{}, fmt.Errorf("%w: scan %s", access.ErrNotFound, scanID)
		}
		return fleet.Image{}, err
	}
	return img, nil
}

func (s *Catalog) CreateDocument(ctx context.Context, orgID, title, uri string) (fleet.Document, error) {
	var d fleet.Document
	err := s.db.QueryRowContext(ctx, `
		insert into documents (id, org_id, title, uri)
		values ($1, $2, $3, $4)
		returning id, org_id, title, coalesce(uri, ''), created_at
	`, ids.New(), orgID, title, nullIfEmpty(uri)).
		Scan(&d.ID, &d.OrgID, &d.Title, &d.URI, &d.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fleet.Document{}, fmt.Errorf("%w: organization %s", access.ErrNotFound, orgID)
		}
		return fleet.Document{}, err
	}
	return d, nil
}

func (s *Catalog) GetDocument(ctx context.Context, id string) (fleet.Document, error) {
	var d fleet.Document
	err := s.db.QueryRowContext(ctx, `
		select id, org_id, title, coalesce(uri, ''), created_at
		from documents
		where id = $1
	`, id).Scan(&d.ID, &d.OrgID, &d.Title, &d.URI, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.Document{}, access.ErrNotFound
	}
	if err != nil {
		return fleet.Document{}, err
	}
	return d, nil
}

func (s *Catalog) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Resolve walks a resource to its owning organization and top-level asset with
// one join per level.
func (s *Catalog) Resolve(ctx context.Context, ref access.ResourceRef) (access.Ownership, error) {
	var (
		own access.Ownership
		err error
	)
	switch ref.Kind {
	case access.KindAsset:
		err = s.db.QueryRowContext(ctx, `
			select org_id, id from assets where id = $1
		`, ref.ID).Scan(&own.OrgID, &own.AssetID)
	case access.KindVessel:
		err = s.db.QueryRowContext(ctx, `
			select a.org_id, a.id
			from vessels v
			join assets a on a.id = v.asset_id
			where v.id = $1
		`, ref.ID).Scan(&own.OrgID, &own.AssetID)
	case access.KindScan:
		err = s.db.QueryRowContext(ctx, `
			select a.org_id, a.id
			from scans sc
			join vessels v on v.id = sc.vessel_id
			join assets a on a.id = v.asset_id
			where sc.id = $1
		`, ref.ID).Scan(&own.OrgID, &own.AssetID)
	case access.KindImage:
		err = s.db.QueryRowContext(ctx, `
			select a.org_id, a.id
			from images i
			join scans sc on sc.id = i.scan_id
			join vessels v on v.id = sc.vessel_id
			join assets a on a.id = v.asset_id
			where i.id = $1
		`, ref.ID).Scan(&own.OrgID, &own.AssetID)
	case access.KindDocument:
		err = s.db.QueryRowContext(ctx, `
			select org_id, '' from documents where id = $1
		`, ref.ID).Scan(&own.OrgID, &own.AssetID)
	default:
		return access.Ownership{}, fmt.Errorf("%w: unknown resource kind %q", access.ErrInvalidInput, ref.Kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return access.Ownership{}, access.ErrNotFound
	}
	if err != nil {
		return access.Ownership{}, err
	}
	return own, nil
}

func (s *Catalog) ListAssets(ctx context.Context, orgID string) ([]access.ResourceRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id from assets
		where $1 = '' or org_id = $1
		order by id
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []access.ResourceRef
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		refs = append(refs, access.ResourceRef{Kind: access.KindAsset, ID: id})
	}
	return refs, rows.Err()
}

// ChainFor returns the resource followed by its ancestors up to the top-level
// asset, nearest first.
func (s *Catalog) ChainFor(ctx context.Context, ref access.ResourceRef) ([]access.ResourceRef, error) {
	chain := []access.ResourceRef{ref}
	switch ref.Kind {
	case access.KindAsset:
		return chain, nil
	case access.KindVessel:
		var assetID string
		err := s.db.QueryRowContext(ctx, `select asset_id from vessels where id = $1`, ref.ID).Scan(&assetID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return append(chain, access.ResourceRef{Kind: access.KindAsset, ID: assetID}), nil
	case access.KindScan:
		var vesselID, assetID string
		err := s.db.QueryRowContext(ctx, `
			select v.id, v.asset_id
			from scans sc
			join vessels v on v.id = sc.vessel_id
			where sc.id = $1
		`, ref.ID).Scan(&vesselID, &assetID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return append(chain,
			access.ResourceRef{Kind: access.KindVessel, ID: vesselID},
			access.ResourceRef{Kind: access.KindAsset, ID: assetID}), nil
	case access.KindImage:
		var scanID, vesselID, assetID string
		err := s.db.QueryRowContext(ctx, `
			select sc.id, v.id, v.asset_id
			from images i
			join scans sc on sc.id = i.scan_id
			join vessels v on v.id = sc.vessel_id
			where i.id = $1
		`, ref.ID).Scan(&scanID, &vesselID, &assetID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return append(chain,
			access.ResourceRef{Kind: access.KindScan, ID: scanID},
			access.ResourceRef{Kind: access.KindVessel, ID: vesselID},
			access.ResourceRef{Kind: access.KindAsset, ID: assetID}), nil
	default:
		return nil, fmt.Errorf("%w: %q has no share chain", access.ErrInvalidInput, ref.Kind)
	}
}
