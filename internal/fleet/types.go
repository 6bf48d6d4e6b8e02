package fleet

import (
	"time"

	"hullscope.io/internal/access"
)

// Asset is the top-level ownership unit: one physical hull and everything
// recorded about it. Shares and individual grants attach at or below an asset.
type Asset struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	HullNo    string    `json:"hull_no,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vessel is an inspection subject registered under an asset.
type Vessel struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Name      string    `json:"name"`
	IMO       string    `json:"imo,omitempty"`
	Class     string    `json:"class,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScanStatus tracks a scan through its processing pipeline.
type ScanStatus string

const (
	ScanUploaded  ScanStatus = "uploaded"
	ScanProcessed ScanStatus = "processed"
	ScanFailed    ScanStatus = "failed"
)

// Scan is one hull survey pass over a vessel.
type Scan struct {
	ID         string     `json:"id"`
	VesselID   string     `json:"vessel_id"`
	Status     ScanStatus `json:"status"`
	CapturedAt time.Time  `json:"captured_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Image is a captured frame belonging to a scan.
type Image struct {
	ID        string    `json:"id"`
	ScanID    string    `json:"scan_id"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is org-scoped paperwork (certificates, survey reports). Documents
// hang directly off an organization and are never shared across tenants.
type Document struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Title     string    `json:"title"`
	URI       string    `json:"uri,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func assetRef(id string) access.ResourceRef {
	return access.ResourceRef{Kind: access.KindAsset, ID: id}
}

func vesselRef(id string) access.ResourceRef {
	return access.ResourceRef{Kind: access.KindVessel, ID: id}
}

func scanRef(id string) access.ResourceRef {
	return access.ResourceRef{Kind: access.KindScan, ID: id}
}
