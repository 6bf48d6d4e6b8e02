package httpapi

import (
	"net/http"
	"strings"
	"time"

	"hullscope.io/internal/access"
	"hullscope.io/internal/fleet"
	"hullscope.io/internal/obs"
)

type createAssetRequest struct {
	OrgID  string `json:"organization_id"`
	Name   string `json:"name"`
	HullNo string `json:"hull_no"`
}

type updateAssetRequest struct {
	Name   string `json:"name"`
	HullNo string `json:"hull_no"`
}

type transferAssetRequest struct {
	ToOrgID string `json:"to_organization_id"`
}

type createVesselRequest struct {
	AssetID string `json:"asset_id"`
	Name    string `json:"name"`
	IMO     string `json:"imo"`
	Class   string `json:"class"`
}

type createScanRequest struct {
	VesselID   string    `json:"vessel_id"`
	CapturedAt time.Time `json:"captured_at"`
}

type scanStatusRequest struct {
	Status string `json:"status"`
}

type addImageRequest struct {
	URI string `json:"uri"`
}

type createDocumentRequest struct {
	OrgID string `json:"organization_id"`
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// requireCreateIn gates top-level creation by the target organization.
func (a *API) requireCreateIn(w http.ResponseWriter, r *http.Request, orgID string) bool {
	principalID, ok := a.principal(w, r)
	if !ok {
		return false
	}
	allowed, err := a.eval.CanCreateIn(r.Context(), principalID, orgID)
	if err != nil {
		handleAccessError(w, r, err)
		return false
	}
	obs.ObserveDecision(string(access.ActionCreate), allowed)
	if !allowed {
		writeError(w, r, http.StatusForbidden, "access denied")
		return false
	}
	return true
}

func (a *API) handleAssetsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	orgID := strings.TrimSpace(req.OrgID)
	if orgID == "" {
		writeError(w, r, http.StatusBadRequest, "organization_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if !a.requireCreateIn(w, r, orgID) {
		return
	}

	asset, err := a.fleet.CreateAsset(r.Context(), orgID, strings.TrimSpace(req.Name), strings.TrimSpace(req.HullNo))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.recordEvent(r.Context(), "fleet.asset.create", "asset", asset.ID, map[string]string{
		"organization_id": orgID,
	})
	w.Header().Set("Location", "/v1/assets/"+asset.ID)
	writeJSON(w, http.StatusCreated, asset)
}

func (a *API) handleAssetResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/assets/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	ref := access.ResourceRef{Kind: access.KindAsset, ID: id}

	if len(parts) == 2 && parts[1] == "transfer" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transferAsset(w, r, ref)
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.requireAccess(w, r, ref, access.ActionRead) {
			return
		}
		asset, err := a.fleet.GetAsset(r.Context(), id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	case http.MethodPatch:
		if !a.requireAccess(w, r, ref, access.ActionUpdate) {
			return
		}
		var req updateAssetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		asset, err := a.fleet.UpdateAsset(r.Context(), id, strings.TrimSpace(req.Name), strings.TrimSpace(req.HullNo))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.recordEvent(r.Context(), "fleet.asset.update", "asset", asset.ID, nil)
		writeJSON(w, http.StatusOK, asset)
	case http.MethodDelete:
		if !a.requireAccess(w, r, ref, access.ActionDelete) {
			return
		}
		if err := a.fleet.DeleteAsset(r.Context(), id); err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.recordEvent(r.Context(), "fleet.asset.delete", "asset", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) transferAsset(w http.ResponseWriter, r *http.Request, ref access.ResourceRef) {
	if !a.requireAccess(w, r, ref, access.ActionTransfer) {
		return
	}
	var req transferAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	toOrgID := strings.TrimSpace(req.ToOrgID)
	if toOrgID == "" {
		writeError(w, r, http.StatusBadRequest, "to_organization_id is required")
		return
	}
	asset, err := a.fleet.TransferAsset(r.Context(), ref.ID, toOrgID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.recordEvent(r.Context(), "fleet.asset.transfer", "asset", asset.ID, map[string]string{
		"to_organization_id": toOrgID,
	})
	writeJSON(w, http.StatusOK, asset)
}

func (a *API) handleVesselsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createVesselRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assetID := strings.TrimSpace(req.AssetID)
	if assetID == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "asset_id and name are required")
		return
	}
	// Adding a vessel mutates the parent asset's aggregate.
	if !a.requireAccess(w, r, access.ResourceRef{Kind: access.KindAsset, ID: assetID}, access.ActionUpdate) {
		return
	}

	vessel, err := a.fleet.CreateVessel(r.Context(), assetID, strings.TrimSpace(req.Name), strings.TrimSpace(req.IMO), strings.TrimSpace(req.Class))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.recordEvent(r.Context(), "fleet.vessel.create", "vessel", vessel.ID, map[string]string{
		"asset_id": assetID,
	})
	w.Header().Set("Location", "/v1/vessels/"+vessel.ID)
	writeJSON(w, http.StatusCreated, vessel)
}

func (a *API) handleVesselResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/vessels/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	ref := access.ResourceRef{Kind: access.KindVessel, ID: id}

	switch r.Method {
	case http.MethodGet:
		if !a.requireAccess(w, r, ref, access.ActionRead) {
			return
		}
		vessel, err := a.fleet.GetVessel(r.Context(), id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, vessel)
	case http.MethodDelete:
		if !a.requireAccess(w, r, ref, access.ActionDelete) {
			return
		}
		if err := a.fleet.DeleteVessel(r.Context(), id); err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.recordEvent(r.Context(), "fleet.vessel.delete", "vessel", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) handleScansCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	vesselID := strings.TrimSpace(req.VesselID)
	if vesselID == "" {
		writeError(w, r, http.StatusBadRequest, "vessel_id is required")
		return
	}
	if !a.requireAccess(w, r, access.ResourceRef{Kind: access.KindVessel, ID: vesselID}, access.ActionUpdate) {
		return
	}

	scan, err := a.fleet.CreateScan(r.Context(), vesselID, req.CapturedAt)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.recordEvent(r.Context(), "fleet.scan.create", "scan", scan.ID, map[string]string{
		"vessel_id": vesselID,
	})
	w.Header().Set("Location", "/v1/scans/"+scan.ID)
	writeJSON(w, http.StatusCreated, scan)
}

func (a *API) handleScanResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scans/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	ref := access.ResourceRef{Kind: access.KindScan, ID: id}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		if !a.requireAccess(w, r, ref, access.ActionRead) {
			return
		}
		scan, err := a.fleet.GetScan(r.Context(), id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, scan)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		if !a.requireAccess(w, r, ref, access.ActionUpdate) {
			return
		}
		var req scanStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		scan, err := a.fleet.SetScanStatus(r.Context(), id, fleet.ScanStatus(strings.TrimSpace(strings.ToLower(req.Status))))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.recordEvent(r.Context(), "fleet.scan.status", "scan", scan.ID, map[string]string{
			"status": string(scan.Status),
		})
		writeJSON(w, http.StatusOK, scan)
	case len(parts) == 2 && parts[1] == "images" && r.Method == http.MethodPost:
		if !a.requireAccess(w, r, ref, access.ActionUpdate) {
			return
		}
		var req addImageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.URI) == "" {
			writeError(w, r, http.StatusBadRequest, "uri is required")
			return
		}
		img, err := a.fleet.AddImage(r.Context(), id, strings.TrimSpace(req.URI))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.recordEvent(r.Context(), "fleet.image.add", "image", img.ID, map[string]string{
			"scan_id": id,
		})
		writeJSON(w, http.StatusCreated, img)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleDocumentsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	orgID := strings.TrimSpace(req.OrgID)
	if orgID == "" || strings.TrimSpace(req.Title) == "" {
		writeError(w, r, http.StatusBadRequest, "organization_id and title are required")
		return
	}
	if !a.requireCreateIn(w, r, orgID) {
		return
	}

	doc, err := a.fleet.CreateDocument(r.Context(), orgID, strings.TrimSpace(req.Title), strings.TrimSpace(req.URI))
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	a.recordEvent(r.Context(), "fleet.document.create", "document", doc.ID, map[string]string{
		"organization_id": orgID,
	})
	w.Header().Set("Location", "/v1/documents/"+doc.ID)
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/documents/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	ref := access.ResourceRef{Kind: access.KindDocument, ID: id}

	switch r.Method {
	case http.MethodGet:
		if !a.requireAccess(w, r, ref, access.ActionRead) {
			return
		}
		doc, err := a.fleet.GetDocument(r.Context(), id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if !a.requireAccess(w, r, ref, access.ActionDelete) {
			return
		}
		if err := a.fleet.DeleteDocument(r.Context(), id); err != nil {
			handleAccessError(w, r, err)
			return
		}
		a.recordEvent(r.Context(), "fleet.document.delete", "document", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
