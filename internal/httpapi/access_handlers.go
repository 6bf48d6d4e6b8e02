package httpapi

import (
	"net/http"
	"strings"

	"hullscope.io/internal/access"
	"hullscope.io/internal/obs"
)

type accessCheckRequest struct {
	Kind       string `json:"kind"`
	ResourceID string `json:"resource_id"`
	Action     string `json:"action"`
}

type accessCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Kind    string `json:"kind"`
	ID      string `json:"resource_id"`
	Action  string `json:"action"`
}

func (a *API) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req accessCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := access.ParseResourceKind(req.Kind)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := access.ParseAction(req.Action)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ResourceID) == "" {
		writeError(w, r, http.StatusBadRequest, "resource_id is required")
		return
	}

	ref := access.ResourceRef{Kind: kind, ID: strings.TrimSpace(req.ResourceID)}
	allowed, err := a.eval.CanAccess(r.Context(), principalID, ref, action)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	obs.ObserveDecision(string(action), allowed)

	writeJSON(w, http.StatusOK, accessCheckResponse{
		Allowed: allowed,
		Kind:    string(ref.Kind),
		ID:      ref.ID,
		Action:  string(action),
	})
}

// requireAccess runs an authorization check for a fleet handler and writes
// the denial itself. The caller proceeds only on true.
func (a *API) requireAccess(w http.ResponseWriter, r *http.Request, ref access.ResourceRef, action access.Action) bool {
	principalID, ok := a.principal(w, r)
	if !ok {
		return false
	}
	allowed, err := a.eval.CanAccess(r.Context(), principalID, ref, action)
	if err != nil {
		handleAccessError(w, r, err)
		return false
	}
	obs.ObserveDecision(string(action), allowed)
	if !allowed {
		writeError(w, r, http.StatusForbidden, "access denied")
		return false
	}
	return true
}

type resourcesResponse struct {
	Items []access.ResourceRef `json:"items"`
}

func (a *API) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	items, err := a.eval.ListAccessibleResources(r.Context(), principalID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if items == nil {
		items = []access.ResourceRef{}
	}
	writeJSON(w, http.StatusOK, resourcesResponse{Items: items})
}

type shareRequest struct {
	OwnerOrgID  string `json:"owner_org_id"`
	TargetOrgID string `json:"target_org_id"`
	Kind        string `json:"kind"`
	ResourceID  string `json:"resource_id"`
	Permission  string `json:"permission"`
}

func (a *API) handleShares(w http.ResponseWriter, r *http.Request) {
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodPost:
		perm, err := access.ParseSharePermission(req.Permission)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		share, err := a.ledgers.GrantOrgShare(r.Context(), principalID, access.OrgShare{
			OwnerOrgID:  strings.TrimSpace(req.OwnerOrgID),
			TargetOrgID: strings.TrimSpace(req.TargetOrgID),
			Kind:        access.ResourceKind(strings.TrimSpace(req.Kind)),
			ResourceID:  strings.TrimSpace(req.ResourceID),
			Permission:  perm,
		})
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, share)
	case http.MethodDelete:
		err := a.ledgers.RevokeOrgShare(r.Context(), principalID,
			strings.TrimSpace(req.OwnerOrgID), strings.TrimSpace(req.TargetOrgID),
			access.ResourceKind(strings.TrimSpace(req.Kind)), strings.TrimSpace(req.ResourceID))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

type grantRequest struct {
	UserID  string `json:"user_id"`
	AssetID string `json:"asset_id"`
	Level   string `json:"level"`
	Notes   string `json:"notes"`
}

func (a *API) handleGrants(w http.ResponseWriter, r *http.Request) {
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodPost:
		level, err := access.ParseGrantLevel(req.Level)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		grant, err := a.ledgers.GrantUserAccess(r.Context(), principalID, access.UserGrant{
			UserID:  strings.TrimSpace(req.UserID),
			AssetID: strings.TrimSpace(req.AssetID),
			Level:   level,
			Notes:   strings.TrimSpace(req.Notes),
		})
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, grant)
	case http.MethodDelete:
		err := a.ledgers.RevokeUserAccess(r.Context(), principalID,
			strings.TrimSpace(req.UserID), strings.TrimSpace(req.AssetID))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}
