package httpapi

import (
	"net/http"
	"strings"

	"hullscope.io/internal/access"
)

type createProfileRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	OrgID         string `json:"organization_id"`
	Password      string `json:"password"`
	RequestedRole string `json:"requested_role"`
}

type updateProfileRequest struct {
	Email  *string `json:"email"`
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	OrgID  *string `json:"organization_id"`
	Active *bool   `json:"active"`
}

func (a *API) handleProfilesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := a.directory.Provision(r.Context(), principalID, access.NewProfile{
		Email:         req.Email,
		Name:          req.Name,
		OrgID:         strings.TrimSpace(req.OrgID),
		Password:      req.Password,
		RequestedRole: req.RequestedRole,
	})
	if err != nil {
		handleAccessError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/profiles/"+profile.ID)
	writeJSON(w, http.StatusCreated, profile)
}

func (a *API) handleProfileResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/profiles/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := a.directory.Get(r.Context(), principalID, id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPatch:
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := access.ProfileUpdate{
			Email:  req.Email,
			Name:   req.Name,
			OrgID:  req.OrgID,
			Active: req.Active,
		}
		if req.Role != nil {
			role, err := access.ParseRole(*req.Role)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			upd.Role = &role
		}
		profile, err := a.directory.Update(r.Context(), principalID, id, upd)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodDelete:
		// Profiles deactivate rather than delete; history must survive.
		profile, err := a.directory.Deactivate(r.Context(), principalID, id)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}
