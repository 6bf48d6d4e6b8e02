package httpapi

import (
	"net/http"
	"strings"

	"hullscope.io/internal/access"
)

type submitRequestRequest struct {
	Kind    string                `json:"kind"`
	Payload access.RequestPayload `json:"payload"`
	// Account signup credential; hashed before the request is stored.
	Password string `json:"password,omitempty"`
}

type decideRequestRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type listRequestsResponse struct {
	Items []access.AccessRequest `json:"items"`
}

// scrubRequest strips stored credentials before a request leaves the API.
func scrubRequest(req access.AccessRequest) access.AccessRequest {
	req.Payload.PasswordHash = ""
	return req
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitRequest(w, r)
	case http.MethodGet:
		a.listOwnRequests(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) submitRequest(w http.ResponseWriter, r *http.Request) {
	// Anonymous submissions are allowed through for account signup; the
	// workflow rejects every other kind without a requester.
	requesterID, _ := access.PrincipalIDFromContext(r.Context())

	var req submitRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	payload := req.Payload
	payload.Password = req.Password

	out, err := a.workflow.Submit(r.Context(), requesterID, access.RequestKind(strings.TrimSpace(req.Kind)), payload)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/requests/"+out.ID)
	writeJSON(w, http.StatusCreated, scrubRequest(out))
}

func (a *API) listOwnRequests(w http.ResponseWriter, r *http.Request) {
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}
	items, err := a.workflow.ListOwn(r.Context(), principalID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if items == nil {
		items = []access.AccessRequest{}
	}
	for i := range items {
		items[i] = scrubRequest(items[i])
	}
	writeJSON(w, http.StatusOK, listRequestsResponse{Items: items})
}

func (a *API) handleRequestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/requests/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		req, err := a.workflow.Get(r.Context(), principalID, parts[0])
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, scrubRequest(req))
	case len(parts) == 2 && parts[1] == "decision":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var body decideRequestRequest
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req, err := a.workflow.Decide(r.Context(), parts[0], principalID, body.Approve, strings.TrimSpace(body.Reason))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, scrubRequest(req))
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
