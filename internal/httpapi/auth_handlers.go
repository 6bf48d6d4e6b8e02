package httpapi

import (
	"net/http"
	"strings"
	"time"

	"hullscope.io/internal/access"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   access.Profile `json:"profile"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	profile, err := a.directory.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// One answer for every failure mode, so the endpoint cannot be
		// used to probe which emails exist.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := access.GenerateToken(profile.ID, profile.Role, profile.OrgID, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	a.recordEvent(r.Context(), "auth.token.issued", "profile", profile.ID, map[string]string{
		"role": string(profile.Role),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
		Profile:   profile,
	})
}
