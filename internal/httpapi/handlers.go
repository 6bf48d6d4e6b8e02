package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"hullscope.io/api/spec"
	"hullscope.io/internal/access"
	"hullscope.io/internal/fleet"
	"hullscope.io/internal/obs"
	"hullscope.io/internal/stream"
)

// ReadyProbe pings the database when one is configured; with in-memory
// stores readiness is unconditional.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP surface of the policy engine.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	rateBurst  int
	ratePerSec int

	eval      *access.Evaluator
	directory *access.Directory
	ledgers   *access.Ledgers
	workflow  *access.Workflow
	fleet     fleet.Service
	stream    *stream.Stream
	audit     access.AuditSink
}

// Config carries the collaborators the API serves. Every field except Stream
// and Audit is required.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string

	Evaluator *access.Evaluator
	Directory *access.Directory
	Ledgers   *access.Ledgers
	Workflow  *access.Workflow
	Fleet     fleet.Service
	Stream    *stream.Stream
	Audit     access.AuditSink
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		rateBurst:  60,
		ratePerSec: 30,
		eval:       cfg.Evaluator,
		directory:  cfg.Directory,
		ledgers:    cfg.Ledgers,
		workflow:   cfg.Workflow,
		fleet:      cfg.Fleet,
		stream:     cfg.Stream,
		audit:      cfg.Audit,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/access/check", a.handleAccessCheck)
	a.mux.HandleFunc("/v1/resources", a.handleResources)
	a.mux.HandleFunc("/v1/shares", a.handleShares)
	a.mux.HandleFunc("/v1/grants", a.handleGrants)

	a.mux.HandleFunc("/v1/profiles", a.handleProfilesCollection)
	a.mux.HandleFunc("/v1/profiles/", a.handleProfileResource)

	a.mux.HandleFunc("/v1/requests", a.handleRequestsCollection)
	a.mux.HandleFunc("/v1/requests/", a.handleRequestResource)

	a.mux.HandleFunc("/v1/assets", a.handleAssetsCollection)
	a.mux.HandleFunc("/v1/assets/", a.handleAssetResource)
	a.mux.HandleFunc("/v1/vessels", a.handleVesselsCollection)
	a.mux.HandleFunc("/v1/vessels/", a.handleVesselResource)
	a.mux.HandleFunc("/v1/scans", a.handleScansCollection)
	a.mux.HandleFunc("/v1/scans/", a.handleScanResource)
	a.mux.HandleFunc("/v1/documents", a.handleDocumentsCollection)
	a.mux.HandleFunc("/v1/documents/", a.handleDocumentResource)

	a.mux.HandleFunc("/v1/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wires the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = obs.Instrument(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// principal returns the authenticated profile id or writes a 401.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := access.PrincipalIDFromContext(r.Context())
	if !ok || id == "" {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}

func (a *API) recordEvent(ctx context.Context, action, resourceType, resourceID string, fields map[string]string) {
	if a.audit == nil {
		return
	}
	_ = a.audit.Append(ctx, access.Event{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Fields:       fields,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if r != nil {
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, access.ErrUnauthorized), errors.Is(err, access.ErrSecurityViolation):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
