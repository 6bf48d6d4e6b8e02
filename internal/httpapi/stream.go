package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"hullscope.io/internal/access"
)

// Stream serves the audit event feed over Server-Sent Events. Slow consumers
// miss events rather than backing up the publisher.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principalID, ok := a.principal(w, r)
	if !ok {
		return
	}
	profile, err := a.directory.Get(r.Context(), principalID, principalID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	// The live feed exposes tenant-spanning activity; only operators see it.
	if !profile.Role.AtLeast(access.RoleManager) {
		writeError(w, r, http.StatusForbidden, "insufficient role for event stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	// Replay the durable backlog, oldest first, before going live.
	if backlog, ok := a.audit.(interface {
		Recent(ctx context.Context, limit int) ([]access.Event, error)
	}); ok {
		if recent, err := backlog.Recent(ctx, 20); err == nil {
			for i := len(recent) - 1; i >= 0; i-- {
				writeEventFrame(w, recent[i])
			}
			flusher.Flush()
		}
	}

	for event := range ch {
		writeEventFrame(w, event)
		flusher.Flush()
	}
}

func writeEventFrame(w http.ResponseWriter, event access.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
