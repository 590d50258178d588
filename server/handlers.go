package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/onnwee/streamwatch/presence"
	"github.com/onnwee/streamwatch/telemetry"
	"github.com/onnwee/streamwatch/watchlist"
)

// genericFailure is the only error text clients see for internal faults.
const genericFailure = "operation failed"

// Handlers serves the watchlist API over one Service per provider.
type Handlers struct {
	services map[string]*presence.Service
	checks   []ReadyCheck
}

// NewHandlers creates Handlers for the given services and readiness checks.
func NewHandlers(services map[string]*presence.Service, checks []ReadyCheck) *Handlers {
	return &Handlers{services: services, checks: checks}
}

type addRequest struct {
	Name string `json:"name"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to a status. Only invalid input is
// described to the client; everything else is logged and reported generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, presence.ErrInvalidName) {
		writeError(w, http.StatusBadRequest, "invalid name")
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, watchlist.ErrStorage):
		status = http.StatusServiceUnavailable
	case errors.Is(err, presence.ErrLookupFailed):
		status = http.StatusBadGateway
	}
	telemetry.LoggerWithCorr(r.Context()).Error("request failed",
		slog.String("component", "http"),
		slog.String("op", op),
		slog.String("provider", r.PathValue("provider")),
		slog.Any("err", err))
	writeError(w, status, genericFailure)
}

func (h *Handlers) service(w http.ResponseWriter, r *http.Request) (*presence.Service, bool) {
	svc, ok := h.services[r.PathValue("provider")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return nil, false
	}
	return svc, true
}

// HandleProviders lists the configured providers.
func (h *Handlers) HandleProviders(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.services))
	for name := range h.services {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"providers": names})
}

func (h *Handlers) HandleListStreamers(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	names, err := svc.ListStreamers(r.Context())
	if err != nil {
		writeServiceError(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streamers": names})
}

func (h *Handlers) HandleAddStreamer(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req addRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	added, err := svc.AddStreamer(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, r, "add", err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"added": added})
}

func (h *Handlers) HandleRemoveStreamer(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	removed, err := svc.RemoveStreamer(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, "remove", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

type liveResponse struct {
	Live     bool               `json:"live"`
	Metadata *presence.Metadata `json:"metadata,omitempty"`
}

// HandleCheckStreamer performs an on-demand lookup for one name.
func (h *Handlers) HandleCheckStreamer(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	st, err := svc.CheckNow(r.Context(), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, "check", err)
		return
	}
	writeJSON(w, http.StatusOK, liveResponse{Live: st.Live, Metadata: st.Metadata})
}

// HandleLive lists the currently live watched names in watchlist order.
func (h *Handlers) HandleLive(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	live, err := svc.CheckAllNow(r.Context())
	if err != nil {
		writeServiceError(w, r, "live", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"live": live})
}
