package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/streamwatch/telemetry"
)

// ReadyCheck is one named dependency probe for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HandleHealthz is the liveness probe. It has no dependencies.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz runs every readiness check and reports the first failure.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			telemetry.LoggerWithCorr(r.Context()).Warn("readiness check failed",
				slog.String("component", "http"), slog.String("check", c.Name), slog.Any("err", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": c.Name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
