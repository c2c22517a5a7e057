// Package server exposes the dispatcher over HTTP so an alerting engine can
// post match batches instead of invoking the CLI once per cycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/encircle/slack-alerter/internal/pkg/alerting"
	"github.com/encircle/slack-alerter/internal/pkg/match"
)

// maxBodySize is the maximum accepted request body size (5 MB).
const maxBodySize = 5 << 20

// Handler serves the alert intake endpoints.
type Handler struct {
	alerter alerting.Alerter
	log     logr.Logger
}

// New creates a Handler dispatching through a.
func New(a alerting.Alerter, log logr.Logger) *Handler {
	return &Handler{alerter: a, log: log}
}

// RegisterRoutes registers all HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /alert", h.Alert)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /info", h.Info)
}

type alertResponse struct {
	Status  string `json:"status"`
	Matches int    `json:"matches,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Alert decodes a JSON array (or single object) of matches and dispatches it.
func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, alertResponse{Status: "rejected", Error: err.Error()})
		return
	}

	matches, err := match.ParseBatch(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, alertResponse{Status: "rejected", Error: err.Error()})
		return
	}

	if err := h.alerter.Alert(r.Context(), matches); err != nil {
		status := statusFor(err)
		h.log.Error(err, "Failed to dispatch matches", "matches", len(matches), "status", status)
		writeJSON(w, status, alertResponse{Status: "failed", Matches: len(matches), Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, alertResponse{Status: "sent", Matches: len(matches)})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info returns the alerter metadata.
func (h *Handler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.alerter.Info())
}

func statusFor(err error) int {
	var ferr *alerting.FormattingError
	var derr *alerting.DeliveryError
	switch {
	// a POST cut short by the caller surfaces as a DeliveryError wrapping the context error
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &ferr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &derr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves mux on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, mux http.Handler, log logr.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting alert intake server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
