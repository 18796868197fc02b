package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/brandkit/internal/service/pipeline"
)

type pendingProcessor interface {
	ProcessPending(ctx context.Context, limit int) (pipeline.PendingSummary, error)
}

// AdminHandler serves operator-triggered maintenance runs.
type AdminHandler struct {
	svc pendingProcessor
	log *slog.Logger
	now func() time.Time
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc pendingProcessor, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: logger.With("handler", "admin"), now: time.Now}
}

type runProcessorResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	pipeline.PendingSummary
}

// RunProcessor handles POST /run-processor: it re-sends documents to every
// customer whose email is not marked as sent.
func (h *AdminHandler) RunProcessor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sum, err := h.svc.ProcessPending(ctx, 0)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNoCustomerStore) {
			status = http.StatusServiceUnavailable
		}
		h.log.ErrorContext(ctx, "manual run failed", slog.String("error", err.Error()))
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runProcessorResponse{
		Status:         "success",
		Timestamp:      h.now().UTC().Format(time.RFC3339),
		PendingSummary: sum,
	})
}
