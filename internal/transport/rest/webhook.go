package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/heartmarshall/brandkit/internal/domain"
	"github.com/heartmarshall/brandkit/internal/service/pipeline"
	"github.com/heartmarshall/brandkit/pkg/ctxutil"
)

// DefaultMaxBody caps the size of a webhook payload.
const DefaultMaxBody = 1 << 20

// pipelineService defines the minimal interface needed by WebhookHandler.
type pipelineService interface {
	Process(ctx context.Context, ev domain.Event, variant domain.Variant) (pipeline.Result, error)
}

// WebhookHandler receives form-submission webhooks.
type WebhookHandler struct {
	svc     pipelineService
	log     *slog.Logger
	maxBody int64
}

// NewWebhookHandler creates a WebhookHandler. maxBody <= 0 uses DefaultMaxBody.
func NewWebhookHandler(svc pipelineService, logger *slog.Logger, maxBody int64) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	return &WebhookHandler{svc: svc, log: logger.With("handler", "webhook"), maxBody: maxBody}
}

// Preview handles POST /preview_webhook (watermarked document).
func (h *WebhookHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.VariantPreview)
}

// Licensed handles POST /licensed_webhook (clean document).
func (h *WebhookHandler) Licensed(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.VariantLicensed)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, variant domain.Variant) {
	var ev domain.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ev.ID = strings.TrimSpace(ev.ID)
	if ev.ID == "" {
		writeError(w, http.StatusBadRequest, "eventId is required")
		return
	}

	ctx := ctxutil.WithEventID(r.Context(), ev.ID)
	res, err := h.svc.Process(ctx, ev, variant)
	if err != nil {
		h.writeProcessError(ctx, w, res, err)
		return
	}

	if res.State == pipeline.StateInFlight {
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusConflict, "event is already being processed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) writeProcessError(ctx context.Context, w http.ResponseWriter, res pipeline.Result, err error) {
	status, message := http.StatusInternalServerError, "internal server error"

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status, message = http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, "invalid submission"
	case errors.Is(err, domain.ErrAssetFetch):
		status, message = http.StatusBadRequest, "logo could not be retrieved"
	case errors.Is(err, domain.ErrDelivery):
		message = "email delivery failed"
	case errors.Is(err, domain.ErrTemplate):
		message = "document generation failed"
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.log.Log(ctx, level, "webhook failed",
		slog.String("event_id", res.EventID),
		slog.String("state", string(res.State)),
		slog.Bool("retryable", res.Retryable),
		slog.String("error", err.Error()),
	)
	writeError(w, status, message)
}
