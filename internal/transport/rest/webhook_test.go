package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/brandkit/internal/domain"
	"github.com/heartmarshall/brandkit/internal/service/pipeline"
	"github.com/heartmarshall/brandkit/pkg/ctxutil"
)

type pipelineServiceMock struct {
	fn    func(ctx context.Context, ev domain.Event, variant domain.Variant) (pipeline.Result, error)
	calls []domain.Variant
}

func (m *pipelineServiceMock) Process(ctx context.Context, ev domain.Event, variant domain.Variant) (pipeline.Result, error) {
	m.calls = append(m.calls, variant)
	return m.fn(ctx, ev, variant)
}

func returning(res pipeline.Result, err error) *pipelineServiceMock {
	return &pipelineServiceMock{fn: func(context.Context, domain.Event, domain.Variant) (pipeline.Result, error) {
		return res, err
	}}
}

func newTestRouter(svc pipelineService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(Router{
		Webhook: NewWebhookHandler(svc, logger, 0),
		Health:  NewHealthHandler(&ledgerReaderMock{}, nil, "test"),
	})
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

const minimalEvent = `{"eventId":"evt-1","createdAt":"2026-01-01T00:00:00Z","data":{"fields":[]}}`

// ---------------------------------------------------------------------------
// Status mapping
// ---------------------------------------------------------------------------

func TestWebhook_NoContentStates(t *testing.T) {
	t.Parallel()

	for _, state := range []pipeline.State{pipeline.StateDone, pipeline.StateDuplicate, pipeline.StateStale} {
		t.Run(string(state), func(t *testing.T) {
			t.Parallel()
			rec := post(t, newTestRouter(returning(pipeline.Result{State: state}, nil)), "/preview_webhook", minimalEvent)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, rec.Body.String())
		})
	}
}

func TestWebhook_InFlightConflict(t *testing.T) {
	t.Parallel()

	rec := post(t, newTestRouter(returning(pipeline.Result{State: pipeline.StateInFlight, Retryable: true}, nil)), "/preview_webhook", minimalEvent)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "event is already being processed", errorBody(t, rec))
}

func TestWebhook_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "validation",
			err:     &pipeline.StageError{Stage: pipeline.StateExtracting, Err: domain.NewValidationError("email", "required")},
			status:  http.StatusBadRequest,
			message: "validation: email: required",
		},
		{
			name:    "asset fetch",
			err:     &pipeline.StageError{Stage: pipeline.StateLogoFetch, Err: fmt.Errorf("asset: %w: status 404", domain.ErrAssetFetch)},
			status:  http.StatusBadRequest,
			message: "logo could not be retrieved",
		},
		{
			name:    "delivery",
			err:     &pipeline.StageError{Stage: pipeline.StateDelivering, Err: fmt.Errorf("notify: %w", domain.ErrDelivery)},
			status:  http.StatusInternalServerError,
			message: "email delivery failed",
		},
		{
			name:    "template",
			err:     &pipeline.StageError{Stage: pipeline.StateCustomizing, Err: fmt.Errorf("document: %w", domain.ErrTemplate)},
			status:  http.StatusInternalServerError,
			message: "document generation failed",
		},
		{
			name:    "unhandled",
			err:     &pipeline.StageError{Stage: pipeline.StateDelivering, Err: fmt.Errorf("%w: panic: boom", domain.ErrUnhandled)},
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := returning(pipeline.Result{EventID: "evt-1", State: pipeline.StateFailed}, tt.err)
			rec := post(t, newTestRouter(svc), "/preview_webhook", minimalEvent)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.message, errorBody(t, rec))
		})
	}
}

// ---------------------------------------------------------------------------
// Request validation
// ---------------------------------------------------------------------------

func TestWebhook_MalformedJSON(t *testing.T) {
	t.Parallel()

	svc := returning(pipeline.Result{}, nil)
	rec := post(t, newTestRouter(svc), "/preview_webhook", `{"eventId":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", errorBody(t, rec))
	assert.Empty(t, svc.calls)
}

func TestWebhook_MissingEventID(t *testing.T) {
	t.Parallel()

	svc := returning(pipeline.Result{}, nil)
	rec := post(t, newTestRouter(svc), "/licensed_webhook", `{"eventId":"  ","data":{"fields":[]}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "eventId is required", errorBody(t, rec))
	assert.Empty(t, svc.calls)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	t.Parallel()

	svc := returning(pipeline.Result{}, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewWebhookHandler(svc, logger, 16)

	rec := httptest.NewRecorder()
	h.Preview(rec, httptest.NewRequest(http.MethodPost, "/preview_webhook", strings.NewReader(minimalEvent)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

func TestWebhook_RoutesSelectVariant(t *testing.T) {
	t.Parallel()

	var gotID string
	svc := &pipelineServiceMock{fn: func(ctx context.Context, ev domain.Event, v domain.Variant) (pipeline.Result, error) {
		gotID, _ = ctxutil.EventIDFromCtx(ctx)
		return pipeline.Result{State: pipeline.StateDone}, nil
	}}
	router := newTestRouter(svc)

	post(t, router, "/preview_webhook", minimalEvent)
	post(t, router, "/licensed_webhook", minimalEvent)

	assert.Equal(t, []domain.Variant{domain.VariantPreview, domain.VariantLicensed}, svc.calls)
	assert.Equal(t, "evt-1", gotID, "event id must be carried in the request context")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestRouter(returning(pipeline.Result{}, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview_webhook", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_HealthRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(returning(pipeline.Result{}, nil))
	for _, path := range []string{"/health", "/live", "/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
