package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/heartmarshall/brandkit/internal/ledger"
)

// recentDetails is how many ledger entries /health reports.
const recentDetails = 5

// dbPinger defines the minimal interface for customer-store health checks.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// ledgerReader is the read side of the event ledger.
type ledgerReader interface {
	Len(ctx context.Context) (int, error)
	Recent(ctx context.Context, n int) ([]ledger.Status, error)
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	ledger  ledgerReader
	db      dbPinger
	version string
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler. db may be nil when no customer
// store is configured.
func NewHealthHandler(l ledgerReader, db dbPinger, version string) *HealthHandler {
	return &HealthHandler{ledger: l, db: db, version: version, now: time.Now}
}

// HealthResponse is the JSON response for /health.
type HealthResponse struct {
	Status           string                `json:"status"`
	ProcessedEvents  int                   `json:"processed_events"`
	ProcessedDetails []EventDetail         `json:"processed_details"`
	Components       map[string]CompStatus `json:"components,omitempty"`
	Timestamp        time.Time             `json:"timestamp"`
	Version          string                `json:"version,omitempty"`
}

// EventDetail is one ledger entry as reported by /health.
type EventDetail struct {
	EventID    string    `json:"event_id"`
	Processed  bool      `json:"processed"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ProbeResponse is the JSON response for /live and /ready.
type ProbeResponse struct {
	Status     string                `json:"status"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "ok", Timestamp: h.now()})
}

// Ready is the readiness probe: 200 when the ledger and, if configured, the
// customer store answer; 503 otherwise.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components, ok := h.check(ctx)
	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "down", http.StatusServiceUnavailable
	}
	writeJSON(w, code, ProbeResponse{Status: status, Components: components, Timestamp: h.now()})
}

// Health reports ledger statistics, the last few ledger entries (oldest
// first) and component status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components, ok := h.check(ctx)
	resp := HealthResponse{
		Status:           "healthy",
		ProcessedDetails: []EventDetail{},
		Components:       components,
		Timestamp:        h.now(),
		Version:          h.version,
	}

	if n, err := h.ledger.Len(ctx); err == nil {
		resp.ProcessedEvents = n
	}
	if recent, err := h.ledger.Recent(ctx, recentDetails); err == nil {
		for _, st := range recent {
			resp.ProcessedDetails = append(resp.ProcessedDetails, EventDetail{
				EventID:    st.EventID,
				Processed:  st.Processed,
				RecordedAt: st.Timestamp,
			})
		}
	}

	code := http.StatusOK
	if !ok {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) check(ctx context.Context) (map[string]CompStatus, bool) {
	components := make(map[string]CompStatus)
	ok := true

	probe := func(name string, fn func(context.Context) error) {
		start := time.Now()
		if err := fn(ctx); err != nil {
			components[name] = CompStatus{Status: "down"}
			ok = false
			return
		}
		components[name] = CompStatus{Status: "ok", Latency: time.Since(start).String()}
	}

	probe("ledger", func(ctx context.Context) error {
		_, err := h.ledger.Len(ctx)
		return err
	})
	if h.db != nil {
		probe("database", h.db.Ping)
	}
	return components, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
