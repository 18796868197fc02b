package rest

import (
	"net/http"

	"github.com/heartmarshall/brandkit/internal/transport/middleware"
)

// Router groups the handlers and middleware mounted by NewRouter.
type Router struct {
	Webhook *WebhookHandler
	Health  *HealthHandler
	// Admin is optional. Its routes are signed like webhooks.
	Admin *AdminHandler
	// Common wraps every route; WebhookOnly wraps the webhook and admin routes.
	Common      middleware.Middleware
	WebhookOnly middleware.Middleware
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(rt Router) http.Handler {
	webhook := middleware.Chain(rt.WebhookOnly)

	mux := http.NewServeMux()
	mux.Handle("POST /preview_webhook", webhook(http.HandlerFunc(rt.Webhook.Preview)))
	mux.Handle("POST /licensed_webhook", webhook(http.HandlerFunc(rt.Webhook.Licensed)))
	if rt.Admin != nil {
		mux.Handle("POST /run-processor", webhook(http.HandlerFunc(rt.Admin.RunProcessor)))
	}
	mux.HandleFunc("GET /health", rt.Health.Health)
	mux.HandleFunc("GET /live", rt.Health.Live)
	mux.HandleFunc("GET /ready", rt.Health.Ready)

	return middleware.Chain(rt.Common)(mux)
}
