package scanhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/closure-watch/internal/platform/httpx"
)

// MountRoutes registers the dashboard and scan API endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.scanLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusTooManyRequests, failureResponse{Success: false, Message: "Too many scan requests, try again later"})
		}),
	)

	r.Get("/", h.handleDashboard)
	r.Get("/api/latest", h.handleLatest)
	r.Get("/api/test-connection", h.handleTestConnection)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/scan", h.handleDashboardScan)
		gr.Post("/api/scan", h.handleScan)
	})
}
