package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every gateway route. All business routes sit behind the
// org middleware; only the health check is unscoped.
func NewRouter(h *Handler, healthPath string) http.Handler {
	if healthPath == "" {
		healthPath = "/health"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(allowCORS)

	r.Get(healthPath, h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(h.withOrg)

		r.Post("/invoke/AddLog", h.AddLog)
		r.Post("/invoke/UpdateLog", h.UpdateLog)
		r.Post("/invoke/DeleteLog", h.DeleteLog)
		r.Post("/invoke/AddAttachmentToLog", h.AddAttachmentToLog)
		r.Post("/invoke/PurgeLogsByTime", h.PurgeLogsByTime)

		r.Post("/query/Dashboard", h.Dashboard)
		r.Post("/query/{name}", h.Query)

		r.Get("/data/download/{id}", h.Download)

		r.Get("/node/Status", h.NodeStatus)
		r.Post("/node/BroadcastMessage", h.BroadcastMessage)
		r.Post("/node/PrivateMessage", h.PrivateMessage)
		r.Get("/node/GetBroadcastMessage", h.GetBroadcastMessage)
		r.Get("/node/GetPrivateMessage", h.GetPrivateMessage)
		r.Get("/node/GetMsgData", h.GetMsgData)
	})

	return r
}

// allowCORS lets the browser dashboard call the gateway from another
// origin. The org header is what scopes requests, not the origin.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-org")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
