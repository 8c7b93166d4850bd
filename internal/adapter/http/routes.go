package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, wsHandler http.HandlerFunc) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/{taskID}", h.GetTask)
		r.Get("/tasks/{taskID}/context", h.GetHistory)
		r.Get("/tasks/{taskID}/state", h.GetState)
		r.Post("/tasks/{taskID}/execute", h.ExecuteTask)
		r.Post("/tasks/{taskID}/input", h.SubmitInput)

		r.Post("/recovery/run", h.RunRecovery)
	})

	if wsHandler != nil {
		r.Get("/ws", wsHandler)
	}
}
