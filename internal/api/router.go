package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/almanac/internal/diary"
	"github.com/starford/almanac/internal/taskservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// The diary routes are only mounted when journal is non-nil.
func NewRouter(svc *taskservice.Service, journal *diary.Journal, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, journal)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AuthMiddleware(authEnabled, token))

	// Tasks. The fixed prefixes are matched before the catch-all delete.
	r.Get("/tasks", h.ListTasks)
	r.Get("/tasks/due", h.TasksDue)
	r.Post("/tasks", h.CreateTask)
	r.Post("/tasks/toggle/*", h.ToggleTask)
	r.Post("/tasks/priority/*", h.CyclePriority)
	r.Put("/tasks/archive/*", h.ArchiveTask)
	r.Delete("/tasks/*", h.DeleteTask)

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)

	if journal != nil {
		r.Route("/diary", func(r chi.Router) {
			r.Get("/stats", h.DiaryStats)
			r.Get("/search", h.DiarySearch)
			r.Get("/tags/{tag}", h.DiaryTag)
			r.Get("/preview/{date}", h.DiaryPreview)
		})
	}

	// Index.
	r.Get("/index", h.IndexStatus)
	r.Post("/index/rebuild", h.Rebuild)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
