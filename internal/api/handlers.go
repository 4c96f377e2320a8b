package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/almanac/internal/diary"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/taskservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *taskservice.Service
	journal *diary.Journal
}

// NewHandler creates a new Handler. journal may be nil.
func NewHandler(svc *taskservice.Service, journal *diary.Journal) *Handler {
	return &Handler{svc: svc, journal: journal}
}

// notePath extracts the note path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. work%2Ftask.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func (h *Handler) day(w http.ResponseWriter, r *http.Request, v string) (time.Time, bool) {
	d, err := h.svc.ParseDay(v)
	if err != nil {
		writeError(w, r, "parse date", err)
		return time.Time{}, false
	}
	return d, true
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List tasks for a day
//	@Tags			tasks
//	@Produce		json
//	@Param			date	query		string	false	"Reference day (YYYY-MM-DD, default today)"
//	@Param			status	query		string	false	"Status filter"	Enums(open, in-progress, done, all, archive)
//	@Param			context	query		string	false	"Context filter"
//	@Success		200		{object}	TaskListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := h.day(w, r, q.Get("date"))
	if !ok {
		return
	}
	tasks := h.svc.Filter(r.Context(), q.Get("status"), q.Get("context"), date)
	writeJSON(w, http.StatusOK, TaskListResponse{
		Date:  date.Format(models.DateLayout),
		Tasks: taskservice.Views(tasks, date),
	})
}

// TasksDue handles GET /api/tasks/due.
//
//	@Summary		List one-off tasks due on a day
//	@Tags			tasks
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD, default today)"
//	@Success		200		{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks/due [get]
func (h *Handler) TasksDue(w http.ResponseWriter, r *http.Request) {
	date, ok := h.day(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{
		Date:  date.Format(models.DateLayout),
		Tasks: taskservice.Views(h.svc.TasksDueOn(r.Context(), date), date),
	})
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Create a task note
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTaskRequest	true	"Task to create"
//	@Success		201		{object}	CreateTaskResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	path, err := h.svc.CreateTask(r.Context(), req)
	if err != nil {
		writeError(w, r, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateTaskResponse{Path: path})
}

// ToggleTask handles POST /api/tasks/toggle/*.
//
//	@Summary		Toggle a task's status, or a recurring task's completion for a day
//	@Tags			tasks
//	@Produce		json
//	@Param			path	path		string	true	"Task path"
//	@Param			date	query		string	false	"Day for recurring tasks (default today)"
//	@Success		200		{object}	TaskView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/toggle/{path} [post]
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	date, ok := h.day(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	fm, err := h.svc.ToggleStatusOn(r.Context(), path, date)
	if err != nil {
		writeError(w, r, "toggle task", err)
		return
	}
	writeJSON(w, http.StatusOK, taskservice.View(&models.Task{Path: path, Frontmatter: *fm}, date))
}

// CyclePriority handles POST /api/tasks/priority/*.
func (h *Handler) CyclePriority(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	prio, err := h.svc.CyclePriority(r.Context(), path)
	if err != nil {
		writeError(w, r, "cycle priority", err)
		return
	}
	writeJSON(w, http.StatusOK, PriorityResponse{Path: path, Priority: prio})
}

// ArchiveTask handles PUT /api/tasks/archive/*. An empty body archives.
func (h *Handler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	var req ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	archived := req.Archived == nil || *req.Archived
	if err := h.svc.Archive(r.Context(), path, archived); err != nil {
		writeError(w, r, "archive task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTask handles DELETE /api/tasks/*.
//
//	@Summary		Delete a task note
//	@Tags			tasks
//	@Param			path	path	string	true	"Task path"
//	@Success		204		"Task deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{path} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeError(w, r, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotes handles GET /api/notes: the notes other than tasks created on a day.
//
//	@Summary		List notes created on a day
//	@Tags			notes
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD, default today)"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	date, ok := h.day(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	notes, err := h.svc.NotesCreatedOn(r.Context(), date)
	if err != nil {
		writeError(w, r, "list notes", err)
		return
	}
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = NoteListItem{Path: n.Path, Title: n.DisplayTitle()}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Date: date.Format(models.DateLayout), Notes: items})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a note's frontmatter, body and links
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, r, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DiaryStats handles GET /api/diary/stats?period=week|month&date=.
// A week starts at date.
func (h *Handler) DiaryStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := h.day(w, r, q.Get("date"))
	if !ok {
		return
	}
	switch q.Get("period") {
	case "", "week":
		writeJSON(w, http.StatusOK, h.journal.WeekStats(date))
	case "month":
		writeJSON(w, http.StatusOK, h.journal.MonthStats(date))
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("period must be week or month"))
	}
}

// DiarySearch handles GET /api/diary/search?q=.
func (h *Handler) DiarySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	entries, err := h.journal.Search(q)
	if err != nil {
		writeError(w, r, "diary search", err)
		return
	}
	writeJSON(w, http.StatusOK, DiaryListResponse{Entries: nonNil(entries)})
}

// DiaryTag handles GET /api/diary/tags/{tag}.
func (h *Handler) DiaryTag(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.WithTag(chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, r, "diary tag", err)
		return
	}
	writeJSON(w, http.StatusOK, DiaryListResponse{Entries: nonNil(entries)})
}

// DiaryPreview handles GET /api/diary/preview/{date}.
func (h *Handler) DiaryPreview(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	date, ok := h.day(w, r, raw)
	if !ok {
		return
	}
	content, err := h.journal.Preview(date)
	if err != nil {
		writeError(w, r, "diary preview", err)
		return
	}
	writeJSON(w, http.StatusOK, DiaryPreviewResponse{Date: date.Format(models.DateLayout), Content: content})
}

// IndexStatus handles GET /api/index.
//
//	@Summary		Report the indexer state
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IndexStatus
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) IndexStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.IndexStatus())
}

// Rebuild handles POST /api/index/rebuild.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Rebuild(r.Context())
	if err != nil {
		writeError(w, r, "rebuild", err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{
		Stats:    st,
		Duration: st.Duration.String(),
		BuiltAt:  h.svc.IndexStatus().BuiltAt,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
