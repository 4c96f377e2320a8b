package api

import (
	"time"

	"github.com/starford/almanac/internal/diary"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/taskservice"
)

// TaskView is a task as seen on one day (aliased from the domain layer).
type TaskView = taskservice.TaskView

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = taskservice.NoteDetail

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest = taskservice.NewTask

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Date  string     `json:"date" example:"2024-03-01" validate:"required"`
	Tasks []TaskView `json:"tasks" validate:"required"`
}

// CreateTaskResponse is returned after a task has been created.
type CreateTaskResponse struct {
	Path string `json:"path" example:"240301abc.md" validate:"required"`
}

// PriorityResponse is returned after a priority change.
type PriorityResponse struct {
	Path     string `json:"path" example:"240301abc.md" validate:"required"`
	Priority string `json:"priority" example:"high" validate:"required"`
}

// ArchiveRequest is the request body for archiving a task.
type ArchiveRequest struct {
	Archived *bool `json:"archived" example:"true"`
}

// NoteListItem is a lightweight item in a note listing.
type NoteListItem struct {
	Path  string `json:"path" example:"ideas/garden.md" validate:"required"`
	Title string `json:"title" example:"Garden" validate:"required"`
}

// NoteListResponse wraps the notes created on a day.
type NoteListResponse struct {
	Date  string         `json:"date" example:"2024-03-01" validate:"required"`
	Notes []NoteListItem `json:"notes" validate:"required"`
}

// DiaryStats is a habit summary (aliased from the domain layer).
type DiaryStats = diary.Stats

// DiaryListResponse wraps a list of diary entry names.
type DiaryListResponse struct {
	Entries []string `json:"entries" validate:"required"`
}

// DiaryPreviewResponse carries the text of one diary entry.
type DiaryPreviewResponse struct {
	Date    string `json:"date" example:"2024-03-01" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// IndexStatus reports the indexer state (aliased from the domain layer).
type IndexStatus = index.Status

// RebuildResponse is returned by a synchronous rebuild.
type RebuildResponse struct {
	Stats    index.Stats `json:"stats"`
	Duration string      `json:"duration" example:"12ms"`
	BuiltAt  time.Time   `json:"built_at"`
}
