// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the task tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/taskservice"
)

const taskFormatURI = "almanac://task-format"

// Server wraps the MCP server with the task tools.
type Server struct {
	mcp *server.MCPServer
	svc *taskservice.Service
}

// New creates a new MCP server with all task tools registered.
func New(svc *taskservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Almanac",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks for a day, overdue first, then by priority and due date."),
		mcp.WithString("date", mcp.Description("Reference day as YYYY-MM-DD (default today)")),
		mcp.WithString("status", mcp.Description("open, in-progress, done, all or archive (default open)")),
		mcp.WithString("context", mcp.Description("Only tasks with this context (case-insensitive)")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("tasks_due_on",
		mcp.WithDescription("List the one-off tasks due on a day that are not done."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day as YYYY-MM-DD")),
	), s.tasksDueOn)

	s.mcp.AddTool(mcp.NewTool("toggle_task",
		mcp.WithDescription("Advance a task's status (open, in-progress, done). "+
			"For a recurring task, mark or unmark the given day as done."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task note")),
		mcp.WithString("date", mcp.Description("Day for recurring tasks as YYYY-MM-DD (default today)")),
	), s.toggleTask)

	s.mcp.AddTool(mcp.NewTool("cycle_priority",
		mcp.WithDescription("Cycle a task's priority low, normal, high."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task note")),
	), s.cyclePriority)

	s.mcp.AddTool(mcp.NewTool("archive_task",
		mcp.WithDescription("Archive or unarchive a task."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task note")),
		mcp.WithBoolean("archived", mcp.Description("true to archive (default), false to restore")),
	), s.archiveTask)

	s.mcp.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task note from disk."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task note")),
	), s.deleteTask)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task note. Read the "+taskFormatURI+" resource for the layout."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("due", mcp.Description("Due day as YYYY-MM-DD")),
		mcp.WithString("priority", mcp.Description("low, normal or high (default normal)")),
		mcp.WithArray("tags", mcp.Description("Extra tags besides task"), mcp.WithStringItems()),
		mcp.WithArray("contexts", mcp.Description("Contexts such as home or work"), mcp.WithStringItems()),
		mcp.WithObject("recurrence", mcp.Description("Recurrence rule: frequency (daily, weekly, monthly, yearly), "+
			"days_of_week (mon..sun, weekly), day_of_month (1..31, monthly and yearly)")),
	), mcp.NewTypedToolHandler(s.createTask))

	s.mcp.AddTool(mcp.NewTool("notes_created_on",
		mcp.WithDescription("List the notes that are not tasks created on a day."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default today)")),
	), s.notesCreatedOn)

	s.mcp.AddTool(mcp.NewTool("get_task_format",
		mcp.WithDescription("Returns the task note format. Call this before creating tasks."),
	), s.getTaskFormat)

	// Resource: task format contract.
	s.mcp.AddResource(
		mcp.NewResource(taskFormatURI, "Task Format",
			mcp.WithResourceDescription("How task notes are laid out and interpreted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := s.svc.ParseDay(req.GetString("date", ""))
	if err != nil {
		return errorResult(err), nil
	}
	tasks := s.svc.Filter(ctx, req.GetString("status", ""), req.GetString("context", ""), date)
	return jsonResult(taskservice.Views(tasks, date))
}

func (s *Server) tasksDueOn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := s.svc.ParseDay(raw)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(taskservice.Views(s.svc.TasksDueOn(ctx, date), date))
}

func (s *Server) toggleTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := s.svc.ParseDay(req.GetString("date", ""))
	if err != nil {
		return errorResult(err), nil
	}
	fm, err := s.svc.ToggleStatusOn(ctx, path, date)
	if err != nil {
		return errorResult(err), nil
	}
	t := &models.Task{Path: path, Frontmatter: *fm}
	return jsonResult(taskservice.View(t, date))
}

func (s *Server) cyclePriority(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prio, err := s.svc.CyclePriority(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("priority: %s", prio)), nil
}

func (s *Server) archiveTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	archived := req.GetBool("archived", true)
	if err := s.svc.Archive(ctx, path, archived); err != nil {
		return errorResult(err), nil
	}
	if archived {
		return mcp.NewToolResultText(fmt.Sprintf("archived: %s", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("restored: %s", path)), nil
}

func (s *Server) deleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, path); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) createTask(ctx context.Context, _ mcp.CallToolRequest, in taskservice.NewTask) (*mcp.CallToolResult, error) {
	path, err := s.svc.CreateTask(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) notesCreatedOn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := s.svc.ParseDay(req.GetString("date", ""))
	if err != nil {
		return errorResult(err), nil
	}
	notes, err := s.svc.NotesCreatedOn(ctx, date)
	if err != nil {
		return errorResult(err), nil
	}
	type item struct {
		Path  string `json:"path"`
		Title string `json:"title"`
	}
	out := make([]item, len(notes))
	for i, n := range notes {
		out[i] = item{Path: n.Path, Title: n.DisplayTitle()}
	}
	return jsonResult(out)
}

func (s *Server) getTaskFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormatContract), nil
}

func (s *Server) readTaskFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      taskFormatURI,
			MIMEType: "text/markdown",
			Text:     TaskFormatContract,
		},
	}, nil
}
