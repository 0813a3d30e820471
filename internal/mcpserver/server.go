// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes org state and reminder tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/orgstate/internal/orgservice"
)

const contractURI = "org://front-block-format"

// Server wraps the MCP server with org tools.
type Server struct {
	mcp *server.MCPServer
	svc *orgservice.Service
}

// New creates a new MCP server with all org tools registered.
func New(svc *orgservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"orgstate",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("org_state",
		mcp.WithDescription("Aggregated org state: bucket sizes (tasks.<status>, reminders.<window>, "+
			"tags.<tag>, inbox.<category>, knowledge.<folder>, projects.<status>, kind.<kind>) "+
			"and files skipped by the last scan."),
	), s.orgState)

	s.mcp.AddTool(mcp.NewTool("org_bucket",
		mcp.WithDescription("List the documents of one bucket, e.g. tasks.active or reminders.overdue."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Bucket name as reported by org_state")),
	), s.orgBucket)

	s.mcp.AddTool(mcp.NewTool("org_search",
		mcp.WithDescription("Full-text search through document titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.orgSearch)

	s.mcp.AddTool(mcp.NewTool("org_tag_stats",
		mcp.WithDescription("Every tag with the number of documents carrying it, most used first."),
	), s.orgTagStats)

	s.mcp.AddTool(mcp.NewTool("org_backlinks",
		mcp.WithDescription("Find all documents that link to the specified document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document to find backlinks for")),
	), s.orgBacklinks)

	s.mcp.AddTool(mcp.NewTool("org_reminder_list",
		mcp.WithDescription("List reminders sorted by due time, optionally filtered by status. "+
			"Each entry carries its due window (overdue, due-today, due-soon, upcoming, inactive)."),
		mcp.WithString("status",
			mcp.Description("Filter by status"),
			mcp.Enum("pending", "snoozed", "ongoing", "completed", "dismissed"),
		),
	), s.reminderList)

	s.mcp.AddTool(mcp.NewTool("org_reminder_create",
		mcp.WithDescription("Create a new reminder under reminders/. "+
			"Use ISO format with time (e.g. 2026-02-06T09:00) or a plain date."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
		mcp.WithString("remindAt", mcp.Required(), mcp.Description("Due date or datetime in ISO format")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("repeat",
			mcp.Description("Repeat schedule (optional)"),
			mcp.Enum(orgservice.RepeatSchedules...),
		),
		mcp.WithString("repeatUntil", mcp.Description("End date for repeat (ISO date, optional)")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
	), s.reminderCreate)

	s.mcp.AddTool(mcp.NewTool("org_reminder_update",
		mcp.WithDescription("Update a reminder's due time, repeat schedule or tags. "+
			"Omitted fields are left as they are."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Reminder path (relative)")),
		mcp.WithString("remindAt", mcp.Description("New due date or datetime in ISO format")),
		mcp.WithString("repeat",
			mcp.Description("New repeat schedule; none removes it"),
			mcp.Enum(append(slices.Clone(orgservice.RepeatSchedules), repeatNone)...),
		),
		mcp.WithString("repeatUntil", mcp.Description("New repeat end date; empty removes it")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Replace all tags")),
		mcp.WithArray("addTags", mcp.WithStringItems(), mcp.Description("Add these tags")),
		mcp.WithArray("removeTags", mcp.WithStringItems(), mcp.Description("Remove these tags")),
	), s.reminderUpdate)

	s.mcp.AddTool(mcp.NewTool("org_reminder_complete",
		mcp.WithDescription("Mark reminder as completed and move it to reminders/completed/."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Reminder path (relative)")),
	), s.reminderComplete)

	s.mcp.AddTool(mcp.NewTool("org_reminder_dismiss",
		mcp.WithDescription("Dismiss reminder (skip/cancel) and move it to reminders/completed/."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Reminder path (relative)")),
	), s.reminderDismiss)

	s.mcp.AddTool(mcp.NewTool("org_reminder_snooze",
		mcp.WithDescription("Snooze reminder to a later time. Sets status=snoozed and snoozed-until."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Reminder path (relative)")),
		mcp.WithString("until", mcp.Required(), mcp.Description("Snooze until datetime (ISO format, e.g. 2026-02-06T14:00)")),
	), s.reminderSnooze)

	s.mcp.AddTool(mcp.NewTool("org_generate",
		mcp.WithDescription("Regenerate tag pages and the dashboard. Unchanged artifacts are not rewritten."),
	), s.orgGenerate)

	s.mcp.AddTool(mcp.NewTool("org_format_contract",
		mcp.WithDescription("Returns the front-block conventions for tasks, reminders, tags and links. "+
			"Call this before writing documents by hand."),
	), s.formatContract)

	// Resource: front-block contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Front-Block Contract",
			mcp.WithResourceDescription("Front-block conventions read by the org engine."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) orgState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.State(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) orgBucket(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs, err := s.svc.Bucket(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("%s\t%s", r.Path, r.DisplayTitle()))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("bucket is empty"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) orgSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) orgTagStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.TagStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) orgBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) reminderList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rems, err := s.svc.Reminders(ctx, req.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"count":     len(rems),
		"reminders": rems,
	})
}

func (s *Server) reminderCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	remindAt, err := req.RequireString("remindAt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := s.svc.CreateReminder(ctx, orgservice.NewReminder{
		Title:       title,
		RemindAt:    remindAt,
		Description: req.GetString("description", ""),
		Repeat:      req.GetString("repeat", ""),
		RepeatUntil: req.GetString("repeatUntil", ""),
		Tags:        req.GetStringSlice("tags", nil),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"path":    path,
		"message": "Created reminder: " + title,
	})
}

// repeatNone clears a reminder's repeat schedule.
const repeatNone = "none"

func (s *Server) reminderUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	u := orgservice.ReminderUpdate{
		RemindAt:    req.GetString("remindAt", ""),
		Repeat:      stringArg(args, "repeat"),
		RepeatUntil: stringArg(args, "repeatUntil"),
		Tags:        req.GetStringSlice("tags", nil),
		AddTags:     req.GetStringSlice("addTags", nil),
		RemoveTags:  req.GetStringSlice("removeTags", nil),
	}
	if u.Repeat != nil && *u.Repeat == repeatNone {
		u.Repeat = new(string)
	}
	if err := s.svc.UpdateReminder(ctx, path, u); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"path":    path,
		"message": "Updated reminder: " + path,
	})
}

// stringArg returns nil when key is absent or not a string.
func stringArg(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func (s *Server) reminderComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.closeReminder(ctx, req, "Completed", s.svc.CompleteReminder)
}

func (s *Server) reminderDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.closeReminder(ctx, req, "Dismissed", s.svc.DismissReminder)
}

func (s *Server) closeReminder(ctx context.Context, req mcp.CallToolRequest, verb string,
	fn func(context.Context, string) (string, error)) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := fn(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"oldPath": path,
		"newPath": dest,
		"message": verb + " reminder: " + path,
	})
}

func (s *Server) reminderSnooze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	until, err := req.RequireString("until")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SnoozeReminder(ctx, path, until); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success":      true,
		"path":         path,
		"snoozedUntil": until,
		"message":      "Snoozed reminder until " + until,
	})
}

func (s *Server) orgGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Generate(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	failures := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, f.Error())
	}
	return jsonResult(map[string]any{
		"written":   nonNil(report.Written),
		"removed":   nonNil(report.Removed),
		"unchanged": len(report.Unchanged),
		"failures":  failures,
	})
}

func (s *Server) formatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontBlockContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     FrontBlockContract,
		},
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
