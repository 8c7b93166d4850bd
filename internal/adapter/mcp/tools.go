package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
)

// registerTools registers all inspection tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getTaskStateTool(),
		s.getTaskHistoryTool(),
		s.listActiveTasksTool(),
	)
}

func (s *Server) getTaskStateTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task_state",
		mcplib.WithDescription("Compute a task's current state by replaying its context log; pass 'at' for the state as of a sequence number"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to inspect"),
		),
		mcplib.WithNumber("at",
			mcplib.Description("Optional sequence number to replay up to"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetTaskState,
	}
}

func (s *Server) getTaskHistoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task_history",
		mcplib.WithDescription("Return a task's full context log in sequence order"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to inspect"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetTaskHistory,
	}
}

func (s *Server) listActiveTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_active_tasks",
		mcplib.WithDescription("List tasks that are created, in progress, or paused for input"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListActiveTasks,
	}
}

func (s *Server) handleGetTaskState(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcplib.NewToolResultError("task_id is required"), nil
	}

	at := req.GetInt("at", 0)
	var st any
	var serr error
	if at > 0 {
		st, serr = s.ctxsvc.StateAt(ctx, taskID, at)
	} else {
		st, serr = s.ctxsvc.State(ctx, taskID)
	}
	if serr != nil {
		return mcplib.NewToolResultErrorFromErr("failed to compute state", serr), nil
	}

	data, err := json.Marshal(st)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal state", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetTaskHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcplib.NewToolResultError("task_id is required"), nil
	}

	entries, err := s.ctxsvc.History(ctx, taskID, 0)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read history", err), nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal history", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleListActiveTasks(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	var active []task.Task
	for _, status := range activeStatuses {
		tasks, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to list tasks", err), nil
		}
		active = append(active, tasks...)
	}

	data, err := json.Marshal(active)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal tasks", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
