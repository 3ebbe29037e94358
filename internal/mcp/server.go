// Package mcp exposes the planboard control plane as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/fentz26/planboard/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server backed by the control plane service.
func NewServer(svc *controlplane.Service) *server.MCPServer {
	s := server.NewMCPServer("planboard", controlplane.Version)

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with their computed progress. Plans are never included."),
		mcp.WithString("status", mcp.Description("Filter by status (PENDING_APPROVAL|PENDING|ACTIVE|COMPLETED|CANCELLED)")),
		mcp.WithString("client_id", mcp.Description("Filter by client")),
	), listTasksHandler(svc))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get the admin view of a task, including allowed transitions and milestones."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskHandler(svc))

	s.AddTool(mcp.NewTool("client_view",
		mcp.WithDescription("Show a task exactly as the purchasing client sees it."),
		mcp.WithString("client_id", mcp.Description("Client ID"), mcp.Required()),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), clientViewHandler(svc))

	s.AddTool(mcp.NewTool("change_task_status",
		mcp.WithDescription("Move a task along the lifecycle (PENDING -> ACTIVE|CANCELLED, ACTIVE -> COMPLETED|CANCELLED)."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("status", mcp.Description("Requested status"), mcp.Required()),
	), changeStatusHandler(svc))

	s.AddTool(mcp.NewTool("reopen_task",
		mcp.WithDescription("Reopen a COMPLETED or CANCELLED task. It always lands on ACTIVE."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), reopenTaskHandler(svc))

	s.AddTool(mcp.NewTool("approve_task",
		mcp.WithDescription("Approve a purchased task so it leaves PENDING_APPROVAL."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), approveTaskHandler(svc))

	s.AddTool(mcp.NewTool("set_progress",
		mcp.WithDescription("Set or clear the admin progress override. Values above 100 mean overachieving."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithNumber("progress", mcp.Description("Override percentage (omit with clear=true to remove)")),
		mcp.WithBoolean("clear", mcp.Description("Remove the override and fall back to the task's mode")),
	), setProgressHandler(svc))

	s.AddTool(mcp.NewTool("task_history",
		mcp.WithDescription("List the decision records written for a task."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), taskHistoryHandler(svc))

	return s
}

// Serve runs the tool server on stdio until stdin closes.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func listTasksHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var f store.TaskFilter
		if v := mcp.ParseString(request, "status", ""); v != "" {
			status, err := models.ParseTaskStatus(v)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			f.Status = status
		}
		f.ClientID = mcp.ParseString(request, "client_id", "")

		tasks, err := svc.ListAdminTasks(ctx, f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]interface{}{"tasks": tasks})
	}
}

func getTaskHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := svc.GetAdminTask(ctx, mcp.ParseString(request, "id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(task)
	}
}

func clientViewHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientID := mcp.ParseString(request, "client_id", "")
		id := mcp.ParseString(request, "id", "")

		task, err := svc.GetClientTask(ctx, clientID, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(task)
	}
}

func changeStatusHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := models.ParseTaskStatus(mcp.ParseString(request, "status", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := svc.ChangeStatus(ctx, mcp.ParseString(request, "id", ""), status)
		if err != nil {
			return mcp.NewToolResultError(transitionMessage(err)), nil
		}
		return jsonResult(task)
	}
}

func reopenTaskHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := svc.ReopenTask(ctx, mcp.ParseString(request, "id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(task)
	}
}

func approveTaskHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		task, err := svc.ApproveTask(ctx, mcp.ParseString(request, "id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(task)
	}
}

func setProgressHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		clearOverride := mcp.ParseBoolean(request, "clear", false)

		var progress *float64
		if !clearOverride {
			args, _ := request.Params.Arguments.(map[string]any)
			v, ok := args["progress"].(float64)
			if !ok {
				return mcp.NewToolResultError("progress is required unless clear is true"), nil
			}
			progress = &v
		}

		task, err := svc.SetProgress(ctx, id, progress)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(task)
	}
}

func taskHistoryHandler(svc *controlplane.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := svc.TaskHistory(ctx, mcp.ParseString(request, "id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]interface{}{"entries": entries})
	}
}

// transitionMessage adds the allowed targets to a rejected transition.
func transitionMessage(err error) string {
	var ite *lifecycle.InvalidTransitionError
	if !errors.As(err, &ite) {
		return err.Error()
	}
	switch {
	case ite.Current.IsTerminal():
		return fmt.Sprintf("%s; %s is terminal, use reopen_task", err, ite.Current)
	case ite.Current == models.TaskStatusPendingApproval:
		return fmt.Sprintf("%s; use approve_task first", err)
	}
	return fmt.Sprintf("%s; allowed from %s: %v", err, ite.Current, lifecycle.AllowedTargets(ite.Current))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
