package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/planboard/internal/audit"
	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/fentz26/planboard/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newTestService(t *testing.T) *controlplane.Service {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return controlplane.NewService(st, audit.NewPDRWriter(st), lifecycle.NewEngine(nil))
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return result
}

func resultText(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

func TestServerInitialization(t *testing.T) {
	s := NewServer(newTestService(t))
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go stdio.Listen(ctx, r, stdout)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	rawReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	// Give it a moment to process
	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != "planboard" {
		t.Errorf("Expected server name planboard, got %v", resp.Result.ServerInfo.Name)
	}
}

func TestToolHandlers(t *testing.T) {
	svc := newTestService(t)
	s := NewServer(svc)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, models.NewTask{
		Title:         "Newsletter",
		ClientID:      "c1",
		InternalNotes: "margin is thin",
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	plan, _ := svc.CreatePlan(ctx, models.NewPlan{Title: "Plan"})

	t.Run("change_task_status rejected", func(t *testing.T) {
		result := callTool(t, s, "change_task_status", map[string]interface{}{"id": task.ID, "status": "completed"})
		if !result.IsError {
			t.Fatal("Expected an error result for PENDING -> COMPLETED")
		}
		text := resultText(result)
		if !strings.Contains(text, "PENDING") || !strings.Contains(text, "ACTIVE") {
			t.Errorf("rejection should name current status and allowed targets: %s", text)
		}
	})

	t.Run("change_task_status", func(t *testing.T) {
		result := callTool(t, s, "change_task_status", map[string]interface{}{"id": task.ID, "status": "active"})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		var got lifecycle.AdminTask
		json.Unmarshal([]byte(resultText(result)), &got)
		if got.Status != models.TaskStatusActive {
			t.Errorf("Expected ACTIVE, got %s", got.Status)
		}
	})

	t.Run("set_progress", func(t *testing.T) {
		result := callTool(t, s, "set_progress", map[string]interface{}{"id": task.ID, "progress": 130.0})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		var got lifecycle.AdminTask
		json.Unmarshal([]byte(resultText(result)), &got)
		if got.Computed.Progress != 130 || !got.Computed.Overachieving {
			t.Errorf("progress = %v overachieving = %v", got.Computed.Progress, got.Computed.Overachieving)
		}

		result = callTool(t, s, "set_progress", map[string]interface{}{"id": task.ID})
		if !result.IsError {
			t.Error("Expected an error when progress is missing")
		}
	})

	t.Run("client_view", func(t *testing.T) {
		result := callTool(t, s, "client_view", map[string]interface{}{"client_id": "c1", "id": task.ID})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		if strings.Contains(resultText(result), "margin is thin") {
			t.Error("client view leaked internal notes")
		}

		result = callTool(t, s, "client_view", map[string]interface{}{"client_id": "c1", "id": plan.ID})
		if !result.IsError {
			t.Error("Expected an error result for a plan")
		}
	})

	t.Run("list_tasks", func(t *testing.T) {
		result := callTool(t, s, "list_tasks", map[string]interface{}{"status": "ACTIVE"})
		var resp struct {
			Tasks []lifecycle.AdminTask `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(resultText(result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(resp.Tasks) != 1 {
			t.Errorf("Expected 1 active task, got %d", len(resp.Tasks))
		}
	})

	t.Run("task_history", func(t *testing.T) {
		result := callTool(t, s, "task_history", map[string]interface{}{"id": task.ID})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		if !strings.Contains(resultText(result), audit.ActionTaskStatus) {
			t.Errorf("history should include status changes: %s", resultText(result))
		}
	})
}
