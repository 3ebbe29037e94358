package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// APIError is a non-2xx answer from the daemon. Rejected transitions carry
// the current and requested statuses.
type APIError struct {
	StatusCode int
	Message    string
	Current    models.TaskStatus
	Requested  models.TaskStatus
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsRejectedTransition reports whether the daemon refused a status change.
func (e *APIError) IsRejectedTransition() bool {
	return e.StatusCode == http.StatusConflict && e.Current != ""
}

// Client wraps HTTP calls to the planboard admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListTasks fetches tasks, optionally filtered by status.
func (c *Client) ListTasks(status models.TaskStatus) ([]lifecycle.AdminTask, error) {
	path := "/admin/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var tasks []lifecycle.AdminTask
	if err := c.do(http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(id string) (*lifecycle.AdminTask, error) {
	var task lifecycle.AdminTask
	if err := c.do(http.MethodGet, "/admin/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// TaskHistory fetches the decision records for a task, oldest first.
func (c *Client) TaskHistory(id string) ([]models.PDREntry, error) {
	var entries []models.PDREntry
	if err := c.do(http.MethodGet, "/admin/tasks/"+id+"/history", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateTask creates a task and returns it.
func (c *Client) CreateTask(in models.NewTask) (*lifecycle.AdminTask, error) {
	var task lifecycle.AdminTask
	if err := c.do(http.MethodPost, "/admin/tasks", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ChangeStatus requests a lifecycle transition.
func (c *Client) ChangeStatus(id string, status models.TaskStatus) (*lifecycle.AdminTask, error) {
	var task lifecycle.AdminTask
	body := map[string]string{"status": string(status)}
	if err := c.do(http.MethodPatch, "/admin/tasks/"+id+"/status", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Reopen moves a closed task back to ACTIVE.
func (c *Client) Reopen(id string) (*lifecycle.AdminTask, error) {
	var task lifecycle.AdminTask
	if err := c.do(http.MethodPost, "/admin/tasks/"+id+"/reopen", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Approve moves a purchased task from PENDING_APPROVAL to PENDING.
func (c *Client) Approve(id string) (*lifecycle.AdminTask, error) {
	var task lifecycle.AdminTask
	if err := c.do(http.MethodPost, "/admin/tasks/"+id+"/approve", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// PatchTask applies a field patch.
func (c *Client) PatchTask(id string, patch models.TaskPatch) (*lifecycle.AdminTask, error) {
	var task lifecycle.AdminTask
	if err := c.do(http.MethodPatch, "/admin/tasks/"+id, patch, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (*controlplane.HealthResponse, error) {
	var health controlplane.HealthResponse
	if err := c.do(http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) do(method, path string, data, out interface{}) error {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func decodeAPIError(code int, body []byte) error {
	var payload struct {
		Error     string            `json:"error"`
		Current   models.TaskStatus `json:"current"`
		Requested models.TaskStatus `json:"requested"`
	}
	apiErr := &APIError{StatusCode: code, Message: string(body)}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Current = payload.Current
		apiErr.Requested = payload.Requested
	}
	return apiErr
}
