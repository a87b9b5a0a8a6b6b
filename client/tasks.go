package client

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
)

// TaskClient speaks the remote task store's HTTP contract.
type TaskClient struct {
	base
	logger *log.Logger
}

// NewTaskClient creates a client for the task store. A nil doer gets a
// default http.Client with a transport timeout.
func NewTaskClient(baseURL, bearer string, doer Doer, logger *log.Logger) *TaskClient {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskClient{base: newBase(baseURL, bearer, doer), logger: logger}
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

// FetchTasks retrieves the full remote snapshot.
func (c *TaskClient) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	var resp tasksResponse
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// CreateTask submits a draft and returns the server-assigned task.
func (c *TaskClient) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", draft, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask applies a partial update and returns the store's copy.
func (c *TaskClient) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+id, patch, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask removes a task remotely.
func (c *TaskClient) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil)
}

// CheckHealth reports whether the store's model backend is reachable. A
// transport failure is reported as disconnected rather than an error so
// callers can degrade instead of failing.
func (c *TaskClient) CheckHealth(ctx context.Context) (domain.Health, error) {
	var h domain.Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		if domain.IsConnectivity(err) {
			c.logger.WithError(err).Warn("health check unreachable, reporting degraded")
			return domain.Health{OllamaConnected: false}, nil
		}
		return domain.Health{}, err
	}
	return h, nil
}
