package client

import (
	"context"
	"net/http"

	"lotus-board/domain"
)

// AssistantClient speaks the assistant backend's HTTP contract.
type AssistantClient struct {
	base
}

// NewAssistantClient creates a client for the assistant backend.
func NewAssistantClient(baseURL, bearer string, doer Doer) *AssistantClient {
	return &AssistantClient{base: newBase(baseURL, bearer, doer)}
}

type askRequest struct {
	TaskID string `json:"taskId,omitempty"`
	Prompt string `json:"prompt"`
}

// Ask submits a prompt, optionally scoped to a task, and returns the answer.
func (c *AssistantClient) Ask(ctx context.Context, taskID, prompt string) (domain.AssistantAnswer, error) {
	var answer domain.AssistantAnswer
	if err := c.do(ctx, http.MethodPost, "/assistant/ask", askRequest{TaskID: taskID, Prompt: prompt}, &answer); err != nil {
		return domain.AssistantAnswer{}, err
	}
	return answer, nil
}

type inferRequest struct {
	Text string `json:"text"`
}

// InferTasks asks the backend to derive task proposals from raw text.
func (c *AssistantClient) InferTasks(ctx context.Context, text string) (domain.InferenceResult, error) {
	var result domain.InferenceResult
	if err := c.do(ctx, http.MethodPost, "/assistant/infer", inferRequest{Text: text}, &result); err != nil {
		return domain.InferenceResult{}, err
	}
	return result, nil
}
