package domain

// AssistantAnswer is the payload of a successful assistant exchange.
type AssistantAnswer struct {
	Response     string `json:"response"`
	Model        string `json:"model"`
	SimilarCases int    `json:"similar_cases"`
}

// AssistantExchange is one question/response round with the assistant,
// scoped either to a task id or to the free context (empty scope).
type AssistantExchange struct {
	Scope        string `json:"scope,omitempty"`
	Prompt       string `json:"prompt"`
	Response     string `json:"response,omitempty"`
	Model        string `json:"model,omitempty"`
	SimilarCases int    `json:"similar_cases,omitempty"`
	Err          string `json:"error,omitempty"`
}

// InferenceResult is returned by the assistant's task inference endpoint.
type InferenceResult struct {
	Tasks           []Task  `json:"tasks"`
	TasksInferred   int     `json:"tasks_inferred"`
	InferenceTimeMS float64 `json:"inference_time_ms"`
	ModelUsed       string  `json:"model_used"`
}

// Health is the degraded-mode signal from the remote store. When the model
// backend is down, AI-dependent actions are disabled rather than hidden.
type Health struct {
	OllamaConnected bool `json:"ollama_connected"`
}
