package api

import (
	"context"

	"lotus-board/domain"
	"lotus-board/ingest"
	"lotus-board/proposal"
)

// Board is the slice of the board controller handlers depend on.
type Board interface {
	Load(ctx context.Context) error
	Tasks() []domain.Task
	Create(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
	Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	Move(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error)
	Remove(ctx context.Context, id string) error
}

// ProposalQueue is the pending-proposal surface.
type ProposalQueue interface {
	Ingest(proposals []domain.TaskProposal, replace bool) []proposal.Pending
	Pending() []proposal.Pending
	Approve(ctx context.Context, id string) (domain.Task, error)
	Reject(id string) error
}

// AssistantSession is the question/response surface.
type AssistantSession interface {
	Ask(ctx context.Context, scope, prompt string) (domain.AssistantExchange, error)
	Clear(scope string) error
}

// ContextPipeline runs a full context analysis.
type ContextPipeline interface {
	Run(ctx context.Context, text string, source domain.SourceType) (*ingest.Result, error)
}

// TaskInferrer derives task suggestions from raw text.
type TaskInferrer interface {
	InferTasks(ctx context.Context, text string) (domain.InferenceResult, error)
}

// HealthChecker reports the remote store's degraded-mode signal.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (domain.Health, error)
}

// EventStream feeds committed board events to a live consumer.
type EventStream interface {
	Listen(ctx context.Context, broadcast func(data []byte))
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Services bundles everything Register wires routes onto. Stream may be nil
// when no live event feed is configured.
type Services struct {
	Board     Board
	Proposals ProposalQueue
	Assistant AssistantSession
	Inferrer  TaskInferrer
	Pipeline  ContextPipeline
	Health    HealthChecker
	Stream    EventStream
}
