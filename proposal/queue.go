// Package proposal holds AI-generated task proposals awaiting a human
// decision. Nothing here ever touches the canonical task collection
// directly; approval delegates to the board controller's create path.
package proposal

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
	"lotus-board/events"
)

// Creator is the single board operation the queue needs.
type Creator interface {
	Create(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
}

// Emitter broadcasts the promotion of an approved proposal. May be nil;
// emission failures never fail the approval that triggered them.
type Emitter interface {
	Emit(ctx context.Context, ev events.BoardEvent) error
}

// Pending is a queued proposal plus its decision bookkeeping. The id is
// assigned by the queue; proposals arrive from the backend without one.
type Pending struct {
	ID string `json:"id"`
	domain.TaskProposal
	// IsProcessing blocks a second approve/reject while a decision call is
	// outstanding, so rapid double-activation cannot submit twice.
	IsProcessing bool `json:"isProcessing"`
	// LastError carries the most recent failed approval for re-display.
	LastError string `json:"lastError,omitempty"`
}

// Queue is the pending-proposal collection.
type Queue struct {
	creator Creator
	emitter Emitter
	logger  *log.Logger

	mu    sync.Mutex
	items []*Pending
}

// NewQueue creates an empty queue that commits approvals through creator.
// emitter may be nil.
func NewQueue(creator Creator, emitter Emitter, logger *log.Logger) *Queue {
	if creator == nil {
		panic("proposal.NewQueue: creator is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Queue{creator: creator, emitter: emitter, logger: logger}
}

// Ingest adds proposals to the queue, replacing the current batch when
// replace is set. No confidence filtering happens here: every proposal is
// surfaced, banding is a presentation concern.
func (q *Queue) Ingest(proposals []domain.TaskProposal, replace bool) []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	if replace {
		q.items = q.items[:0]
	}
	for _, p := range proposals {
		q.items = append(q.items, &Pending{ID: uuid.NewString(), TaskProposal: p})
	}
	return q.snapshotLocked()
}

// Pending returns a copy of the queue contents in arrival order.
func (q *Queue) Pending() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() []Pending {
	out := make([]Pending, len(q.items))
	for i, p := range q.items {
		out[i] = *p
	}
	return out
}

// Approve promotes the proposal to a task through the board controller. On
// success the proposal leaves the queue; on failure it stays queued with the
// error attached so it can be re-displayed and retried.
func (q *Queue) Approve(ctx context.Context, id string) (domain.Task, error) {
	q.mu.Lock()
	p := q.findLocked(id)
	if p == nil {
		q.mu.Unlock()
		return domain.Task{}, domain.ErrProposalNotFound
	}
	if p.IsProcessing {
		q.mu.Unlock()
		return domain.Task{}, domain.ErrProposalInFlight
	}
	p.IsProcessing = true
	draft := p.Draft()
	q.mu.Unlock()

	task, err := q.creator.Create(ctx, draft)

	q.mu.Lock()
	// The pointer may have left the queue via a replace-ingest meanwhile;
	// operate on whatever is still queued under this id.
	current := q.findLocked(id)
	if err != nil {
		q.logger.WithError(err).WithField("proposal", id).Warn("proposal approval failed")
		if current != nil {
			current.IsProcessing = false
			current.LastError = err.Error()
		}
		q.mu.Unlock()
		return domain.Task{}, err
	}
	if current != nil {
		q.removeLocked(id)
	}
	q.mu.Unlock()

	q.emit(ctx, events.BoardEvent{Type: events.ProposalApproved, TaskID: task.ID, Task: &task})
	return task, nil
}

func (q *Queue) emit(ctx context.Context, ev events.BoardEvent) {
	if q.emitter == nil {
		return
	}
	if err := q.emitter.Emit(ctx, ev); err != nil {
		q.logger.WithError(err).WithField("type", ev.Type).Warn("emit proposal event")
	}
}

// Reject drops the proposal without any remote call.
func (q *Queue) Reject(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := q.findLocked(id)
	if p == nil {
		return domain.ErrProposalNotFound
	}
	if p.IsProcessing {
		return domain.ErrProposalInFlight
	}
	q.removeLocked(id)
	return nil
}

// Len reports how many proposals are pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) findLocked(id string) *Pending {
	for _, p := range q.items {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) {
	for i, p := range q.items {
		if p.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}
