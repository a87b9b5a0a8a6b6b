// Package board owns the canonical in-memory task collection and reconciles
// it with the remote task store. All mutations flow through the Controller;
// nothing else holds a mutable reference to the collection.
package board

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"lotus-board/domain"
	"lotus-board/events"
)

// defaultDeleteTimeout is the safety valve for a deletion whose remote call
// never resolves: the in-flight flag is force-cleared so the caller is not
// stuck forever, while the task stays on the board.
const defaultDeleteTimeout = 30 * time.Second

// Repository is the slice of the task store contract the controller needs.
type Repository interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Emitter broadcasts committed mutations. May be nil when no live stream is
// wired; emission failures never fail the mutation that triggered them.
type Emitter interface {
	Emit(ctx context.Context, ev events.BoardEvent) error
}

// Controller applies optimistic mutations against the canonical collection
// and enforces at-most-one in-flight mutation per task id.
type Controller struct {
	repo    Repository
	emitter Emitter
	logger  *log.Logger

	now           func() time.Time
	deleteTimeout time.Duration

	mu       sync.Mutex
	tasks    []domain.Task
	index    map[string]int
	inflight map[string]struct{}
}

// NewController creates a Controller over the given repository. emitter may
// be nil.
func NewController(repo Repository, emitter Emitter, logger *log.Logger) *Controller {
	if repo == nil {
		panic("board.NewController: repository is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		repo:          repo,
		emitter:       emitter,
		logger:        logger,
		now:           time.Now,
		deleteTimeout: defaultDeleteTimeout,
		index:         map[string]int{},
		inflight:      map[string]struct{}{},
	}
}

// Load replaces the canonical collection with the remote snapshot. On
// failure the prior collection stays untouched; already-loaded tasks are
// never thrown away over a connectivity blip.
func (c *Controller) Load(ctx context.Context) error {
	tasks, err := c.repo.FetchTasks(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("board load failed, keeping current collection")
		return err
	}
	c.mu.Lock()
	c.tasks = make([]domain.Task, len(tasks))
	c.index = make(map[string]int, len(tasks))
	for i, t := range tasks {
		c.tasks[i] = t.Clone()
		c.index[t.ID] = i
	}
	c.mu.Unlock()
	c.emit(ctx, events.BoardEvent{Type: events.BoardReloaded})
	return nil
}

// Tasks returns a cloned view of the canonical collection.
func (c *Controller) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Task, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Task returns a clone of one task.
func (c *Controller) Task(id string) (domain.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return c.tasks[i].Clone(), nil
}

// InFlight reports whether a mutation for id is still outstanding.
func (c *Controller) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inflight[id]
	return busy
}

// Create submits a draft to the store and appends the confirmed task.
// Creation is not optimistic: the id is server-assigned, so nothing shows on
// the board until the store confirms.
func (c *Controller) Create(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if draft.Status == "" {
		draft.Status = domain.StatusTodo
	}
	if !draft.Status.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(draft.Status)}
	}

	task, err := c.repo.CreateTask(ctx, draft)
	if err != nil {
		return domain.Task{}, err
	}

	c.mu.Lock()
	c.index[task.ID] = len(c.tasks)
	c.tasks = append(c.tasks, task.Clone())
	c.mu.Unlock()

	c.emit(ctx, events.BoardEvent{Type: events.TaskCreated, TaskID: task.ID, Task: &task})
	return task, nil
}

// Update applies the patch locally first, then fires the remote update. On
// remote failure the optimistic copy is kept, not rolled back; the caller
// may retry or Load to reconcile. A second Update for the same id before the
// first resolves fails with ErrMutationInFlight.
func (c *Controller) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	return c.update(ctx, id, patch, events.TaskUpdated)
}

// Move is an Update restricted to the status column, as issued by
// drag-and-drop. Moving a task onto its current column is a no-op and issues
// no repository call.
func (c *Controller) Move(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if c.tasks[i].Status == status {
		current := c.tasks[i].Clone()
		c.mu.Unlock()
		return current, nil
	}
	c.mu.Unlock()
	return c.update(ctx, id, domain.TaskPatch{Status: &status}, events.TaskMoved)
}

func (c *Controller) update(ctx context.Context, id string, patch domain.TaskPatch, evType events.EventType) (domain.Task, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "status", Reason: "unknown status " + string(*patch.Status)}
	}

	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if patch.Empty() {
		current := c.tasks[i].Clone()
		c.mu.Unlock()
		return current, nil
	}
	if _, busy := c.inflight[id]; busy {
		c.mu.Unlock()
		return domain.Task{}, domain.ErrMutationInFlight
	}
	c.inflight[id] = struct{}{}
	patch.Apply(&c.tasks[i], c.now())
	optimistic := c.tasks[i].Clone()
	c.mu.Unlock()

	confirmed, err := c.repo.UpdateTask(ctx, id, patch)
	c.clearInFlight(id)
	if err != nil {
		// Deliberate: no rollback. Local and remote may diverge until the
		// caller retries or reloads.
		c.logger.WithError(err).WithField("task", id).Warn("remote update failed, keeping optimistic copy")
		return optimistic, err
	}

	c.mu.Lock()
	if i, ok := c.index[id]; ok {
		c.tasks[i] = confirmed.Clone()
	}
	c.mu.Unlock()

	c.emit(ctx, events.BoardEvent{Type: evType, TaskID: id, Task: &confirmed})
	return confirmed, nil
}

// Remove deletes the task remotely and only then drops it locally; until the
// store confirms, the task stays visible. If the remote call outlives
// deleteTimeout, the in-flight flag is released and ErrOperationTimeout
// returned so the caller can act again; the call itself is not cancelled and
// a late confirmation still removes the task.
func (c *Controller) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.index[id]; !ok {
		c.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if _, busy := c.inflight[id]; busy {
		c.mu.Unlock()
		return domain.ErrMutationInFlight
	}
	c.inflight[id] = struct{}{}
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.repo.DeleteTask(ctx, id) }()

	timer := time.NewTimer(c.deleteTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		c.clearInFlight(id)
		if err != nil {
			return err
		}
	case <-timer.C:
		c.logger.WithField("task", id).Warn("delete confirmation overdue, releasing in-flight flag")
		c.clearInFlight(id)
		go func() {
			// The flag may already belong to a newer mutation on this id,
			// so the stale resolution must not touch it.
			if err := <-done; err == nil {
				c.dropTask(context.Background(), id)
			}
		}()
		return domain.ErrOperationTimeout
	}

	c.dropTask(ctx, id)
	return nil
}

func (c *Controller) dropTask(ctx context.Context, id string) {
	c.mu.Lock()
	if i, ok := c.index[id]; ok {
		c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
		delete(c.index, id)
		for j := i; j < len(c.tasks); j++ {
			c.index[c.tasks[j].ID] = j
		}
	}
	c.mu.Unlock()

	c.emit(ctx, events.BoardEvent{Type: events.TaskDeleted, TaskID: id})
}

func (c *Controller) clearInFlight(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

func (c *Controller) emit(ctx context.Context, ev events.BoardEvent) {
	if c.emitter == nil {
		return
	}
	if err := c.emitter.Emit(ctx, ev); err != nil {
		c.logger.WithError(err).WithField("type", ev.Type).Warn("emit board event")
	}
}
