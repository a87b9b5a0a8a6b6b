package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lotus-board/domain"
)

type stubBackend struct {
	fetchTasksFn func(ctx context.Context) ([]domain.Task, error)
	createTaskFn func(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
	updateTaskFn func(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	deleteTaskFn func(ctx context.Context, id string) error
}

func (s *stubBackend) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	if s.fetchTasksFn == nil {
		return nil, errors.New("unexpected FetchTasks call")
	}
	return s.fetchTasksFn(ctx)
}

func (s *stubBackend) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	if s.createTaskFn == nil {
		return domain.Task{}, errors.New("unexpected CreateTask call")
	}
	return s.createTaskFn(ctx, draft)
}

func (s *stubBackend) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if s.updateTaskFn == nil {
		return domain.Task{}, errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, id, patch)
}

func (s *stubBackend) DeleteTask(ctx context.Context, id string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, id)
}

func newTestCache(t *testing.T, base backend, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(base, client, ttl), mr
}

func TestCacheFetchTasksMissThenHit(t *testing.T) {
	expected := []domain.Task{{ID: "t1", Title: "Write code", Status: domain.StatusTodo, Assignee: "ana"}}
	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	}, time.Minute)

	ctx := context.Background()
	tasks, err := cache.FetchTasks(ctx)
	if err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
	if ttl := mr.TTL(snapshotKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	// Second fetch is served from the snapshot.
	tasks, err = cache.FetchTasks(ctx)
	if err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit, backend calls = %d", calls)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("cached tasks differ: %#v", tasks)
	}
}

func TestCacheFetchErrorIsNotCached(t *testing.T) {
	boom := errors.New("store down")
	cache, mr := newTestCache(t, &stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) { return nil, boom },
	}, time.Minute)

	if _, err := cache.FetchTasks(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if mr.Exists(snapshotKey) {
		t.Fatal("failed fetch must not populate the snapshot")
	}
}

func TestCacheMutationsEvictSnapshot(t *testing.T) {
	base := &stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			return []domain.Task{{ID: "t1", Title: "A"}}, nil
		},
		createTaskFn: func(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
			return domain.Task{ID: "t2", Title: draft.Title}, nil
		},
		updateTaskFn: func(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
			return domain.Task{ID: id}, nil
		},
		deleteTaskFn: func(ctx context.Context, id string) error { return nil },
	}
	cache, mr := newTestCache(t, base, time.Minute)
	ctx := context.Background()

	prime := func() {
		if _, err := cache.FetchTasks(ctx); err != nil {
			t.Fatalf("prime: %v", err)
		}
		if !mr.Exists(snapshotKey) {
			t.Fatal("snapshot not populated")
		}
	}

	prime()
	if _, err := cache.CreateTask(ctx, domain.TaskDraft{Title: "B"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if mr.Exists(snapshotKey) {
		t.Fatal("create must evict the snapshot")
	}

	prime()
	doing := domain.StatusDoing
	if _, err := cache.UpdateTask(ctx, "t1", domain.TaskPatch{Status: &doing}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(snapshotKey) {
		t.Fatal("update must evict the snapshot")
	}

	prime()
	if err := cache.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(snapshotKey) {
		t.Fatal("delete must evict the snapshot")
	}
}

func TestCacheFailedMutationKeepsSnapshot(t *testing.T) {
	boom := errors.New("enqueue failed")
	base := &stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			return []domain.Task{{ID: "t1"}}, nil
		},
		deleteTaskFn: func(ctx context.Context, id string) error { return boom },
	}
	cache, mr := newTestCache(t, base, time.Minute)
	ctx := context.Background()

	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if err := cache.DeleteTask(ctx, "t1"); !errors.Is(err, boom) {
		t.Fatalf("expected delete error, got %v", err)
	}
	if !mr.Exists(snapshotKey) {
		t.Fatal("failed delete must not evict the snapshot")
	}
}
