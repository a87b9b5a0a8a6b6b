package domain

import (
	"testing"
	"time"
)

func TestTaskPatchApply(t *testing.T) {
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Title: "Write docs", Status: StatusTodo, Assignee: "ana", CreatedAt: created, UpdatedAt: created}

	doing := StatusDoing
	title := "Write user docs"
	now := created.Add(time.Hour)
	TaskPatch{Title: &title, Status: &doing}.Apply(&task, now)

	if task.Title != title || task.Status != StatusDoing {
		t.Fatalf("patch not applied: %#v", task)
	}
	if !task.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt not refreshed: %v", task.UpdatedAt)
	}
	if task.Assignee != "ana" {
		t.Fatalf("untouched field changed: %s", task.Assignee)
	}
}

func TestTaskPatchEmpty(t *testing.T) {
	if !(TaskPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	s := StatusDone
	if (TaskPatch{Status: &s}).Empty() {
		t.Error("status patch should not be empty")
	}
}

func TestTaskCloneIsIndependent(t *testing.T) {
	task := Task{
		ID:          "t1",
		Comments:    []Comment{{ID: "c1", Text: "first"}},
		Attachments: []string{"https://example.com/a.png"},
	}
	clone := task.Clone()
	clone.Comments[0].Text = "changed"
	clone.Attachments[0] = "other"
	if task.Comments[0].Text != "first" || task.Attachments[0] != "https://example.com/a.png" {
		t.Fatalf("clone shares backing arrays with original")
	}
}

func TestTaskStatusValid(t *testing.T) {
	for _, s := range []TaskStatus{StatusTodo, StatusDoing, StatusDone} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if TaskStatus("archived").Valid() {
		t.Error("unknown status should be invalid")
	}
}
