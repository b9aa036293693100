package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testRepositoryContract runs the behaviour every Repository implementation
// must share against an empty, migrated store.
func testRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d tasks", len(list))
	}

	created := time.Date(2025, 3, 1, 10, 30, 0, 123000000, time.UTC)
	a, err := repo.Create(ctx, Task{
		Title:       "first",
		Description: "first description",
		DateCreated: created,
		DateUpdated: created,
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if a.ID == 0 {
		t.Fatalf("expected assigned id, got %+v", a)
	}

	b, err := repo.Create(ctx, Task{
		Title:       "second",
		Description: "second description",
		IsCompleted: true,
		DateCreated: created,
		DateUpdated: created,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if b.ID <= a.ID {
		t.Fatalf("expected monotonic IDs: a=%d b=%d", a.ID, b.ID)
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	assertSameTask(t, got, a)

	list, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].Title != "first" || list[1].Title != "second" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if !list[1].IsCompleted {
		t.Errorf("expected second task to be completed")
	}

	updated := created.Add(time.Hour)
	err = repo.Update(ctx, Task{
		ID:          a.ID,
		Title:       "first edited",
		Description: "new description",
		IsCompleted: true,
		DateCreated: created.Add(48 * time.Hour), // must be ignored
		DateUpdated: updated,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	want := Task{
		ID:          a.ID,
		Title:       "first edited",
		Description: "new description",
		IsCompleted: true,
		DateCreated: created,
		DateUpdated: updated,
	}
	assertSameTask(t, got, want)

	// flipping back to false must persist too
	want.IsCompleted = false
	if err := repo.Update(ctx, want); err != nil {
		t.Fatalf("update back: %v", err)
	}
	got, _ = repo.Get(ctx, a.ID)
	if got.IsCompleted {
		t.Errorf("expected IsCompleted=false after second update")
	}

	if err := repo.Update(ctx, Task{ID: 9999, Title: "x", Description: "y", DateUpdated: updated}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice: expected ErrNotFound, got %v", err)
	}

	c, err := repo.Create(ctx, Task{Title: "third", Description: "d", DateCreated: created, DateUpdated: created})
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	if c.ID <= b.ID {
		t.Fatalf("ids must not be reused: b=%d c=%d", b.ID, c.ID)
	}

	// the highest id is not handed out again either
	if err := repo.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete third: %v", err)
	}
	d, err := repo.Create(ctx, Task{Title: "fourth", Description: "d", DateCreated: created, DateUpdated: created})
	if err != nil {
		t.Fatalf("create fourth: %v", err)
	}
	if d.ID <= c.ID {
		t.Fatalf("ids must not be reused: c=%d d=%d", c.ID, d.ID)
	}
}

func assertSameTask(t *testing.T, got, want Task) {
	t.Helper()
	if got.ID != want.ID || got.Title != want.Title || got.Description != want.Description || got.IsCompleted != want.IsCompleted {
		t.Fatalf("task mismatch:\n got  %+v\n want %+v", got, want)
	}
	if !got.DateCreated.Equal(want.DateCreated) {
		t.Errorf("DateCreated: got %v, want %v", got.DateCreated, want.DateCreated)
	}
	if !got.DateUpdated.Equal(want.DateUpdated) {
		t.Errorf("DateUpdated: got %v, want %v", got.DateUpdated, want.DateUpdated)
	}
}

func TestInMemoryRepo_Contract(t *testing.T) {
	testRepositoryContract(t, NewInMemoryRepo())
}
