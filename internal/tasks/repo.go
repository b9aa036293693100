package tasks

import (
	"context"
	"sort"
	"sync"
)

// Repository persists tasks. Create assigns the id; Update and Delete
// return ErrNotFound when no row matches.
type Repository interface {
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Create(ctx context.Context, t Task) (Task, error)
	Update(ctx context.Context, t Task) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	store map[int64]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
	}
}

func (r *InMemoryRepo) List(_ context.Context) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepo) Get(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *InMemoryRepo) Create(_ context.Context, t Task) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// ids are never reused, even after deletes
	r.seq++
	t.ID = r.seq
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) Update(_ context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.store[t.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title = t.Title
	cur.Description = t.Description
	cur.IsCompleted = t.IsCompleted
	cur.DateUpdated = t.DateUpdated
	r.store[t.ID] = cur
	return nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *InMemoryRepo) Ping(_ context.Context) error { return nil }
