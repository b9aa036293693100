package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AckUpdated = "Task Updated Successful."
	AckDeleted = "Task Deleted Successfully."
)

// Service applies the task rules on top of a Repository: presence checks,
// id matching on update and server-side timestamps.
type Service struct {
	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("tasks"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the server clock in UTC at millisecond precision, the
// finest resolution every store keeps (MongoDB dates are milliseconds).
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) List(ctx context.Context) ([]Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.List")
	defer span.End()
	s.logger.DebugContext(ctx, "task_list")

	out, err := s.repo.List(ctx)
	observe(span, "list", err)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("task.count", len(out)))
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Get", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()
	s.logger.DebugContext(ctx, "task_get", slog.Int64("id", id))

	t, err := s.repo.Get(ctx, id)
	observe(span, "get", err)
	return t, err
}

func (s *Service) Create(ctx context.Context, in Input) (Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Create")
	defer span.End()

	if err := validateInput(in); err != nil {
		observe(span, "create", err)
		return Task{}, err
	}
	s.logger.DebugContext(ctx, "task_create")

	now := s.timestamp()
	t, err := s.repo.Create(ctx, Task{
		Title:       in.Title,
		Description: in.Description,
		IsCompleted: in.IsCompleted,
		DateCreated: now,
		DateUpdated: now,
	})
	observe(span, "create", err)
	if err != nil {
		return Task{}, err
	}
	span.SetAttributes(attribute.Int64("task.id", t.ID))
	return t, nil
}

// Update overwrites title, description and completion state. The check
// order is validation, id mismatch, then existence.
func (s *Service) Update(ctx context.Context, id int64, in Input) (string, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Update", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()

	err := s.update(ctx, id, in)
	observe(span, "update", err)
	if err != nil {
		return "", err
	}
	return AckUpdated, nil
}

func (s *Service) update(ctx context.Context, id int64, in Input) error {
	if err := validateInput(in); err != nil {
		return err
	}
	if in.ID != id {
		return ErrIDMismatch
	}
	s.logger.DebugContext(ctx, "task_update", slog.Int64("id", id))

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	t.Title = in.Title
	t.Description = in.Description
	t.IsCompleted = in.IsCompleted
	t.DateUpdated = s.timestamp()
	if t.DateUpdated.Before(t.DateCreated) {
		t.DateUpdated = t.DateCreated
	}
	return s.repo.Update(ctx, t)
}

func (s *Service) Delete(ctx context.Context, id int64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Delete", trace.WithAttributes(attribute.Int64("task.id", id)))
	defer span.End()
	s.logger.DebugContext(ctx, "task_delete", slog.Int64("id", id))

	err := s.repo.Delete(ctx, id)
	observe(span, "delete", err)
	if err != nil {
		return "", err
	}
	return AckDeleted, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// observe counts the outcome and marks the span failed for internal errors
// only; caller mistakes are not span errors.
func observe(span trace.Span, op string, err error) {
	result := outcome(err)
	operationsTotal.WithLabelValues(op, result).Inc()
	if result == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func outcome(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, ErrIDMismatch):
		return "mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
