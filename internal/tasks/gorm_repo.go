package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// taskRecord is the GORM mapping of the tasks table. Timestamps are set by
// the service, so the fields avoid GORM's CreatedAt/UpdatedAt conventions.
type taskRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	IsCompleted bool      `gorm:"not null;default:false"`
	DateCreated time.Time `gorm:"not null"`
	DateUpdated time.Time `gorm:"not null"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

func (rec taskRecord) task() Task {
	return Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		IsCompleted: rec.IsCompleted,
		DateCreated: rec.DateCreated.UTC(),
		DateUpdated: rec.DateUpdated.UTC(),
	}
}

// GormRepo stores tasks through GORM.
type GormRepo struct {
	db *gorm.DB
}

// OpenGormSQLite opens a SQLite database at path through GORM. debug turns
// on SQL statement logging.
func OpenGormSQLite(path string, debug bool) (*GormRepo, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGormRepo(db), nil
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// ApplyMigrations creates the tasks table if it is missing.
func (r *GormRepo) ApplyMigrations(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&taskRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (r *GormRepo) List(ctx context.Context) ([]Task, error) {
	var recs []taskRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	out := make([]Task, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.task())
	}
	return out, nil
}

func (r *GormRepo) Get(ctx context.Context, id int64) (Task, error) {
	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("failed to find task: %w", err)
	}
	return rec.task(), nil
}

func (r *GormRepo) Create(ctx context.Context, t Task) (Task, error) {
	rec := taskRecord{
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		DateCreated: t.DateCreated,
		DateUpdated: t.DateUpdated,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	t.ID = rec.ID
	return t, nil
}

// Update writes only the mutable columns. Select forces false values of
// is_completed to be written as well.
func (r *GormRepo) Update(ctx context.Context, t Task) error {
	result := r.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("id = ?", t.ID).
		Select("title", "description", "is_completed", "date_updated").
		Updates(&taskRecord{
			Title:       t.Title,
			Description: t.Description,
			IsCompleted: t.IsCompleted,
			DateUpdated: t.DateUpdated,
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
