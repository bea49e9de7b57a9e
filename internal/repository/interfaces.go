package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrAmbiguousRecord is returned when more than one record matches a daily key.
	ErrAmbiguousRecord = errors.New("more than one evidence record for daily key")
	// ErrDuplicateDailyKey is returned when an insert collides with an existing daily record.
	ErrDuplicateDailyKey = errors.New("evidence record for daily key already exists")
)

// EvidenceRepository defines the interface for evidence data operations.
type EvidenceRepository interface {
	// Create operations. dailyKey is nil for records that never merge.
	Insert(ctx context.Context, ev *model.Evidence, dailyKey *model.DailyKey) (int64, error)

	// Read operations
	GetByID(ctx context.Context, id int64) (*model.Evidence, error)
	FindDaily(ctx context.Context, key model.DailyKey) ([]model.Evidence, error)
	GetAll(ctx context.Context, filter *dto.EvidenceFilter) ([]model.Evidence, error)
	GetTotalCount(ctx context.Context, filter *dto.EvidenceFilter) (int, error)

	// Update operations. AppendFileURL also clears done and bumps last_modified_at.
	AppendFileURL(ctx context.Context, id int64, url string, at time.Time) (*model.Evidence, error)
}

// CategoryRepository defines the interface for category lookups.
type CategoryRepository interface {
	GetByName(ctx context.Context, name string) (*model.Category, error)
	GetAll(ctx context.Context) ([]model.Category, error)
	// Ensure returns the category with name, creating it when missing.
	Ensure(ctx context.Context, name string) (*model.Category, error)
}
