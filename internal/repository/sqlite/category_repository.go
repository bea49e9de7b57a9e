package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
)

// CategoryRepository implements repository.CategoryRepository for SQLite.
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new SQLite category repository.
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByName retrieves a category by its name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*model.Category, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getByName(ctx, name)
}

func (r *CategoryRepository) getByName(ctx context.Context, name string) (*model.Category, error) {
	var cat model.Category
	err := r.db.Conn().QueryRowContext(ctx, `SELECT id, name FROM category WHERE name = ?`, name).
		Scan(&cat.ID, &cat.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// GetAll returns every category ordered by id.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]model.Category, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT id, name FROM category ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// Ensure returns the category with name, inserting it first when missing.
func (r *CategoryRepository) Ensure(ctx context.Context, name string) (*model.Category, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `INSERT OR IGNORE INTO category (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}
	return r.getByName(ctx, name)
}
