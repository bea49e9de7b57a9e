package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
)

// CategoryRepository implements repository.CategoryRepository for PostgreSQL.
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new PostgreSQL category repository.
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByName retrieves a category by its name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*model.Category, error) {
	var cat model.Category
	err := r.db.pool.QueryRow(ctx, `SELECT id, name FROM category WHERE name = $1`, name).Scan(&cat.ID, &cat.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// GetAll returns every category ordered by id.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT id, name FROM category ORDER BY id`)
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
	if _, err := r.db.pool.Exec(ctx, `INSERT INTO category (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}
	return r.GetByName(ctx, name)
}
