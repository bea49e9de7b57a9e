package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
)

const evidenceColumns = `id, created_at, last_modified_at, description, done, file_urls, title, category_id, user_id, scope_day`

// EvidenceRepository implements repository.EvidenceRepository for PostgreSQL.
type EvidenceRepository struct {
	db *DB
}

// NewEvidenceRepository creates a new PostgreSQL evidence repository.
func NewEvidenceRepository(db *DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func scanEvidence(row pgx.Row) (*model.Evidence, error) {
	var (
		ev       model.Evidence
		fileURLs string
	)
	err := row.Scan(&ev.ID, &ev.CreatedAt, &ev.LastModifiedAt, &ev.Description, &ev.Done,
		&fileURLs, &ev.Title, &ev.CategoryID, &ev.UserID, &ev.ScopeDay)
	if err != nil {
		return nil, err
	}
	if ev.FileURLs, err = repository.DecodeFileURLs(fileURLs); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Insert adds a new evidence record; see the sqlite implementation for dailyKey.
func (r *EvidenceRepository) Insert(ctx context.Context, ev *model.Evidence, dailyKey *model.DailyKey) (int64, error) {
	fileURLs, err := repository.EncodeFileURLs(ev.FileURLs)
	if err != nil {
		return 0, err
	}

	var key *string
	if dailyKey != nil {
		s := dailyKey.String()
		key = &s
	}

	var id int64
	err = r.db.pool.QueryRow(ctx, `
		INSERT INTO evidence (created_at, last_modified_at, description, done, file_urls, title, category_id, user_id, scope_day, daily_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, ev.CreatedAt, ev.LastModifiedAt, ev.Description, ev.Done, fileURLs, ev.Title,
		ev.CategoryID, ev.UserID, ev.ScopeDay, key).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicateDailyKey
		}
		return 0, fmt.Errorf("failed to insert evidence: %w", err)
	}
	ev.ID = id
	return id, nil
}

// GetByID retrieves an evidence record by its ID.
func (r *EvidenceRepository) GetByID(ctx context.Context, id int64) (*model.Evidence, error) {
	ev, err := scanEvidence(r.db.pool.QueryRow(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	return ev, nil
}

// FindDaily returns every record stored under the user, category and day of key.
func (r *EvidenceRepository) FindDaily(ctx context.Context, key model.DailyKey) ([]model.Evidence, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+evidenceColumns+` FROM evidence
		WHERE user_id = $1 AND category_id = $2 AND scope_day = $3
		ORDER BY id
	`, key.UserID, key.CategoryID, key.Day)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily evidence: %w", err)
	}
	return collectEvidence(rows)
}

// GetAll retrieves evidence records based on filter criteria, newest first.
func (r *EvidenceRepository) GetAll(ctx context.Context, filter *dto.EvidenceFilter) ([]model.Evidence, error) {
	if filter == nil {
		filter = &dto.EvidenceFilter{}
	}
	where, args := buildWhere(filter)
	query := `SELECT ` + evidenceColumns + ` FROM evidence` + where + ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += " OFFSET $" + strconv.Itoa(len(args))
		}
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	return collectEvidence(rows)
}

// GetTotalCount returns the number of records matching the filter.
func (r *EvidenceRepository) GetTotalCount(ctx context.Context, filter *dto.EvidenceFilter) (int, error) {
	where, args := buildWhere(filter)
	var count int
	if err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evidence`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return count, nil
}

// AppendFileURL appends url under a row lock, clears done and bumps last_modified_at.
func (r *EvidenceRepository) AppendFileURL(ctx context.Context, id int64, url string, at time.Time) (*model.Evidence, error) {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ev, err := scanEvidence(tx.QueryRow(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}

	ev.FileURLs = append(ev.FileURLs, url)
	ev.Done = false
	ev.LastModifiedAt = at

	fileURLs, err := repository.EncodeFileURLs(ev.FileURLs)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE evidence SET file_urls = $1, done = FALSE, last_modified_at = $2 WHERE id = $3
	`, fileURLs, at, id); err != nil {
		return nil, fmt.Errorf("failed to append file url: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ev, nil
}

func buildWhere(filter *dto.EvidenceFilter) (string, []interface{}) {
	where := " WHERE TRUE"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		where += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		where += " AND category_id = $" + strconv.Itoa(len(args))
	}
	if filter.Day != "" {
		args = append(args, filter.Day)
		where += " AND scope_day = $" + strconv.Itoa(len(args))
	}
	return where, args
}

func collectEvidence(rows pgx.Rows) ([]model.Evidence, error) {
	defer rows.Close()

	var records []model.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		records = append(records, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}
	return records, nil
}
