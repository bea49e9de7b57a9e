package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
)

const evidenceColumns = `id, created_at, last_modified_at, description, done, file_urls, title, category_id, user_id, scope_day`

// EvidenceRepository implements repository.EvidenceRepository for SQLite.
type EvidenceRepository struct {
	db *DB
}

// NewEvidenceRepository creates a new SQLite evidence repository.
func NewEvidenceRepository(db *DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func scanEvidence(row rowScanner) (*model.Evidence, error) {
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

func getEvidence(ctx context.Context, q queryRower, id int64) (*model.Evidence, error) {
	row := q.QueryRowContext(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = ?`, id)
	ev, err := scanEvidence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	return ev, nil
}

// Insert adds a new evidence record. A non-nil dailyKey is stored in the unique
// daily_key column so a second record for the same key is rejected.
func (r *EvidenceRepository) Insert(ctx context.Context, ev *model.Evidence, dailyKey *model.DailyKey) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	fileURLs, err := repository.EncodeFileURLs(ev.FileURLs)
	if err != nil {
		return 0, err
	}

	var key sql.NullString
	if dailyKey != nil {
		key = sql.NullString{String: dailyKey.String(), Valid: true}
	}

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO evidence (created_at, last_modified_at, description, done, file_urls, title, category_id, user_id, scope_day, daily_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.CreatedAt, ev.LastModifiedAt, ev.Description, ev.Done, fileURLs, ev.Title,
		ev.CategoryID, ev.UserID, ev.ScopeDay, key)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicateDailyKey
		}
		return 0, fmt.Errorf("failed to insert evidence: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	return id, nil
}

// GetByID retrieves an evidence record by its ID.
func (r *EvidenceRepository) GetByID(ctx context.Context, id int64) (*model.Evidence, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return getEvidence(ctx, r.db.Conn(), id)
}

// FindDaily returns every record stored under the user, category and day of key.
func (r *EvidenceRepository) FindDaily(ctx context.Context, key model.DailyKey) ([]model.Evidence, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT `+evidenceColumns+` FROM evidence
		WHERE user_id = ? AND category_id = ? AND scope_day = ?
		ORDER BY id
	`, key.UserID, key.CategoryID, key.Day)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily evidence: %w", err)
	}
	defer rows.Close()

	return collectEvidence(rows)
}

// GetAll retrieves evidence records based on filter criteria, newest first.
func (r *EvidenceRepository) GetAll(ctx context.Context, filter *dto.EvidenceFilter) ([]model.Evidence, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if filter == nil {
		filter = &dto.EvidenceFilter{}
	}
	where, args := buildWhere(filter)
	query := `SELECT ` + evidenceColumns + ` FROM evidence` + where + ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	return collectEvidence(rows)
}

// GetTotalCount returns the number of records matching the filter (without limit/offset).
func (r *EvidenceRepository) GetTotalCount(ctx context.Context, filter *dto.EvidenceFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return count, nil
}

// AppendFileURL appends url to the record's file list, clears done and bumps
// last_modified_at, all in one transaction.
func (r *EvidenceRepository) AppendFileURL(ctx context.Context, id int64, url string, at time.Time) (*model.Evidence, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ev, err := getEvidence(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	ev.FileURLs = append(ev.FileURLs, url)
	ev.Done = false
	ev.LastModifiedAt = at

	fileURLs, err := repository.EncodeFileURLs(ev.FileURLs)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE evidence SET file_urls = ?, done = 0, last_modified_at = ? WHERE id = ?
	`, fileURLs, at, id); err != nil {
		return nil, fmt.Errorf("failed to append file url: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ev, nil
}

func buildWhere(filter *dto.EvidenceFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.UserID != 0 {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.CategoryID != 0 {
		where += " AND category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.Day != "" {
		where += " AND scope_day = ?"
		args = append(args, filter.Day)
	}
	return where, args
}

func collectEvidence(rows *sql.Rows) ([]model.Evidence, error) {
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
