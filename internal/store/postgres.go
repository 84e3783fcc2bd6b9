package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/civicatlas/stagedesk/internal/models"
)

// PostgresStore persists staged records in a Postgres table with a version
// column used for conditional updates.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed record store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, kind, payload, author_id, status, reviewed_by, review_count,
	       reject_comment, lock_holder, lock_acquired_at, version, created_at, updated_at`

// Get retrieves a record by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.StagedRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM staged_records
		WHERE id = $1
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staged record: %w", err)
	}
	return rec, nil
}

// Insert stores a new record at version 1.
func (s *PostgresStore) Insert(ctx context.Context, rec *models.StagedRecord) error {
	query := `
		INSERT INTO staged_records (
			id, kind, payload, author_id, status, reviewed_by, review_count,
			reject_comment, lock_holder, lock_acquired_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
	`
	holder, acquiredAt := lockColumns(rec.Lock)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Kind),
		[]byte(rec.Payload),
		rec.AuthorID,
		string(rec.Status),
		pq.Array(rec.ReviewedBy),
		rec.ReviewCount,
		rec.RejectComment,
		holder,
		acquiredAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert staged record: %w", err)
	}
	rec.Version = 1
	return nil
}

// Update writes the record back, conditional on the version it was read at.
// A lost race surfaces as ErrVersionConflict; the record never exists half
// written because all fields move in one statement.
func (s *PostgresStore) Update(ctx context.Context, rec *models.StagedRecord) error {
	query := `
		UPDATE staged_records
		SET payload = $3,
		    author_id = $4,
		    status = $5,
		    reviewed_by = $6,
		    review_count = $7,
		    reject_comment = $8,
		    lock_holder = $9,
		    lock_acquired_at = $10,
		    updated_at = $11,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`
	holder, acquiredAt := lockColumns(rec.Lock)
	result, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Version,
		[]byte(rec.Payload),
		rec.AuthorID,
		string(rec.Status),
		pq.Array(rec.ReviewedBy),
		rec.ReviewCount,
		rec.RejectComment,
		holder,
		acquiredAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update staged record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staged record: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing record from a lost race.
		if _, err := s.Get(ctx, rec.ID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	rec.Version++
	return nil
}

// List retrieves records matching the filter, oldest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]models.StagedRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM staged_records
	`
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list staged records: %w", err)
	}
	defer rows.Close()

	// Initialize with empty slice instead of nil to avoid JSON null
	records := []models.StagedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list staged records: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.StagedRecord, error) {
	var rec models.StagedRecord
	var kind, status string
	var payload []byte
	var reviewedBy pq.StringArray
	var lockHolder sql.NullString
	var lockAcquiredAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&kind,
		&payload,
		&rec.AuthorID,
		&status,
		&reviewedBy,
		&rec.ReviewCount,
		&rec.RejectComment,
		&lockHolder,
		&lockAcquiredAt,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.RecordKind(kind)
	rec.Status = models.Status(status)
	rec.Payload = payload
	rec.ReviewedBy = []string(reviewedBy)
	if rec.ReviewedBy == nil {
		rec.ReviewedBy = []string{}
	}
	if lockHolder.Valid {
		rec.Lock = &models.Lock{
			HolderID:   lockHolder.String,
			AcquiredAt: lockAcquiredAt.Time,
		}
	}
	return &rec, nil
}

func lockColumns(lock *models.Lock) (sql.NullString, sql.NullTime) {
	if lock == nil {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: lock.HolderID, Valid: true},
		sql.NullTime{Time: lock.AcquiredAt, Valid: true}
}
