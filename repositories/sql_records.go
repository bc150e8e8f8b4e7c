package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nanodrive/models"
)

const recordColumns = `id, owner_id, original_blob_location, transformed_blob_location,
original_download_url, transformed_download_url, original_file_name, prompt, mode, created_at`

type SQLRecordRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLRecordRepository(db *sql.DB, dialect Dialect) *SQLRecordRepository {
	return &SQLRecordRepository{db: db, dialect: dialect}
}

func scanRecord(row rowScanner) (models.TransformRecord, error) {
	var rec models.TransformRecord
	var created int64
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.OriginalBlobLocation, &rec.TransformedBlobLocation,
		&rec.OriginalDownloadURL, &rec.TransformedDownloadURL, &rec.OriginalFileName, &rec.Prompt, &rec.Mode, &created)
	if err != nil {
		return models.TransformRecord{}, err
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

func (r *SQLRecordRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.TransformRecord, error) {
	query := "SELECT " + recordColumns + " FROM transform_records WHERE owner_id = ? ORDER BY created_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transform records: %w", err)
	}
	defer rows.Close()

	records := make([]models.TransformRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode transform records: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transform records: %w", err)
	}
	return records, nil
}

func (r *SQLRecordRepository) Get(ctx context.Context, ownerID, id string) (*models.TransformRecord, error) {
	query := "SELECT " + recordColumns + " FROM transform_records WHERE id = ? AND owner_id = ?"
	rec, err := scanRecord(r.db.QueryRowContext(ctx, r.dialect.rebind(query), id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transform record", id)
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &rec, nil
}

func (r *SQLRecordRepository) Insert(ctx context.Context, record *models.TransformRecord) (string, error) {
	id := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO transform_records (%s)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, %s) RETURNING created_at`, recordColumns, r.dialect.nowMillis())

	var created int64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(query),
		id, record.OwnerID, record.OriginalBlobLocation, record.TransformedBlobLocation,
		record.OriginalDownloadURL, record.TransformedDownloadURL, record.OriginalFileName,
		record.Prompt, record.Mode,
	).Scan(&created)
	if err != nil {
		return "", fmt.Errorf("failed to insert transform record: %w", err)
	}

	record.ID = id
	record.CreatedAt = time.UnixMilli(created).UTC()
	return id, nil
}

func (r *SQLRecordRepository) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx, r.dialect.rebind("DELETE FROM transform_records WHERE id = ? AND owner_id = ?"), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete transform record: %w", err)
	}
	return expectOneRow(result, "transform record", id)
}
