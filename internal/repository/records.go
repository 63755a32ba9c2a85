package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/entity"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

type RecordRepository interface {
	SaveRecords(ctx context.Context, jobID uuid.UUID, records []extract.Record) error
	ListRecords(ctx context.Context, jobID uuid.UUID) ([]entity.StoredRecord, error)
}

type recordRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepo{db: db, logger: logger}
}

// recordBatch bounds the rows per INSERT statement.
const recordBatch = 200

// SaveRecords stores records of one job in a single transaction.
func (r *recordRepo) SaveRecords(ctx context.Context, jobID uuid.UUID, records []extract.Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.drv.Tx(ctx)
	if err != nil {
		return common.DatabaseError("begin record transaction", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				r.logger.Error("failed to rollback record transaction", "job_id", jobID, "error", rerr)
			}
		}
	}()

	for start := 0; start < len(records); start += recordBatch {
		end := min(start+recordBatch, len(records))
		ins := r.db.builder().
			Insert(tableRecords).
			Columns("job_id", "record_index", "source_id", "extracted_at", "fields_json", "extraction_error")
		for _, rec := range records[start:end] {
			payload, merr := json.Marshal(storedFields(rec))
			if merr != nil {
				return fmt.Errorf("encode record %d: %w", rec.Index(), merr)
			}
			var note any
			if rec.ExtractionError() != "" {
				note = rec.ExtractionError()
			}
			ins.Values(jobID.String(), rec.Index(), rec.SourceID(), formatTime(rec.ExtractedAt()), string(payload), note)
		}
		query, args := ins.Query()
		if err = tx.Exec(ctx, query, args, nil); err != nil {
			r.logger.Error("failed to save records", "job_id", jobID, "error", err)
			return common.DatabaseError("save records", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return common.DatabaseError("commit records", err)
	}
	r.logger.Debug("records saved", "job_id", jobID, "count", len(records))
	return nil
}

func storedFields(rec extract.Record) []entity.Field {
	keys := rec.FieldKeys()
	out := make([]entity.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, entity.Field{Key: k, Value: rec.Value(k)})
	}
	return out
}

// ListRecords returns the records of a job ordered by record index.
func (r *recordRepo) ListRecords(ctx context.Context, jobID uuid.UUID) ([]entity.StoredRecord, error) {
	b := r.db.builder()
	query, args := b.Select("record_index", "source_id", "extracted_at", "fields_json", "extraction_error").
		From(b.Table(tableRecords)).
		Where(entsql.EQ("job_id", jobID.String())).
		OrderBy("record_index").
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.DatabaseError("list records", err)
	}
	defer rows.Close()

	var out []entity.StoredRecord
	for rows.Next() {
		var (
			rec             = entity.StoredRecord{JobID: jobID}
			at, payload     string
			extractionError sql.NullString
		)
		if err := rows.Scan(&rec.RecordIndex, &rec.SourceID, &at, &payload, &extractionError); err != nil {
			return nil, err
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("record %d extracted_at: %w", rec.RecordIndex, err)
		}
		rec.ExtractedAt = t
		if err := json.Unmarshal([]byte(payload), &rec.Fields); err != nil {
			return nil, fmt.Errorf("record %d fields: %w", rec.RecordIndex, err)
		}
		rec.ExtractionError = extractionError.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
