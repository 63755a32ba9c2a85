package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/entity"
)

type DocumentJobRepository interface {
	Start(ctx context.Context, runID, sourcePath, contentHash string, mode constants.Mode) (*entity.DocumentJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, records, suppressed int) error
	FinishNoRecords(ctx context.Context, jobID uuid.UUID) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.DocumentJob, error)
	FindSucceededByHash(ctx context.Context, contentHash string) (*entity.DocumentJob, error)
	CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error)
}

type documentJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewDocumentJobRepository(db *DB, log *slog.Logger) DocumentJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentJobRepo{db: db, log: log, now: time.Now}
}

var jobColumns = []string{
	"id", "run_id", "source_path", "content_hash", "mode", "status",
	"record_count", "suppressed", "started_at", "finished_at", "error_message",
}

func (r *documentJobRepo) Start(ctx context.Context, runID, sourcePath, contentHash string, mode constants.Mode) (*entity.DocumentJob, error) {
	job := &entity.DocumentJob{
		ID:          uuid.New(),
		RunID:       runID,
		SourcePath:  sourcePath,
		ContentHash: contentHash,
		Mode:        string(mode),
		Status:      string(constants.JobStatusRunning),
		StartedAt:   r.now().UTC(),
	}
	query, args := r.db.builder().
		Insert(tableJobs).
		Columns("id", "run_id", "source_path", "content_hash", "mode", "status", "started_at").
		Values(job.ID.String(), job.RunID, job.SourcePath, job.ContentHash, job.Mode, job.Status, formatTime(job.StartedAt)).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.log.Error("document_job start failed", "source_path", sourcePath, "err", err)
		return nil, common.DatabaseError("start document job", err)
	}
	r.log.Info("document_job started", "job_id", job.ID, "source_path", sourcePath, "mode", mode)
	return job, nil
}

func (r *documentJobRepo) finish(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, set func(*entsql.UpdateBuilder)) error {
	u := r.db.builder().
		Update(tableJobs).
		Set("status", string(status)).
		Set("finished_at", formatTime(r.now()))
	if set != nil {
		set(u)
	}
	query, args := u.Where(entsql.EQ("id", jobID.String())).Query()

	var res sql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		return common.DatabaseError("finish document job", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document job %s: %w", jobID, common.ErrNotFound)
	}
	return nil
}

func (r *documentJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, records, suppressed int) error {
	err := r.finish(ctx, jobID, constants.JobStatusExtracted, func(u *entsql.UpdateBuilder) {
		u.Set("record_count", records).Set("suppressed", suppressed)
	})
	if err != nil {
		r.log.Error("document_job finish(EXTRACTED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("document_job finished (EXTRACTED)", "job_id", jobID, "records", records)
	return nil
}

func (r *documentJobRepo) FinishNoRecords(ctx context.Context, jobID uuid.UUID) error {
	if err := r.finish(ctx, jobID, constants.JobStatusNoRecords, nil); err != nil {
		r.log.Error("document_job finish(NO_RECORDS) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("document_job finished (NO_RECORDS)", "job_id", jobID)
	return nil
}

func (r *documentJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	err := r.finish(ctx, jobID, constants.JobStatusFailed, func(u *entsql.UpdateBuilder) {
		u.Set("error_message", message)
	})
	if err != nil {
		r.log.Error("document_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("document_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *documentJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.DocumentJob, error) {
	b := r.db.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(tableJobs)).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	jobs, err := r.queryJobs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("document job %s: %w", jobID, common.ErrNotFound)
	}
	return jobs[0], nil
}

// FindSucceededByHash returns the latest job that extracted or found no
// records in a document with the same content hash.
func (r *documentJobRepo) FindSucceededByHash(ctx context.Context, contentHash string) (*entity.DocumentJob, error) {
	b := r.db.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(tableJobs)).
		Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.In("status", string(constants.JobStatusExtracted), string(constants.JobStatusNoRecords)),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()
	jobs, err := r.queryJobs(ctx, query, args)
	if err != nil {
		r.log.Error("failed to find document job by hash", "content_hash", contentHash, "error", err)
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.ErrNotFound
	}
	return jobs[0], nil
}

func (r *documentJobRepo) CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error) {
	b := r.db.builder()
	query, args := b.Select("status", entsql.Count("*")).
		From(b.Table(tableJobs)).
		GroupBy("status").
		Query()

	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.DatabaseError("count document jobs", err)
	}
	defer rows.Close()

	out := make(map[constants.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[constants.JobStatus(status)] = n
	}
	return out, rows.Err()
}

func (r *documentJobRepo) queryJobs(ctx context.Context, query string, args []any) ([]*entity.DocumentJob, error) {
	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.DatabaseError("query document jobs", err)
	}
	defer rows.Close()

	var jobs []*entity.DocumentJob
	for rows.Next() {
		var (
			job                  entity.DocumentJob
			id, started          string
			finished, errMessage sql.NullString
		)
		if err := rows.Scan(&id, &job.RunID, &job.SourcePath, &job.ContentHash, &job.Mode, &job.Status,
			&job.RecordCount, &job.Suppressed, &started, &finished, &errMessage); err != nil {
			return nil, err
		}
		var err error
		if job.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("document job id %q: %w", id, err)
		}
		if job.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("document job %s started_at: %w", id, err)
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, fmt.Errorf("document job %s finished_at: %w", id, err)
			}
			job.FinishedAt = &t
		}
		if errMessage.Valid {
			job.ErrorMessage = &errMessage.String
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
