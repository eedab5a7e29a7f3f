// Package progress records import job history in Redis so the back office
// can show what ran, when, and with what outcome. Tracking is best-effort:
// a nil tracker (no Redis configured) is a no-op and import runs are never
// blocked or failed by it.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-research/audience/internal/domain"
	"github.com/meridian-research/audience/internal/pkg/logger"
)

// ErrJobNotFound is returned when no record exists for a job ID.
var ErrJobNotFound = errors.New("import job not found")

const (
	jobKeyPrefix = "audience:import:job:"
	jobIndexKey  = "audience:import:jobs"
	jobTTL       = 7 * 24 * time.Hour
	maxIndexed   = 100
)

// Job sources.
const (
	SourceServer = "server"
	SourceCLI    = "cli"
)

// Job is one import run's history record.
type Job struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"` // "server" or "cli"
	Filename    string     `json:"filename,omitempty"`
	Status      string     `json:"status"` // "running", "completed"
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Total      int `json:"total"`
	Imported   int `json:"imported"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	ErrorCount int `json:"error_count"`
}

// Tracker persists job records in Redis.
type Tracker struct {
	redis *redis.Client
}

// NewTracker creates a tracker. A nil client yields a no-op tracker.
func NewTracker(client *redis.Client) *Tracker {
	if client == nil {
		return nil
	}
	return &Tracker{redis: client}
}

// Start records a job as running and adds it to the recent-jobs index.
func (t *Tracker) Start(ctx context.Context, job *Job) {
	if t == nil {
		return
	}
	job.Status = "running"
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	t.save(ctx, job)

	pipe := t.redis.Pipeline()
	pipe.LPush(ctx, jobIndexKey, job.ID)
	pipe.LTrim(ctx, jobIndexKey, 0, maxIndexed-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("import job index update failed", "job_id", job.ID, "err", err)
	}
}

// Complete stores the final counters for a job.
func (t *Tracker) Complete(ctx context.Context, jobID string, res *domain.ImportResult) {
	if t == nil {
		return
	}
	job, err := t.Get(ctx, jobID)
	if err != nil {
		logger.Warn("import job not found at completion", "job_id", jobID, "err", err)
		return
	}
	now := time.Now()
	job.Status = "completed"
	job.CompletedAt = &now
	job.Total = res.Total
	job.Imported = res.Imported
	job.Skipped = res.Skipped
	job.Duplicates = res.Duplicates
	job.ErrorCount = len(res.Errors)
	t.save(ctx, job)
}

// Get retrieves one job record.
func (t *Tracker) Get(ctx context.Context, jobID string) (*Job, error) {
	if t == nil {
		return nil, ErrJobNotFound
	}
	data, err := t.redis.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Recent returns up to limit job records, most recent first. Jobs whose
// records have expired are skipped.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]*Job, error) {
	if t == nil {
		return []*Job{}, nil
	}
	if limit <= 0 || limit > maxIndexed {
		limit = 20
	}
	ids, err := t.redis.LRange(ctx, jobIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := t.Get(ctx, id)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (t *Tracker) save(ctx context.Context, job *Job) {
	data, _ := json.Marshal(job)
	if err := t.redis.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		logger.Warn("import job save failed", "job_id", job.ID, "err", err)
	}
}
