package ai

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Job is a point-in-time snapshot of an async generation job.
type Job struct {
	ID        string
	Status    JobStatus
	Result    map[string]any
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// jobTracker holds in-flight and recently finished jobs in memory. Jobs
// expire a fixed TTL after creation regardless of status; expired jobs are
// swept on every touch, so the map stays bounded by the job rate times the
// TTL.
type jobTracker struct {
	mu   sync.Mutex
	ttl  time.Duration
	jobs map[string]*Job
	now  func() time.Time
}

func newJobTracker(ttl time.Duration, now func() time.Time) *jobTracker {
	return &jobTracker{
		ttl:  ttl,
		jobs: make(map[string]*Job),
		now:  now,
	}
}

func (t *jobTracker) create() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()

	id := uuid.NewString()
	now := t.now()
	t.jobs[id] = &Job{ID: id, Status: JobPending, CreatedAt: now, UpdatedAt: now}
	return id
}

// complete records a result. A job reaped while running stays gone: late
// writes are dropped.
func (t *jobTracker) complete(id string, result map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()

	j, ok := t.jobs[id]
	if !ok {
		return
	}
	j.Status = JobDone
	j.Result = result
	j.UpdatedAt = t.now()
}

func (t *jobTracker) fail(id string, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()

	j, ok := t.jobs[id]
	if !ok {
		return
	}
	j.Status = JobError
	j.Error = msg
	j.UpdatedAt = t.now()
}

func (t *jobTracker) get(id string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()

	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (t *jobTracker) sweepLocked() {
	cutoff := t.now().Add(-t.ttl)
	for id, j := range t.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(t.jobs, id)
		}
	}
}
