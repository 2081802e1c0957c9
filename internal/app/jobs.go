package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/model"
)

// ErrClosed is returned when a job is started on a closed orchestrator.
var ErrClosed = errors.New("orchestrator closed")

type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventResult JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Job is an asynchronous ScanURL call.
type Job struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Events    chan JobEvent `json:"-"`

	Result  *model.ScanResult `json:"result,omitempty"`
	Cached  bool              `json:"cached,omitempty"`
	Changes *ChangeSummary    `json:"changes,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	switch j.Status {
	case JobDone, JobFailed, JobCanceled:
		return true
	}
	return false
}

func (o *Orchestrator) newJob(url string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    JobPending,
		StartedAt: o.now().UTC(),
		Events:    make(chan JobEvent, 16),
	}
}

// StartScanJob runs ScanURL for url in the background and returns
// immediately. Progress is published on the job's Events channel, which is
// closed once the job finishes.
func (o *Orchestrator) StartScanJob(ctx context.Context, url string) (*Job, error) {
	job := o.newJob(url)
	jobCtx, cancel := context.WithCancel(ctx)

	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	o.jobs[job.ID] = job
	o.jobCancels[job.ID] = cancel
	snapshot := *job
	o.jobsMu.Unlock()

	o.emitJobEvent(job.ID, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobPending})

	go o.runJob(jobCtx, job.ID, url)

	return &snapshot, nil
}

func (o *Orchestrator) runJob(ctx context.Context, jobID, url string) {
	log := o.logger.With(logging.Field{Key: "job_id", Value: jobID}, logging.Field{Key: "url", Value: url})
	defer o.finishJob(jobID)

	o.updateJob(jobID, func(j *Job) { j.Status = JobRunning })
	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobRunning})

	out, err := o.scanURL(ctx, url)
	switch {
	case ctx.Err() != nil:
		log.Info("scan job canceled")
		o.updateJob(jobID, func(j *Job) {
			j.Status = JobCanceled
			j.Error = ctx.Err().Error()
		})
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobCanceled, Error: ctx.Err().Error()})
	case err != nil:
		o.updateJob(jobID, func(j *Job) {
			j.Status = JobFailed
			j.Error = err.Error()
		})
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobFailed, Error: err.Error()})
	default:
		o.updateJob(jobID, func(j *Job) {
			j.Status = JobDone
			j.Result = out.Result
			j.Cached = out.Cached
			j.Changes = out.Changes
		})
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventResult, Status: JobDone})
	}
}

// finishJob stamps the end time, closes the events channel and schedules
// the job's removal after JobRetention.
func (o *Orchestrator) finishJob(jobID string) {
	o.jobsMu.Lock()
	if cancel, ok := o.jobCancels[jobID]; ok {
		cancel()
		delete(o.jobCancels, jobID)
	}
	if j, ok := o.jobs[jobID]; ok {
		j.EndedAt = o.now().UTC()
		close(j.Events)
	}
	o.jobsMu.Unlock()

	if o.cfg.JobRetention > 0 {
		time.AfterFunc(o.cfg.JobRetention, func() {
			o.jobsMu.Lock()
			delete(o.jobs, jobID)
			o.jobsMu.Unlock()
		})
	}
}

func (o *Orchestrator) updateJob(jobID string, fn func(*Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		fn(j)
	}
}

// emitJobEvent sends without blocking; events are dropped when the buffer
// is full. The send happens under jobsMu so it never races finishJob.
func (o *Orchestrator) emitJobEvent(jobID string, ev JobEvent) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok || !job.EndedAt.IsZero() {
		return
	}
	select {
	case job.Events <- ev:
	default:
	}
}

// GetJob returns a snapshot of the job, or nil when it is unknown or has
// been removed.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// ListJobs returns snapshots of every retained job, oldest first.
func (o *Orchestrator) ListJobs() []*Job {
	o.jobsMu.Lock()
	jobs := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		cp := *j
		jobs = append(jobs, &cp)
	}
	o.jobsMu.Unlock()

	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].StartedAt.Equal(jobs[b].StartedAt) {
			return jobs[a].ID < jobs[b].ID
		}
		return jobs[a].StartedAt.Before(jobs[b].StartedAt)
	})
	return jobs
}

// CancelJob stops waiting for the job's scan. A scan already admitted to
// the queue still completes and is cached. It reports whether the job was
// running.
func (o *Orchestrator) CancelJob(jobID string) bool {
	o.jobsMu.Lock()
	cancel, ok := o.jobCancels[jobID]
	o.jobsMu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
