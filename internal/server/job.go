package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/holefill/internal/inpaint"
	"github.com/cwbudde/holefill/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Done reports whether the state is final.
func (s JobState) Done() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is an alias to avoid duplication with store.JobConfig
type JobConfig = store.JobConfig

// Job represents a fill job and its latest progress.
type Job struct {
	ID     string    `json:"id"`
	State  JobState  `json:"state"`
	Config JobConfig `json:"config"`

	// Step and Steps locate the current pyramid level, 0 being coarsest
	Step      int     `json:"step"`
	Steps     int     `json:"steps"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Iteration int     `json:"iteration"`
	MeanCost  float64 `json:"meanCost"`
	Unknown   int     `json:"unknown"`

	Levels    []inpaint.LevelResult `json:"levels,omitempty"`
	StartTime time.Time             `json:"startTime"`
	EndTime   *time.Time            `json:"endTime,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Elapsed returns the running time, or the total time of a finished job.
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]func()
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]func()),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of the job with the given ID
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return snapshot(job), true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, snapshot(job))
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].StartTime.Before(jobs[b].StartTime)
	})
	return jobs
}

func snapshot(job *Job) Job {
	c := *job
	c.Levels = append([]inpaint.LevelResult(nil), job.Levels...)
	return c
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, snapshot(job))
		}
	}
	return running
}

// setCancel records the cancel function of a started job.
func (jm *JobManager) setCancel(id string, cancel func()) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// clearCancel forgets the cancel function of a finished job.
func (jm *JobManager) clearCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob stops a pending or running job. The fill notices the
// cancellation at its next iteration boundary.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.State.Done() {
		return fmt.Errorf("job %s already %s", id, job.State)
	}
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
	}
	return nil
}

// RemoveJob forgets a finished job and drops its SSE state.
func (jm *JobManager) RemoveJob(id string) error {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists {
		jm.mu.Unlock()
		return fmt.Errorf("job not found: %s", id)
	}
	if !job.State.Done() {
		jm.mu.Unlock()
		return fmt.Errorf("job %s is still %s", id, job.State)
	}
	delete(jm.jobs, id)
	jm.mu.Unlock()

	jm.broadcaster.CleanupJob(id)
	return nil
}
