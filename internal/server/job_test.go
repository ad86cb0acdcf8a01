package server

import (
	"sync"
	"testing"
	"time"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{ImagePath: "test.png", MaskPath: "mask.png", PatchSize: 7})

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.ImagePath != "test.png" || job.Config.PatchSize != 7 {
		t.Errorf("Config not set correctly: %+v", job.Config)
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ImagePath: "test.png"})

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ImagePath: "test.png"})

	snap, _ := jm.GetJob(job.ID)
	snap.State = StateFailed

	current, _ := jm.GetJob(job.ID)
	if current.State != StatePending {
		t.Errorf("Mutating a snapshot changed the job: %s", current.State)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(JobConfig{ImagePath: "test1.png"})
	time.Sleep(2 * time.Millisecond)
	second := jm.CreateJob(JobConfig{ImagePath: "test2.png"})

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("Jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ImagePath: "test.png"})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Iteration = 4
		j.MeanCost = 123.45
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning || updated.Iteration != 4 || updated.MeanCost != 123.45 {
		t.Errorf("Update not applied: %+v", updated)
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()
	a := jm.CreateJob(JobConfig{ImagePath: "a.png"})
	jm.CreateJob(JobConfig{ImagePath: "b.png"})

	jm.UpdateJob(a.ID, func(j *Job) { j.State = StateRunning })

	running := jm.GetRunningJobs()
	if len(running) != 1 || running[0].ID != a.ID {
		t.Errorf("Expected only job %s running, got %+v", a.ID, running)
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ImagePath: "test.png"})

	cancelled := false
	jm.setCancel(job.ID, func() { cancelled = true })

	if err := jm.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if !cancelled {
		t.Error("Cancel function should be called")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCancelled })
	if err := jm.CancelJob(job.ID); err == nil {
		t.Error("Cancelling a finished job should fail")
	}
	if err := jm.CancelJob("nonexistent"); err == nil {
		t.Error("Cancelling a nonexistent job should fail")
	}
}

func TestJobManager_RemoveJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ImagePath: "test.png"})

	if err := jm.RemoveJob(job.ID); err == nil {
		t.Error("Removing a pending job should fail")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })
	if err := jm.RemoveJob(job.ID); err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}
	if _, exists := jm.GetJob(job.ID); exists {
		t.Error("Removed job should be gone")
	}
}

func TestJobState_Done(t *testing.T) {
	tests := map[JobState]bool{
		StatePending:   false,
		StateRunning:   false,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	}
	for state, want := range tests {
		if got := state.Done(); got != want {
			t.Errorf("%s.Done() = %v, want %v", state, got, want)
		}
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{ImagePath: "test.png"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(iteration int) {
			defer wg.Done()
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Iteration = iteration
				time.Sleep(time.Millisecond)
			})
		}(i)
		go func() {
			defer wg.Done()
			jm.GetJob(job.ID)
			jm.ListJobs()
		}()
	}
	wg.Wait()

	if _, exists := jm.GetJob(job.ID); !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
