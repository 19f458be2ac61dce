package storage

import (
	"errors"
	"testing"
	"time"
)

func enqueue(t *testing.T, s *Store, job Job) {
	t.Helper()
	if job.PayloadJSON == "" {
		job.PayloadJSON = `{}`
	}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob %s: %v", job.ID, err)
	}
}

func claim(t *testing.T, s *Store, types ...string) *Job {
	t.Helper()
	j, err := s.ClaimNextJob(types)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	return j
}

func jobRow(t *testing.T, s *Store, id string) (status JobStatus, attempts int, lastError string, runAfter time.Time) {
	t.Helper()
	var ra string
	var le *string
	if err := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = ?`, id).
		Scan(&status, &attempts, &le, &ra); err != nil {
		t.Fatalf("reading job %s: %v", id, err)
	}
	if le != nil {
		lastError = *le
	}
	runAfter, err := parseTime(ra)
	if err != nil {
		t.Fatalf("parsing run_after %q: %v", ra, err)
	}
	return status, attempts, lastError, runAfter
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j1", Type: "style_train", PayloadJSON: `{"reason":"sample_added"}`})

	got := claim(t, s, "style_train")
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j1" || got.Type != "style_train" || got.PayloadJSON != `{"reason":"sample_added"}` {
		t.Errorf("claimed job = %+v", got)
	}
	if got.Status != JobRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.MaxAttempts != defaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", got.MaxAttempts, defaultMaxAttempts)
	}
	if got.CreatedAt.IsZero() || got.RunAfter.IsZero() {
		t.Errorf("timestamps not populated: %+v", got)
	}

	if again := claim(t, s, "style_train"); again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_Filters(t *testing.T) {
	s := openTestStore(t)

	if got := claim(t, s, "style_train"); got != nil {
		t.Errorf("empty queue returned %+v", got)
	}
	if got := claim(t, s); got != nil {
		t.Errorf("no types returned %+v", got)
	}

	enqueue(t, s, Job{ID: "future", Type: "style_train", RunAfter: time.Now().Add(time.Hour)})
	if got := claim(t, s, "style_train"); got != nil {
		t.Errorf("job claimed before run_after: %+v", got)
	}

	enqueue(t, s, Job{ID: "other", Type: "other"})
	if got := claim(t, s, "style_train"); got != nil {
		t.Errorf("type filter ignored: %+v", got)
	}
	if got := claim(t, s, "style_train", "other"); got == nil || got.ID != "other" {
		t.Errorf("claim with two types = %+v, want other", got)
	}
}

func TestClaimNextJob_OldestDueFirst(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	enqueue(t, s, Job{ID: "newer", Type: "x", RunAfter: now.Add(-time.Minute)})
	enqueue(t, s, Job{ID: "older", Type: "x", RunAfter: now.Add(-time.Hour)})

	if got := claim(t, s, "x"); got == nil || got.ID != "older" {
		t.Errorf("first claim = %+v, want older", got)
	}
	if got := claim(t, s, "x"); got == nil || got.ID != "newer" {
		t.Errorf("second claim = %+v, want newer", got)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j", Type: "x"})
	claim(t, s, "x")

	if err := s.CompleteJob("j"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if status, _, _, _ := jobRow(t, s, "j"); status != JobCompleted {
		t.Errorf("status = %q, want completed", status)
	}
	if err := s.CompleteJob("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j", Type: "x"})
	claim(t, s, "x")

	before := time.Now()
	if err := s.FailJob("j", "profile store unavailable"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	status, attempts, lastError, runAfter := jobRow(t, s, "j")
	if status != JobPending || attempts != 1 || lastError != "profile store unavailable" {
		t.Errorf("after fail: status=%q attempts=%d last_error=%q", status, attempts, lastError)
	}
	if runAfter.Before(before.Add(RetryBackoff(1) - time.Second)) {
		t.Errorf("run_after %v is not backed off from %v", runAfter, before)
	}
	if got := claim(t, s, "x"); got != nil {
		t.Errorf("job claimed during backoff: %+v", got)
	}
}

func TestFailJob_GivesUpAfterMaxAttempts(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "j", Type: "x", MaxAttempts: 1})
	claim(t, s, "x")

	if err := s.FailJob("j", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if status, attempts, _, _ := jobRow(t, s, "j"); status != JobFailed || attempts != 1 {
		t.Errorf("status=%q attempts=%d, want failed/1", status, attempts)
	}
	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestRetryBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		0:  2 * time.Second,
		1:  2 * time.Second,
		2:  4 * time.Second,
		3:  8 * time.Second,
		8:  256 * time.Second,
		9:  5 * time.Minute,
		40: 5 * time.Minute,
	}
	for attempt, want := range cases {
		if got := RetryBackoff(attempt); got != want {
			t.Errorf("RetryBackoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestHasPendingJob(t *testing.T) {
	s := openTestStore(t)

	if has, err := s.HasPendingJob("style_train"); err != nil || has {
		t.Fatalf("HasPendingJob on empty queue = %v, %v", has, err)
	}

	enqueue(t, s, Job{ID: "j", Type: "style_train"})
	if has, _ := s.HasPendingJob("style_train"); !has {
		t.Error("expected pending job after enqueue")
	}
	if has, _ := s.HasPendingJob("other"); has {
		t.Error("pending check must filter by type")
	}

	claim(t, s, "style_train")
	if has, _ := s.HasPendingJob("style_train"); has {
		t.Error("running job should not count as pending")
	}
}

func TestPruneJobs(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "done", Type: "x", RunAfter: time.Now().Add(-time.Minute)})
	enqueue(t, s, Job{ID: "open", Type: "x"})
	claim(t, s, "x")
	if err := s.CompleteJob("done"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	if n, err := s.PruneJobs(time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Errorf("PruneJobs(past cutoff) = %d, %v; want 0", n, err)
	}
	n, err := s.PruneJobs(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d jobs, want 1", n)
	}
	if has, _ := s.HasPendingJob("x"); !has {
		t.Error("pending job was pruned")
	}
}

func TestJobStats(t *testing.T) {
	s := openTestStore(t)

	st, err := s.JobStats("style_train")
	if err != nil {
		t.Fatalf("JobStats: %v", err)
	}
	if st != (JobStats{}) {
		t.Errorf("empty stats = %+v", st)
	}

	past := time.Now().Add(-time.Minute)
	enqueue(t, s, Job{ID: "ok", Type: "style_train", RunAfter: past.Add(-time.Minute)})
	enqueue(t, s, Job{ID: "bad", Type: "style_train", RunAfter: past, MaxAttempts: 1})
	enqueue(t, s, Job{ID: "waiting", Type: "style_train", RunAfter: time.Now().Add(time.Hour)})
	enqueue(t, s, Job{ID: "unrelated", Type: "other"})

	claim(t, s, "style_train")
	if err := s.CompleteJob("ok"); err != nil {
		t.Fatal(err)
	}
	claim(t, s, "style_train")
	if err := s.FailJob("bad", "disk full"); err != nil {
		t.Fatal(err)
	}

	st, err = s.JobStats("style_train")
	if err != nil {
		t.Fatalf("JobStats: %v", err)
	}
	if st.Pending != 1 || st.Running != 0 || st.Failed != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.LastError != "disk full" {
		t.Errorf("LastError = %q", st.LastError)
	}
	if st.LastRunAt == nil {
		t.Error("LastRunAt not set after a completed job")
	}
}
