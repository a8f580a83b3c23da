package scheduling

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/dispatch"
	"github.com/minhct/harvesterd/internal/infra/storage/memory"
)

type fixture struct {
	store     *memory.MemoryStorage
	jobs      *memory.JobRepo
	schedules *memory.ScheduleRepo
	queue     *dispatch.MemoryQueue
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryStorage()
	jobs := memory.NewJobRepo(store)
	schedules := memory.NewScheduleRepo(store)
	queue := dispatch.NewMemoryQueue()

	store.PutProfile(&domain.Profile{
		ID:             "profile-1",
		UserID:         "user-1",
		Handle:         "alice",
		HasCredentials: true,
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(jobs, schedules, memory.NewProfileRepo(store), dispatch.NewDispatcher(queue), logger)
	return &fixture{store: store, jobs: jobs, schedules: schedules, queue: queue, scheduler: sched}
}

func TestScheduleUserJobsCreatesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("ScheduleUserJobs: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("scheduled %d jobs, want 3", len(created))
	}

	// First call creates the default schedule.
	schedule, err := f.schedules.Get(ctx, "user-1")
	if err != nil || schedule == nil {
		t.Fatalf("default schedule missing: %v", err)
	}
	if !schedule.Enabled || schedule.RunAt.String() != "02:00" {
		t.Errorf("default schedule = %+v", schedule)
	}

	// One job per content type, all pending with the profile attached.
	seen := map[domain.ContentType]bool{}
	for _, job := range created {
		seen[job.ContentType] = true
		if job.Status != domain.JobStatusPending {
			t.Errorf("%s status = %s, want pending", job.ContentType, job.Status)
		}
		if job.ProfileID != "profile-1" {
			t.Errorf("%s profile = %s, want profile-1", job.ContentType, job.ProfileID)
		}
		if job.MaxRetries != domain.DefaultMaxRetries {
			t.Errorf("%s max_retries = %d", job.ContentType, job.MaxRetries)
		}
	}
	for _, ct := range domain.AllContentTypes() {
		if !seen[ct] {
			t.Errorf("no job created for %s", ct)
		}
	}

	if depth, _ := f.queue.Depth(ctx); depth != 3 {
		t.Errorf("queue depth = %d, want 3", depth)
	}
}

func TestScheduleUserJobsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true); err != nil {
		t.Fatalf("first call: %v", err)
	}
	created, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second call scheduled %d jobs, want 0", len(created))
	}
	if depth, _ := f.queue.Depth(ctx); depth != 3 {
		t.Errorf("queue depth = %d, want 3", depth)
	}
}

func TestScheduleUserJobsSkipsFutureDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tomorrow := domain.Today().Add(48 * time.Hour)

	// Without immediate a future date is silently skipped, not an error.
	created, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", tomorrow, false)
	if err != nil {
		t.Fatalf("future date: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("scheduled %d jobs for future date, want 0", len(created))
	}

	// Immediate overrides the gate.
	created, err = f.scheduler.ScheduleUserJobs(ctx, "user-1", tomorrow, true)
	if err != nil {
		t.Fatalf("immediate future date: %v", err)
	}
	if len(created) != 3 {
		t.Errorf("immediate scheduled %d jobs, want 3", len(created))
	}
}

func TestScheduleUserJobsRequiresProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.scheduler.ScheduleUserJobs(context.Background(), "user-2", domain.Today(), true)
	if err == nil {
		t.Fatal("expected error for user without profile")
	}
}

func TestScheduleUserJobsHonorsContentTypeToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	schedule := domain.NewDefaultSchedule("user-1")
	schedule.ProcessLists = false
	schedule.ProcessCuratedFeed = false
	if err := f.schedules.Save(ctx, schedule); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	created, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("ScheduleUserJobs: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("scheduled %d jobs, want 1", len(created))
	}
	if created[0].ContentType != domain.ContentTypeBookmarks {
		t.Errorf("created %s job, want bookmarks", created[0].ContentType)
	}
	job, _ := f.jobs.FindByKey(ctx, "user-1", domain.ContentTypeLists, domain.Today())
	if job != nil {
		t.Error("lists job created despite toggle off")
	}
}

func TestScheduleUserJobsSkipsDisabledSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	schedule := domain.NewDefaultSchedule("user-1")
	schedule.Enabled = false
	if err := f.schedules.Save(ctx, schedule); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	created, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("ScheduleUserJobs: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("scheduled %d jobs for disabled schedule", len(created))
	}
}

func TestScheduleUserJobsRevivesFailedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true); err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Drive the bookmarks job to failed.
	job, _ := f.jobs.FindByKey(ctx, "user-1", domain.ContentTypeBookmarks, domain.Today())
	if _, err := f.jobs.ClaimPending(ctx, job.ID, time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.jobs.MarkFailed(ctx, job.ID, "network: down", "trace"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	created, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("rescheduled %d jobs, want 1", len(created))
	}

	revived, _ := f.jobs.GetByID(ctx, job.ID)
	if revived.Status != domain.JobStatusPending {
		t.Errorf("status = %s, want pending", revived.Status)
	}
	if revived.RetryCount != 0 || revived.ErrorMessage != "" {
		t.Errorf("failed job not reset: retries=%d error=%q", revived.RetryCount, revived.ErrorMessage)
	}
	// Same row, same id: the unique key never conflicted.
	if created[0].ID != job.ID {
		t.Errorf("revived id = %s, want %s", created[0].ID, job.ID)
	}
}

func TestShouldScheduleJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.scheduler.ShouldScheduleJob(ctx, "user-1", domain.ContentTypeBookmarks, domain.Today())
	if err != nil || !ok {
		t.Fatalf("empty key: ok=%v err=%v, want true", ok, err)
	}

	// No linked profile blocks the user entirely.
	ok, _ = f.scheduler.ShouldScheduleJob(ctx, "user-2", domain.ContentTypeBookmarks, domain.Today())
	if ok {
		t.Error("user without profile should not schedule")
	}

	if _, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), true); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	ok, _ = f.scheduler.ShouldScheduleJob(ctx, "user-1", domain.ContentTypeBookmarks, domain.Today())
	if ok {
		t.Error("pending job should block scheduling")
	}

	job, _ := f.jobs.FindByKey(ctx, "user-1", domain.ContentTypeBookmarks, domain.Today())
	f.jobs.ClaimPending(ctx, job.ID, time.Now())
	f.jobs.MarkFailed(ctx, job.ID, "boom", "")
	ok, _ = f.scheduler.ShouldScheduleJob(ctx, "user-1", domain.ContentTypeBookmarks, domain.Today())
	if !ok {
		t.Error("failed job should allow rescheduling")
	}

	// Content type flag off blocks just that type.
	schedule, _ := f.schedules.Get(ctx, "user-1")
	schedule.ProcessBookmarks = false
	f.schedules.Save(ctx, schedule)
	ok, _ = f.scheduler.ShouldScheduleJob(ctx, "user-1", domain.ContentTypeBookmarks, domain.Today())
	if ok {
		t.Error("disabled content type should not schedule")
	}
	ok, _ = f.scheduler.ShouldScheduleJob(ctx, "user-1", domain.ContentTypeLists, domain.Today())
	if !ok {
		t.Error("other content types unaffected by the bookmarks flag")
	}

	// Disabled schedule blocks everything.
	schedule.Enabled = false
	f.schedules.Save(ctx, schedule)
	ok, _ = f.scheduler.ShouldScheduleJob(ctx, "user-1", domain.ContentTypeLists, domain.Today())
	if ok {
		t.Error("disabled schedule should not schedule")
	}
}

func TestScheduleDailyJobsFanout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Three enabled schedules, but only user-1 and user-3 have profiles.
	f.store.PutProfile(&domain.Profile{ID: "profile-3", UserID: "user-3", Handle: "carol", HasCredentials: true})
	for _, uid := range []string{"user-1", "user-2", "user-3"} {
		if err := f.schedules.Save(ctx, domain.NewDefaultSchedule(uid)); err != nil {
			t.Fatalf("save schedule: %v", err)
		}
	}
	disabled := domain.NewDefaultSchedule("user-4")
	disabled.Enabled = false
	f.schedules.Save(ctx, disabled)

	created, err := f.scheduler.ScheduleDailyJobs(ctx, domain.Today())
	if err != nil {
		t.Fatalf("ScheduleDailyJobs: %v", err)
	}
	if len(created) != 6 {
		t.Errorf("scheduled %d jobs, want 6", len(created))
	}

	// The profile-less user was skipped, not fatal.
	if job, _ := f.jobs.FindByKey(ctx, "user-2", domain.ContentTypeBookmarks, domain.Today()); job != nil {
		t.Error("job created for user without profile")
	}
}

func TestDailyRunAtPushesPastTrigger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Trigger time well in the past for today.
	schedule := domain.NewDefaultSchedule("user-1")
	schedule.RunAt = domain.TimeOfDay{Hour: 0, Minute: 0}
	if err := f.schedules.Save(ctx, schedule); err != nil {
		t.Fatalf("save schedule: %v", err)
	}

	if _, err := f.scheduler.ScheduleUserJobs(ctx, "user-1", domain.Today(), false); err != nil {
		t.Fatalf("ScheduleUserJobs: %v", err)
	}

	// Nothing is due now: the trigger moved to tomorrow midnight.
	if _, ok, _ := f.queue.PopDue(ctx, time.Now()); ok {
		t.Error("job due immediately despite past trigger")
	}
	tomorrow := domain.Today().Add(24*time.Hour + time.Minute)
	if _, ok, _ := f.queue.PopDue(ctx, tomorrow); !ok {
		t.Error("job not due at tomorrow's trigger")
	}
}
