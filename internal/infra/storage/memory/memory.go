package memory

import (
	"context"
	"sync"
	"time"

	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/storage"
)

// MemoryStorage backs all repositories with in-process maps. Used for tests
// and database-less dev mode.
type MemoryStorage struct {
	jobs      map[string]*domain.Job
	schedules map[string]*domain.Schedule
	profiles  map[string]*domain.Profile // keyed by user id
	snapshots map[string]*domain.Snapshot
	items     map[string]*domain.ContentItem
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:      make(map[string]*domain.Job),
		schedules: make(map[string]*domain.Schedule),
		profiles:  make(map[string]*domain.Profile),
		snapshots: make(map[string]*domain.Snapshot),
		items:     make(map[string]*domain.ContentItem),
	}
}

func snapshotKey(userID, profileID string, date time.Time) string {
	return userID + "|" + profileID + "|" + domain.DateOf(date).Format("2006-01-02")
}

func itemKey(item *domain.ContentItem) string {
	return item.ProfileID + "|" + string(item.ContentType) + "|" + item.ItemID
}

// -----------------------------------------------------------------------------
// Job Repository
// -----------------------------------------------------------------------------

type JobRepo struct {
	store *MemoryStorage
}

func NewJobRepo(store *MemoryStorage) *JobRepo {
	return &JobRepo{store: store}
}

func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, j := range r.store.jobs {
		if j.UserID == job.UserID && j.ContentType == job.ContentType &&
			j.ProcessingDate.Equal(domain.DateOf(job.ProcessingDate)) {
			return storage.ErrDuplicateJob
		}
	}
	cp := *job
	cp.ProcessingDate = domain.DateOf(job.ProcessingDate)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.store.jobs[job.ID] = &cp
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *JobRepo) FindByKey(ctx context.Context, userID string, ct domain.ContentType, date time.Time) (*domain.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, j := range r.store.jobs {
		if j.UserID == userID && j.ContentType == ct && j.ProcessingDate.Equal(domain.DateOf(date)) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *JobRepo) ListFailed(ctx context.Context, userID string) ([]*domain.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var jobs []*domain.Job
	for _, j := range r.store.jobs {
		if j.Status != domain.JobStatusFailed {
			continue
		}
		if userID != "" && j.UserID != userID {
			continue
		}
		cp := *j
		jobs = append(jobs, &cp)
	}
	return jobs, nil
}

func (r *JobRepo) ClaimPending(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok || job.Status != domain.JobStatusPending {
		return false, nil
	}
	job.Status = domain.JobStatusRunning
	job.StartedAt = &startedAt
	job.UpdatedAt = time.Now()
	return true, nil
}

func (r *JobRepo) ResetRetrying(ctx context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok || job.Status != domain.JobStatusRetrying {
		return false, nil
	}
	job.Status = domain.JobStatusPending
	job.NextRetryAt = nil
	job.UpdatedAt = time.Now()
	return true, nil
}

func (r *JobRepo) MarkCompleted(ctx context.Context, id string, completedAt time.Time, itemsProcessed int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return nil
	}
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.ItemsProcessed = itemsProcessed
	job.UpdatedAt = time.Now()
	return nil
}

func (r *JobRepo) MarkFailed(ctx context.Context, id string, errMsg, errTrace string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return nil
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	job.ErrorTrace = errTrace
	job.UpdatedAt = time.Now()
	return nil
}

func (r *JobRepo) MarkRetrying(ctx context.Context, id string, retryCount int, nextRetryAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if job.Status != domain.JobStatusFailed {
		return nil
	}
	job.Status = domain.JobStatusRetrying
	job.RetryCount = retryCount
	job.NextRetryAt = &nextRetryAt
	job.UpdatedAt = time.Now()
	return nil
}

func (r *JobRepo) ResetForReschedule(ctx context.Context, id string, scheduledAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if job.Status != domain.JobStatusFailed {
		return nil
	}
	job.Status = domain.JobStatusPending
	job.RetryCount = 0
	job.ScheduledAt = scheduledAt
	job.StartedAt = nil
	job.CompletedAt = nil
	job.NextRetryAt = nil
	job.ItemsProcessed = 0
	job.ErrorMessage = ""
	job.ErrorTrace = ""
	job.UpdatedAt = time.Now()
	return nil
}

func (r *JobRepo) AllCompletedForDate(ctx context.Context, userID, profileID string, date time.Time) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	total, completed := 0, 0
	for _, j := range r.store.jobs {
		if j.UserID == userID && j.ProfileID == profileID && j.ProcessingDate.Equal(domain.DateOf(date)) {
			total++
			if j.Status == domain.JobStatusCompleted {
				completed++
			}
		}
	}
	return total > 0 && total == completed, nil
}

func (r *JobRepo) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	counts := make(map[domain.JobStatus]int)
	for _, j := range r.store.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

func (r *JobRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, j := range r.store.jobs {
		if j.Status == domain.JobStatusCompleted && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(r.store.jobs, id)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Schedule Repository
// -----------------------------------------------------------------------------

type ScheduleRepo struct {
	store *MemoryStorage
}

func NewScheduleRepo(store *MemoryStorage) *ScheduleRepo {
	return &ScheduleRepo{store: store}
}

func (r *ScheduleRepo) Get(ctx context.Context, userID string) (*domain.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.schedules[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *ScheduleRepo) Save(ctx context.Context, s *domain.Schedule) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *s
	cp.UpdatedAt = time.Now()
	if existing, ok := r.store.schedules[s.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = cp.UpdatedAt
	}
	r.store.schedules[s.UserID] = &cp
	return nil
}

func (r *ScheduleRepo) ListEnabled(ctx context.Context) ([]*domain.Schedule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Schedule
	for _, s := range r.store.schedules {
		if s.Enabled {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Profile Repository
// -----------------------------------------------------------------------------

type ProfileRepo struct {
	store *MemoryStorage
}

func NewProfileRepo(store *MemoryStorage) *ProfileRepo {
	return &ProfileRepo{store: store}
}

// PutProfile seeds a profile; dev-mode and test helper.
func (s *MemoryStorage) PutProfile(p *domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
}

func (r *ProfileRepo) GetByUser(ctx context.Context, userID string) (*domain.Profile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *MemoryStorage
}

func NewSnapshotRepo(store *MemoryStorage) *SnapshotRepo {
	return &SnapshotRepo{store: store}
}

func (r *SnapshotRepo) ApplyJobResult(ctx context.Context, job *domain.Job) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := snapshotKey(job.UserID, job.ProfileID, job.ProcessingDate)
	snap, ok := r.store.snapshots[key]
	if !ok {
		snap = &domain.Snapshot{
			UserID:         job.UserID,
			ProfileID:      job.ProfileID,
			ProcessingDate: domain.DateOf(job.ProcessingDate),
			CreatedAt:      time.Now(),
		}
		r.store.snapshots[key] = snap
	}
	switch job.ContentType {
	case domain.ContentTypeBookmarks:
		snap.BookmarkCount = job.ItemsProcessed
	case domain.ContentTypeCuratedFeed:
		snap.CuratedFeedCount = job.ItemsProcessed
	case domain.ContentTypeLists:
		snap.ListCount = job.ItemsProcessed
	}
	snap.TotalTweetCount = snap.BookmarkCount + snap.CuratedFeedCount + snap.ListCount
	snap.UpdatedAt = time.Now()
	return nil
}

func (r *SnapshotRepo) MarkAllCompleted(ctx context.Context, userID, profileID string, date, completedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	snap, ok := r.store.snapshots[snapshotKey(userID, profileID, date)]
	if !ok {
		return storage.ErrNotFound
	}
	snap.AllJobsCompleted = true
	snap.LastProcessedAt = &completedAt
	snap.UpdatedAt = time.Now()
	return nil
}

func (r *SnapshotRepo) Get(ctx context.Context, userID, profileID string, date time.Time) (*domain.Snapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	snap, ok := r.store.snapshots[snapshotKey(userID, profileID, date)]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

// -----------------------------------------------------------------------------
// Item Store
// -----------------------------------------------------------------------------

type ItemRepo struct {
	store *MemoryStorage
}

func NewItemRepo(store *MemoryStorage) *ItemRepo {
	return &ItemRepo{store: store}
}

func (r *ItemRepo) StoreItems(ctx context.Context, items []*domain.ContentItem) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored := 0
	for _, item := range items {
		key := itemKey(item)
		if _, ok := r.store.items[key]; ok {
			continue
		}
		cp := *item
		r.store.items[key] = &cp
		stored++
	}
	return stored, nil
}
