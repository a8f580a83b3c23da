package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minhct/harvesterd/internal/core/config"
	"github.com/minhct/harvesterd/internal/core/domain"
	"github.com/minhct/harvesterd/internal/infra/storage/memory"
)

// fakeScraper serves canned items for every content endpoint.
func fakeScraper(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"b1","payload":{}},{"id":"b2","payload":{}}]}`))
	})
	mux.HandleFunc("/v1/timeline/home", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"h1","payload":{}}]}`))
	})
	mux.HandleFunc("/v1/lists", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lists":[{"id":"l1","name":"golang"}]}`))
	})
	mux.HandleFunc("/v1/timeline/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"t1","payload":{}},{"id":"t2","payload":{}},{"id":"t3","payload":{}}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHarvesterEndToEnd(t *testing.T) {
	scraper := fakeScraper(t)

	cfg := &config.AppConfig{}
	cfg.Server.Port = 0
	cfg.Fetch.BaseURL = scraper.URL
	cfg.Worker.Workers = 2
	cfg.Worker.PollInterval = 10 * time.Millisecond

	h, err := NewHarvester(cfg)
	if err != nil {
		t.Fatalf("NewHarvester: %v", err)
	}

	h.MemoryStore().PutProfile(&domain.Profile{
		ID:             "profile-1",
		UserID:         "user-1",
		Handle:         "alice",
		HasCredentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	jobs, err := h.ScheduleUser(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("ScheduleUser: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("scheduled %d jobs, want 3", len(jobs))
	}

	// Wait for the worker pool to drain all three jobs.
	deadline := time.Now().Add(5 * time.Second)
	for {
		counts, err := h.JobCounts(ctx)
		if err != nil {
			t.Fatalf("JobCounts: %v", err)
		}
		if counts[domain.JobStatusCompleted] == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("jobs never completed: %v", counts)
		}
		time.Sleep(20 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := h.Stop(shutdownCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestHarvesterScheduleDailyIdempotent(t *testing.T) {
	scraper := fakeScraper(t)

	cfg := &config.AppConfig{}
	cfg.Fetch.BaseURL = scraper.URL

	h, err := NewHarvester(cfg)
	if err != nil {
		t.Fatalf("NewHarvester: %v", err)
	}

	h.MemoryStore().PutProfile(&domain.Profile{
		ID: "profile-1", UserID: "user-1", Handle: "alice", HasCredentials: true,
	})

	ctx := context.Background()
	if _, err := h.ScheduleUser(ctx, "user-1", domain.Today(), false); err != nil {
		t.Fatalf("first schedule: %v", err)
	}

	// The daily fanout sees the existing jobs and creates nothing new.
	jobs, err := h.ScheduleDaily(ctx, domain.Today())
	if err != nil {
		t.Fatalf("ScheduleDaily: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("fanout created %d jobs over existing ones", len(jobs))
	}

	counts, _ := h.JobCounts(ctx)
	if counts[domain.JobStatusPending] != 3 {
		t.Errorf("pending = %d, want 3", counts[domain.JobStatusPending])
	}
}

func TestHarvesterResetFailedRequeues(t *testing.T) {
	scraper := fakeScraper(t)

	cfg := &config.AppConfig{}
	cfg.Server.Port = 0
	cfg.Fetch.BaseURL = scraper.URL
	cfg.Worker.Workers = 2
	cfg.Worker.PollInterval = 10 * time.Millisecond

	h, err := NewHarvester(cfg)
	if err != nil {
		t.Fatalf("NewHarvester: %v", err)
	}

	h.MemoryStore().PutProfile(&domain.Profile{
		ID: "profile-1", UserID: "user-1", Handle: "alice", HasCredentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, err := h.ScheduleUser(ctx, "user-1", domain.Today(), true)
	if err != nil {
		t.Fatalf("ScheduleUser: %v", err)
	}

	// Drive all three jobs to failed before the pool ever runs.
	repo := memory.NewJobRepo(h.MemoryStore())
	for _, job := range jobs {
		if _, err := repo.ClaimPending(ctx, job.ID, time.Now()); err != nil {
			t.Fatalf("claim %s: %v", job.ID, err)
		}
		if err := repo.MarkFailed(ctx, job.ID, "network: down", ""); err != nil {
			t.Fatalf("fail %s: %v", job.ID, err)
		}
	}

	n, err := h.ResetFailed(ctx, "user-1")
	if err != nil {
		t.Fatalf("ResetFailed: %v", err)
	}
	if n != 3 {
		t.Fatalf("reset %d jobs, want 3", n)
	}

	// The reset jobs were enqueued, so the pool picks them up and runs
	// them to completion.
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		counts, err := h.JobCounts(ctx)
		if err != nil {
			t.Fatalf("JobCounts: %v", err)
		}
		if counts[domain.JobStatusCompleted] == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reset jobs never ran: %v", counts)
		}
		time.Sleep(20 * time.Millisecond)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := h.Stop(shutdownCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
