package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/torosent/trafficgen/internal/worker"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := db.BeginRun(ctx, Run{ID: "run-1", StartedAt: started, Browsers: 10, Navigator: "chrome", Config: "browsers: 10\n"}); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	run, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != RunStatusRunning || run.Browsers != 10 || run.Navigator != "chrome" {
		t.Fatalf("GetRun() = %+v", run)
	}
	if !run.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero before finish", run.FinishedAt)
	}

	err = db.FinishRun(ctx, "run-1", RunSummary{
		FinishedAt:       started.Add(time.Minute),
		PageLoads:        30,
		PageLoadFailures: 2,
		DNSQueries:       6,
		DNSFailures:      1,
		Status:           RunStatusCompleted,
	})
	if err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	run, err = db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != RunStatusCompleted || run.PageLoads != 30 || run.DNSFailures != 1 {
		t.Errorf("GetRun() after finish = %+v", run)
	}
	if !run.FinishedAt.Equal(started.Add(time.Minute)) {
		t.Errorf("FinishedAt = %v", run.FinishedAt)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := openTestDB(t)
	if err := db.FinishRun(context.Background(), "missing", RunSummary{Status: RunStatusFailed}); err == nil {
		t.Fatal("FinishRun() error = nil, want error for unknown run")
	}
}

func TestSchemaKeepsEarlierRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.BeginRun(context.Background(), Run{ID: "first", StartedAt: time.Now(), Browsers: 1, Navigator: "http"}); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()
	if _, err := db.GetRun(context.Background(), "first"); err != nil {
		t.Fatalf("GetRun() after reopen error = %v", err)
	}
}

func TestRecorderStoresEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.BeginRun(ctx, Run{ID: "run-2", StartedAt: time.Now(), Browsers: 3, Navigator: "http"}); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	rec := NewRecorder(db, "run-2", nil)
	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rec.Report(worker.Event{Worker: id, Kind: worker.EventAcquire, Session: "s"})
			for i := 0; i < 100; i++ {
				rec.Report(worker.Event{Worker: id, Kind: worker.EventNavigate, Target: "https://a.example", Latency: time.Millisecond})
			}
			rec.Report(worker.Event{Worker: id, Kind: worker.EventDNS, Target: "a.example", Server: "8.8.8.8", Err: errors.New("refused")})
			rec.Report(worker.Event{Worker: id, Kind: worker.EventRelease})
		}(w)
	}
	wg.Wait()

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	rec.Report(worker.Event{Kind: worker.EventNavigate}) // dropped after close

	counts, err := db.EventCounts(ctx, "run-2")
	if err != nil {
		t.Fatalf("EventCounts() error = %v", err)
	}
	want := map[string]int{"acquire": 3, "navigate": 300, "dns": 3, "release": 3}
	for kind, n := range want {
		if counts[kind] != n {
			t.Errorf("counts[%s] = %d, want %d", kind, counts[kind], n)
		}
	}

	var stored string
	if err := db.conn.QueryRow(`SELECT error FROM events WHERE kind = 'dns' LIMIT 1`).Scan(&stored); err != nil {
		t.Fatalf("query error column: %v", err)
	}
	if stored != "refused" {
		t.Errorf("stored error = %q, want refused", stored)
	}
}
