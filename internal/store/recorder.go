package store

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/trafficgen/internal/worker"
)

const (
	defaultBatchSize     = 128
	defaultFlushInterval = time.Second
)

// Recorder writes worker events to the events table. It implements
// worker.Reporter; events are buffered and inserted in batches by one
// background goroutine.
type Recorder struct {
	db     *DB
	runID  string
	logger *zap.Logger

	events   chan worker.Event
	done     chan struct{}
	closeMu  sync.RWMutex
	closed   bool
	firstErr error
	errMu    sync.Mutex
}

// NewRecorder starts a recorder for runID.
func NewRecorder(db *DB, runID string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		db:     db,
		runID:  runID,
		logger: logger,
		events: make(chan worker.Event, defaultBatchSize*4),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Report queues e for insertion. Events reported after Close are dropped.
func (r *Recorder) Report(e worker.Event) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}
	r.events <- e
}

// Close flushes pending events and stops the writer. It returns the first
// write error seen.
func (r *Recorder) Close() error {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		<-r.done
		return r.err()
	}
	r.closed = true
	close(r.events)
	r.closeMu.Unlock()

	<-r.done
	return r.err()
}

func (r *Recorder) loop() {
	defer close(r.done)

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	batch := make([]worker.Event, 0, defaultBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.insert(batch); err != nil {
			r.setErr(err)
			r.logger.Error("failed to store events", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (r *Recorder) insert(events []worker.Event) error {
	tx, err := r.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (run_id, worker, session, kind, target, server, latency_ms, error, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		var errText interface{}
		if e.Err != nil {
			errText = e.Err.Error()
		}
		at := e.At
		if at.IsZero() {
			at = time.Now()
		}
		latencyMs := float64(e.Latency) / float64(time.Millisecond)
		if _, err := stmt.Exec(r.runID, e.Worker, e.Session, string(e.Kind), e.Target, e.Server, latencyMs, errText, at.UTC()); err != nil {
			return fmt.Errorf("failed to insert %s event: %w", e.Kind, err)
		}
	}

	return tx.Commit()
}

func (r *Recorder) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
}

func (r *Recorder) err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.firstErr
}
