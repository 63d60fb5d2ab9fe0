package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"taskboard/internal/amqp"
	"taskboard/internal/core"
	"taskboard/internal/log"
	"taskboard/internal/ports"
)

// Refresh reasons recorded on snapshots that were not caused by an event.
const (
	ReasonStartup  = "startup"
	ReasonInterval = "interval"
)

// Config holds configuration for the stats worker
type Config struct {
	// Interval is how often to recompute without an event (default: 5m)
	Interval time.Duration

	// KeepSnapshots is how many stored snapshots survive pruning (default: 288)
	KeepSnapshots int

	// ExportTimeout bounds a single external export (default: 30s)
	ExportTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Minute,
		KeepSnapshots: 288,
		ExportTimeout: 30 * time.Second,
	}
}

// ExportError reports a snapshot that was stored but could not be exported.
type ExportError struct {
	SnapshotID int64
	Err        error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export stats snapshot %d: %v", e.SnapshotID, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Snapshotter produces a fresh statistics snapshot.
type Snapshotter interface {
	Snapshot(ctx context.Context, reason string) (core.StatsSnapshot, error)
}

// Pruner is implemented by snapshot stores that can discard old rows.
type Pruner interface {
	PruneStatsSnapshots(ctx context.Context, keep int) (int64, error)
}

// StatsWorker precomputes the statistics report whenever todos change and on
// a fixed interval, stores it, and optionally exports it.
type StatsWorker struct {
	stats    Snapshotter
	store    ports.StatsSnapshotStore
	exporter ports.StatsExporter
	config   Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewStatsWorker creates a worker; exporter may be nil.
func NewStatsWorker(stats Snapshotter, store ports.StatsSnapshotStore, exporter ports.StatsExporter, config Config) *StatsWorker {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.KeepSnapshots <= 0 {
		config.KeepSnapshots = def.KeepSnapshots
	}
	if config.ExportTimeout <= 0 {
		config.ExportTimeout = def.ExportTimeout
	}
	return &StatsWorker{
		stats:    stats,
		store:    store,
		exporter: exporter,
		config:   config,
	}
}

// HandleEvent recomputes the report in response to a change event. A
// returned error makes the consumer requeue the message, so only compute and
// save failures are returned; an export failure is logged and the event acked.
func (w *StatsWorker) HandleEvent(ctx context.Context, msg *amqp.TodoEventMessage) error {
	fields := log.NewFields().
		WithOperation(log.OpAggregate).
		WithEvent(string(msg.Type)).
		WithTodo(msg.TodoID).
		WithCategory(msg.CategoryID)
	fields[log.FieldEventID] = msg.EventID
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	logger.InfoContext(ctx, "Processing change event", fields.ToSlice()...)

	_, err := w.Refresh(ctx, string(msg.Type))
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		logger.WarnContext(ctx, "Stats stored but export failed",
			fields.WithError(exportErr.Err).ToSlice()...)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh after %s: %w", msg.Type, err)
	}
	return nil
}

// Refresh computes a snapshot, then stores and exports it concurrently. An
// export failure does not cancel the save; it is returned as *ExportError with
// the stored id set on the returned snapshot.
func (w *StatsWorker) Refresh(ctx context.Context, reason string) (core.StatsSnapshot, error) {
	snap, err := w.stats.Snapshot(ctx, reason)
	if err != nil {
		return core.StatsSnapshot{}, fmt.Errorf("compute stats: %w", err)
	}

	var (
		savedID   int64
		exportErr error
		g         errgroup.Group
	)
	g.Go(func() error {
		id, err := w.store.SaveStatsSnapshot(ctx, snap)
		if err != nil {
			return fmt.Errorf("save stats snapshot: %w", err)
		}
		savedID = id
		if p, ok := w.store.(Pruner); ok {
			if _, err := p.PruneStatsSnapshots(ctx, w.config.KeepSnapshots); err != nil {
				slog.WarnContext(ctx, "Failed to prune stats snapshots", "error", err)
			}
		}
		return nil
	})
	if w.exporter != nil {
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(ctx, w.config.ExportTimeout)
			defer cancel()
			exportErr = w.exporter.ExportStats(ectx, snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.StatsSnapshot{}, err
	}
	snap.ID = savedID
	if exportErr != nil {
		return snap, &ExportError{SnapshotID: savedID, Err: exportErr}
	}

	slog.InfoContext(ctx, "Stats refreshed",
		"reason", reason,
		"snapshot_id", savedID,
		"total", snap.Report.Total,
		"completion_rate", snap.Report.CompletionRate,
		"overdue", snap.Report.Overdue)
	return snap, nil
}

// Start begins the periodic loop. Returns an error if already running.
func (w *StatsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("stats worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.runLoop(ctx, w.stopCh, w.doneCh)

	slog.InfoContext(ctx, "Stats worker started", "interval", w.config.Interval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx to expire.
func (w *StatsWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Stats worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Stats worker stop timed out")
		return ctx.Err()
	}
}

func (w *StatsWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *StatsWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.refreshLogged(ctx, ReasonStartup)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshLogged(ctx, ReasonInterval)
		}
	}
}

func (w *StatsWorker) refreshLogged(ctx context.Context, reason string) {
	if _, err := w.Refresh(ctx, reason); err != nil {
		slog.ErrorContext(ctx, "Stats refresh failed", "reason", reason, "error", err)
	}
}
