package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"taskboard/internal/cache"
	"taskboard/internal/core"
	"taskboard/internal/ports"
)

// StatsConfig holds configuration for the stats service
type StatsConfig struct {
	// Location sets calendar boundaries (default: UTC)
	Location *time.Location

	// Now is the clock (default: time.Now)
	Now func() time.Time
}

// StatsService computes the statistics report. It serves both the HTTP
// handlers and the background worker so there is a single code path into
// core.Aggregate.
type StatsService struct {
	source ports.SnapshotSource
	cache  cache.Cache[core.StatsReport]
	group  singleflight.Group
	loc    *time.Location
	now    func() time.Time

	// generation is bumped by Invalidate; it is part of every cache and
	// singleflight key so a computation started before a write is never
	// served after it.
	generation atomic.Uint64
}

// NewStatsService creates the service. A nil cache disables caching.
func NewStatsService(source ports.SnapshotSource, c cache.Cache[core.StatsReport], cfg StatsConfig) *StatsService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &StatsService{
		source: source,
		cache:  c,
		loc:    cfg.Location,
		now:    cfg.Now,
	}
}

// Report returns the current report, from cache when possible. Concurrent
// misses share one computation. Cache keys carry the clock minute, so a cached
// report's overdue and due-date buckets lag the clock by less than a minute
// even when the cache TTL is longer.
func (s *StatsService) Report(ctx context.Context) (core.StatsReport, error) {
	gen := s.generation.Load()
	minute := s.now().Truncate(time.Minute).Unix()
	key := "report:" + strconv.FormatUint(gen, 10) + ":" + strconv.FormatInt(minute, 10)

	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			return r, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// detached so one caller's cancellation does not fail the others
		r, err := s.Compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.generation.Load() == gen {
			s.cache.Set(key, r)
		}
		return r, nil
	})
	if err != nil {
		return core.StatsReport{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Stats computation shared", "key", key)
	}
	return v.(core.StatsReport), nil
}

// Compute always reads a fresh snapshot and aggregates it.
func (s *StatsService) Compute(ctx context.Context) (core.StatsReport, error) {
	snap, err := s.Snapshot(ctx, "")
	if err != nil {
		return core.StatsReport{}, err
	}
	return snap.Report, nil
}

// Snapshot computes a fresh report stamped with the instant it was taken at.
func (s *StatsService) Snapshot(ctx context.Context, reason string) (core.StatsSnapshot, error) {
	todos, err := s.source.ListSnapshots(ctx)
	if err != nil {
		return core.StatsSnapshot{}, fmt.Errorf("fetch todo snapshot: %w", err)
	}
	now := s.now().In(s.loc)
	return core.StatsSnapshot{
		GeneratedAt: now,
		Reason:      reason,
		Report:      core.Aggregate(todos, now),
	}, nil
}

// Invalidate discards cached reports.
func (s *StatsService) Invalidate() {
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Location returns the zone used for calendar boundaries.
func (s *StatsService) Location() *time.Location {
	return s.loc
}
