// Package scheduler fires ingestion cycles on a fixed interval. At most one
// cycle runs at a time; a tick that arrives while a cycle is still running
// is skipped, never queued. A cycle failure is isolated: it is logged and
// the scheduler keeps waiting for the next tick.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fileflow/ingestd/config"
	"github.com/fileflow/ingestd/internal/gateway"
	"github.com/fileflow/ingestd/internal/logger"
	"github.com/fileflow/ingestd/internal/organizer"
	"github.com/fileflow/ingestd/internal/pipeline"
)

// CycleStats aggregates the outcomes of one ingestion cycle.
type CycleStats struct {
	Found      int
	Succeeded  int
	Duplicates int
	Failed     int
	Started    time.Time
	Batch      string
}

// Scheduler drives periodic ingestion cycles over the incoming directory.
type Scheduler struct {
	cfg     config.SchedulerConfig
	folders config.FolderConfig
	pipe    *pipeline.Pipeline
	gw      gateway.Gateway

	mu          sync.Mutex
	cycleActive bool

	statsMu   sync.Mutex
	lastCycle CycleStats
}

// New builds a scheduler over the pipeline and its gateway.
func New(cfg config.SchedulerConfig, folders config.FolderConfig, pipe *pipeline.Pipeline, gw gateway.Gateway) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		folders: folders,
		pipe:    pipe,
		gw:      gw,
	}
}

// Run executes cycles until ctx is cancelled. An initial cycle fires
// immediately; afterwards the configured interval applies. Cancellation
// interrupts the wait promptly and is honored between files, never
// mid-pipeline.
func (s *Scheduler) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.IntervalMinutes) * time.Minute
	logger.Infof("[scheduler] started, ingestion interval: %s, workers: %d", interval, s.cfg.Workers)

	logger.Infof("[scheduler] running initial ingestion cycle")
	s.tryCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("[scheduler] shutdown requested, stopping")
			return
		case <-ticker.C:
			s.tryCycle(ctx)
		}
	}
}

// tryCycle runs one cycle unless a previous one is still active.
func (s *Scheduler) tryCycle(ctx context.Context) {
	s.mu.Lock()
	if s.cycleActive {
		s.mu.Unlock()
		logger.Warnf("[scheduler] previous cycle still running, skipping this trigger")
		return
	}
	s.cycleActive = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[scheduler] cycle panicked: %v", r)
		}
		s.mu.Lock()
		s.cycleActive = false
		s.mu.Unlock()
	}()

	stats := s.RunCycle(ctx)

	s.statsMu.Lock()
	s.lastCycle = stats
	s.statsMu.Unlock()
}

// RunCycle performs one pass over the incoming directory: discovery, a
// bounded worker pool over the pipeline, and a stats summary. Files
// discovered after the listing are left for the next cycle.
func (s *Scheduler) RunCycle(ctx context.Context) CycleStats {
	stats := CycleStats{Started: time.Now(), Batch: organizer.BatchLabel(time.Now())}
	logger.Infof("[scheduler] starting ingestion cycle, batch %s", stats.Batch)

	// A dead gateway fails the cycle up front; incoming files stay where
	// they are and are not marked failed merely because the cycle could
	// not run.
	if err := s.gw.HealthCheck(); err != nil {
		logger.Errorf("[scheduler] storage gateway unavailable, ending cycle early: %v", err)
		return stats
	}

	files, err := listFiles(s.folders.Incoming)
	if err != nil {
		logger.Errorf("[scheduler] failed to list incoming directory %s: %v", s.folders.Incoming, err)
		return stats
	}
	stats.Found = len(files)

	if len(files) == 0 {
		logger.Infof("[scheduler] no files found in incoming directory")
		return stats
	}
	logger.Infof("[scheduler] found %d file(s) to process", len(files))

	results := make(chan pipeline.Result, len(files))
	jobs := make(chan string)

	workers := s.cfg.Workers
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- s.pipe.ProcessFile(path, stats.Batch)
			}
		}()
	}

	// Feed files one by one; cancellation stops feeding so in-flight files
	// drain and nothing is abandoned mid-step.
	for _, path := range files {
		select {
		case <-ctx.Done():
			logger.Warnf("[scheduler] cancellation requested, draining in-flight files")
			close(jobs)
			wg.Wait()
			close(results)
			return s.collect(stats, results)
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	return s.collect(stats, results)
}

func (s *Scheduler) collect(stats CycleStats, results chan pipeline.Result) CycleStats {
	for result := range results {
		switch {
		case result.Succeeded():
			stats.Succeeded++
		case result.Duplicate():
			stats.Duplicates++
		default:
			stats.Failed++
		}
	}

	logger.Infof("[scheduler] cycle complete: %d processed, %d failed, %d duplicates (of %d found) in %s",
		stats.Succeeded, stats.Failed, stats.Duplicates, stats.Found,
		time.Since(stats.Started).Round(time.Millisecond))
	return stats
}

// LastCycle returns the stats of the most recently finished cycle.
func (s *Scheduler) LastCycle() CycleStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.lastCycle
}

// listFiles returns the regular files currently in dir, sorted by name.
// Subdirectories and dotfiles are ignored.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if len(entry.Name()) > 0 && entry.Name()[0] == '.' {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
