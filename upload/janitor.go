package upload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/moyoez/dropzone-go/tool"
)

// JanitorConfig controls the background sweep.
type JanitorConfig struct {
	Interval     time.Duration
	StaleTimeout time.Duration // sessions idle longer than this are removed
	MinDirAge    time.Duration // empty directories younger than this are kept
}

// Janitor reclaims storage left by abandoned or crashed uploads.
type Janitor struct {
	engine  *Engine
	store   *FileSessionStore
	batches *BatchTracker
	cfg     JanitorConfig
	now     func() time.Time
}

func NewJanitor(engine *Engine, store *FileSessionStore, batches *BatchTracker, cfg JanitorConfig) *Janitor {
	return &Janitor{
		engine:  engine,
		store:   store,
		batches: batches,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SweepReport summarizes one janitor pass.
type SweepReport struct {
	StaleSessions int
	TempFiles     int
	Batches       int
	EmptyDirs     int
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	tool.DefaultLogger.Infof("[Janitor] Started: interval %s, stale timeout %s", interval, j.cfg.StaleTimeout)
	j.RunOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			tool.DefaultLogger.Infof("[Janitor] Stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass.
func (j *Janitor) RunOnce(ctx context.Context) SweepReport {
	var report SweepReport
	cutoff := j.now().Add(-j.cfg.StaleTimeout)

	n, err := j.engine.SweepStale(ctx, cutoff)
	if err != nil {
		tool.DefaultLogger.Errorf("[Janitor] Session sweep failed: %v", err)
	}
	report.StaleSessions = n
	if j.store != nil {
		report.TempFiles = j.store.SweepTemp(cutoff)
	}
	if j.batches != nil {
		report.Batches = j.batches.Sweep()
	}
	report.EmptyDirs = j.PruneEmptyDirs()

	if report != (SweepReport{}) {
		tool.DefaultLogger.Infof("[Janitor] Sweep removed %d stale sessions, %d temp files, %d batches, %d empty dirs",
			report.StaleSessions, report.TempFiles, report.Batches, report.EmptyDirs)
	}
	return report
}

// PruneEmptyDirs removes empty directories below the upload root, deepest first.
// The root and the session store directory are never removed.
func (j *Janitor) PruneEmptyDirs() int {
	root := j.engine.Root()
	skip := filepath.Join(root, MetadataDirName)
	var dirs []string
	modTimes := make(map[string]time.Time)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			tool.DefaultLogger.Warnf("[Janitor] Cannot read %s: %v", p, err)
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || p == root {
			return nil
		}
		if p == skip {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		// removing a child bumps the parent's mtime, so age is judged on the pre-sweep value
		if info, err := d.Info(); err == nil {
			modTimes[p] = info.ModTime()
		}
		return nil
	})
	if err != nil {
		tool.DefaultLogger.Warnf("[Janitor] Walk of %s failed: %v", root, err)
	}

	// WalkDir is lexical, so a parent always precedes its children; reverse for bottom-up
	slices.Reverse(dirs)
	minModTime := j.now().Add(-j.cfg.MinDirAge)
	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if j.cfg.MinDirAge > 0 {
			mtime, ok := modTimes[dir]
			if !ok || mtime.After(minModTime) {
				continue
			}
		}
		// os.Remove refuses non-empty directories, so a file created since ReadDir survives
		if err := os.Remove(dir); err == nil {
			removed++
			tool.DefaultLogger.Debugf("[Janitor] Removed empty directory %s", dir)
		}
	}
	return removed
}
