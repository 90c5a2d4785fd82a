package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docmerge/internal/copier"
	"github.com/dgallion1/docmerge/internal/walker"
)

// ErrUnsafeClean is returned when cleaning the destination would delete the
// source tree.
var ErrUnsafeClean = errors.New("refusing to clean a destination that contains the source")

// Options configures a Merger.
type Options struct {
	Walk  walker.Options
	Clean bool // Remove the destination before copying
}

// MatchReport describes one copied docs directory.
type MatchReport struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Chain  string `json:"chain"`
	copier.Result
}

// Report is the outcome of one Run. It is returned alongside an error too,
// describing everything written before the failure.
type Report struct {
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Matches     []MatchReport `json:"matches"`
	Files       int           `json:"files"`
	Dirs        int           `json:"dirs"`
	Symlinks    int           `json:"symlinks"`
	Bytes       int64         `json:"bytes"`
	Overwrites  int           `json:"overwrites"`
	StartedAt   time.Time     `json:"started_at"`
	DurationMs  int64         `json:"duration_ms"`
	Error       string        `json:"error,omitempty"`
}

func (r *Report) add(mr MatchReport) {
	r.Matches = append(r.Matches, mr)
	r.Files += mr.Files
	r.Dirs += mr.Dirs
	r.Symlinks += mr.Symlinks
	r.Bytes += mr.Bytes
	r.Overwrites += mr.Overwrites
}

// Merger runs the walk-and-copy pipeline. Runs on one Merger never overlap.
type Merger struct {
	mu    sync.Mutex
	opts  Options
	log   *slog.Logger
	stats *Stats
}

// New returns a Merger that keeps an hour of run statistics. A nil log
// discards output.
func New(opts Options, log *slog.Logger) *Merger {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Merger{
		opts:  opts,
		log:   log,
		stats: NewStats(time.Hour),
	}
}

// WithStats replaces the run statistics tracker.
func (m *Merger) WithStats(s *Stats) *Merger {
	m.stats = s
	return m
}

// Stats returns the run statistics tracker.
func (m *Merger) Stats() *Stats {
	return m.stats
}

// Run copies the contents of every docs directory under source into
// destination, dropping the docs segment from each path. Matches are
// copied as the walker finds them, so a traversal failure leaves
// directories after the failing one untouched. The first error stops the
// run; earlier matches stay copied.
func (m *Merger) Run(ctx context.Context, source, destination string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	rep := &Report{
		RunID:       newRunID(),
		Source:      source,
		Destination: destination,
		Matches:     []MatchReport{},
		StartedAt:   start,
	}
	log := m.log.With("run_id", rep.RunID)
	log.Info("merge started", "source", source, "destination", destination)

	err := m.run(ctx, rep, log)
	rep.DurationMs = time.Since(start).Milliseconds()
	m.stats.Record(rep.DurationMs, err == nil)

	if err != nil {
		rep.Error = err.Error()
		log.Error("merge failed", "error", err, "matches", len(rep.Matches))
		return rep, err
	}

	log.Info("merge completed",
		"matches", len(rep.Matches),
		"files", rep.Files,
		"bytes", rep.Bytes,
		"overwrites", rep.Overwrites,
		"duration_ms", rep.DurationMs,
	)
	return rep, nil
}

func (m *Merger) run(ctx context.Context, rep *Report, log *slog.Logger) error {
	info, err := os.Stat(rep.Source)
	if err != nil {
		return &walker.TraversalError{Path: filepath.Clean(rep.Source), Err: err}
	}
	if !info.IsDir() {
		return &walker.TraversalError{Path: filepath.Clean(rep.Source), Err: walker.ErrNotDirectory}
	}

	if err := m.prepareDestination(rep.Source, rep.Destination, log); err != nil {
		return err
	}

	walkOpts := m.opts.Walk
	walkOpts.Exclude = append(slices.Clone(walkOpts.Exclude), rep.Destination)

	cp := copier.New(rep.Destination, log)
	for match, err := range walker.Walk(rep.Source, walkOpts) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := cp.Copy(ctx, match)
		mr := MatchReport{
			Index:  len(rep.Matches) + 1,
			Source: match.Path,
			Chain:  match.Chain.String(),
			Result: res,
		}
		rep.add(mr)
		if err != nil {
			return err
		}

		log.Info("finished copying",
			"index", mr.Index,
			"chain", mr.Chain,
			"files", res.Files,
			"bytes", res.Bytes,
		)
	}
	return nil
}

func (m *Merger) prepareDestination(source, destination string, log *slog.Logger) error {
	if m.opts.Clean {
		within, err := isWithin(source, destination)
		if err != nil {
			return fmt.Errorf("resolve destination: %w", err)
		}
		if within {
			return fmt.Errorf("%w: %s", ErrUnsafeClean, destination)
		}
		log.Info("cleaning destination", "path", destination)
		if err := os.RemoveAll(destination); err != nil {
			return &copier.CopyError{Op: "clean", Path: destination, Err: err}
		}
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return &copier.CopyError{Op: "mkdir", Path: destination, Err: err}
	}
	return nil
}

// isWithin reports whether path equals root or lies below it.
func isWithin(path, root string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}
