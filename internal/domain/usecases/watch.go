package usecases

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/config"
	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
	shoterrors "github.com/0xcro3dile/shotfind/internal/errors"
)

// DefaultSettleDelay is how long a file must go without events before it
// is indexed.
const DefaultSettleDelay = time.Second

// WatchUseCase indexes new screenshots as they appear in a directory.
type WatchUseCase struct {
	watcher  ports.FileWatcher
	selector *FileSelector
	ingest   *IngestUseCase
	settle   time.Duration
}

// NewWatchUseCase creates a WatchUseCase with injected dependencies.
// A non-positive settle uses DefaultSettleDelay.
func NewWatchUseCase(watcher ports.FileWatcher, selector *FileSelector, ingest *IngestUseCase, settle time.Duration) *WatchUseCase {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &WatchUseCase{
		watcher:  watcher,
		selector: selector,
		ingest:   ingest,
		settle:   settle,
	}
}

// Watch blocks until ctx is done or the watcher closes. It watches the
// directory of pattern and indexes files that match the pattern's base name
// and the naming convention once they have been quiet for the settle delay,
// so a screenshot written in several steps is read only when complete.
// onResult, if non-nil, is called with every outcome.
func (uc *WatchUseCase) Watch(ctx context.Context, pattern string, onResult func(entities.FileResult)) error {
	if pattern == "" {
		pattern = DefaultPattern
	}
	pattern = config.ExpandHome(pattern)
	dir, glob := filepath.Dir(pattern), filepath.Base(pattern)
	if _, err := filepath.Match(glob, ""); err != nil {
		return shoterrors.NewInvalidRequest(fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}

	events, err := uc.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	defer uc.watcher.Stop()

	logrus.WithFields(logrus.Fields{"dir": dir, "pattern": glob}).Info("Watching for new screenshots")

	// Path -> time it becomes eligible for indexing.
	pending := make(map[string]time.Time)
	var due <-chan time.Time

	index := func(paths []string) {
		for _, path := range paths {
			delete(pending, path)
			result := uc.ingest.IndexFile(ctx, path, 1, 1)
			if onResult != nil {
				onResult(result)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				index(settledBefore(pending, time.Time{}))
				return nil
			}
			if !uc.matches(glob, ev.Path) {
				continue
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				pending[ev.Path] = time.Now().Add(uc.settle)
			case ports.FileDeleted:
				delete(pending, ev.Path)
			}
		case now := <-due:
			index(settledBefore(pending, now))
		}

		due = nil
		if next, ok := earliest(pending); ok {
			due = time.After(time.Until(next))
		}
	}
}

func (uc *WatchUseCase) matches(glob, path string) bool {
	ok, _ := filepath.Match(glob, filepath.Base(path))
	return ok && uc.selector.Matches(path)
}

// settledBefore returns the pending paths due at or before now, sorted.
// A zero now returns them all.
func settledBefore(pending map[string]time.Time, now time.Time) []string {
	var paths []string
	for path, at := range pending {
		if now.IsZero() || !at.After(now) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func earliest(pending map[string]time.Time) (time.Time, bool) {
	var first time.Time
	for _, at := range pending {
		if first.IsZero() || at.Before(first) {
			first = at
		}
	}
	return first, !first.IsZero()
}
