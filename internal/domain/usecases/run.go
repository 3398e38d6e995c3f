package usecases

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	shoterrors "github.com/0xcro3dile/shotfind/internal/errors"
)

// RunRequest selects what a single invocation does. Update and Query may
// both be set.
type RunRequest struct {
	Pattern  string
	MaxFiles int
	Update   bool
	Query    string
}

// RunReport is what a run produced.
type RunReport struct {
	Summary *entities.IndexSummary // nil unless an update ran
	Results []entities.QueryResult
}

// Orchestrator drives a run: dependencies, update pass, query, teardown.
type Orchestrator struct {
	guard    *DependencyGuard
	selector *FileSelector
	ingest   *IngestUseCase
	query    *QueryUseCase
}

// NewOrchestrator creates an Orchestrator with injected dependencies.
func NewOrchestrator(guard *DependencyGuard, selector *FileSelector, ingest *IngestUseCase, query *QueryUseCase) *Orchestrator {
	return &Orchestrator{
		guard:    guard,
		selector: selector,
		ingest:   ingest,
		query:    query,
	}
}

// WithDependencies acquires the dependencies, runs fn and always releases
// whatever was acquired, whether or not fn failed.
func (o *Orchestrator) WithDependencies(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rerr := o.guard.Release(); rerr != nil {
			logrus.WithError(rerr).Warn("Failed to stop vector database")
			if err == nil {
				err = rerr
			}
		}
	}()

	if err := o.guard.Acquire(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Run executes the requested modes. On a zero-match update it returns a
// NO_MATCHES error without querying.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	report := &RunReport{}
	err := o.WithDependencies(ctx, func(ctx context.Context) error {
		if req.Update {
			summary, err := o.Update(ctx, req.Pattern, req.MaxFiles)
			report.Summary = summary
			if err != nil {
				return err
			}
		}

		if req.Query != "" {
			results, err := o.query.Search(ctx, req.Query)
			if err != nil {
				return err
			}
			report.Results = results
		}
		return nil
	})
	return report, err
}

// Update selects files and indexes them. Dependencies must already be held.
func (o *Orchestrator) Update(ctx context.Context, pattern string, maxFiles int) (*entities.IndexSummary, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	paths, err := o.selector.Select(pattern, maxFiles)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, shoterrors.NewNoMatches(pattern)
	}

	summary, err := o.ingest.IndexAll(ctx, paths)
	logrus.WithFields(logrus.Fields{
		"total":   summary.Total,
		"indexed": summary.Indexed,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("Update finished")
	return summary, err
}
