package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
	shoterrors "github.com/0xcro3dile/shotfind/internal/errors"
)

// IndexWriter persists one description record per path.
type IndexWriter struct {
	store ports.DescriptionStore
}

// NewIndexWriter creates a writer over store.
func NewIndexWriter(store ports.DescriptionStore) *IndexWriter {
	return &IndexWriter{store: store}
}

// Exists reports whether a record with id == path is stored.
func (w *IndexWriter) Exists(ctx context.Context, path string) (bool, error) {
	existing, err := w.store.Get(ctx, []string{path})
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", path, err)
	}
	return len(existing) > 0, nil
}

// Write stores the description for path. It returns false when a record
// with that id already exists, including when a concurrent writer won the
// insert after Exists said no.
func (w *IndexWriter) Write(ctx context.Context, path, description string) (bool, error) {
	err := w.store.Add(ctx, entities.NewDescriptionRecord(path, description))
	if errors.Is(err, ports.ErrDuplicateID) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("adding %s: %w", path, err)
	}
	return true, nil
}

// IngestUseCase runs the update pass: load, describe and write each file.
type IngestUseCase struct {
	loader    ports.ImageLoader
	describer *DescriptionGenerator
	writer    *IndexWriter
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(loader ports.ImageLoader, describer *DescriptionGenerator, writer *IndexWriter) *IngestUseCase {
	return &IngestUseCase{
		loader:    loader,
		describer: describer,
		writer:    writer,
	}
}

// IndexAll indexes paths one at a time, in order. A failing file is recorded
// and the pass moves on. Only context cancellation stops it early, in which
// case the summary covers the files handled so far.
func (uc *IngestUseCase) IndexAll(ctx context.Context, paths []string) (*entities.IndexSummary, error) {
	summary := &entities.IndexSummary{Total: len(paths)}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Record(uc.IndexFile(ctx, path, i+1, len(paths)))
	}
	return summary, nil
}

// IndexFile indexes a single file. position and total are used for progress
// messages only.
func (uc *IngestUseCase) IndexFile(ctx context.Context, path string, position, total int) entities.FileResult {
	log := logrus.WithField("file", path)

	// Probe first so an indexed file never costs an inference call.
	exists, err := uc.writer.Exists(ctx, path)
	if err != nil {
		return failed(log, path, err)
	}
	if exists {
		log.Infof("Skipping %s as it already has a description", path)
		return entities.FileResult{Path: path, Outcome: entities.OutcomeSkipped}
	}

	log.Infof("Getting description of file %d of %d: %s", position, total, path)
	shot, err := uc.loader.Load(ctx, path)
	if err != nil {
		return failed(log, path, err)
	}

	description, err := uc.describer.Describe(ctx, shot)
	if err != nil {
		return failed(log, path, err)
	}

	written, err := uc.writer.Write(ctx, path, description)
	if err != nil {
		return failed(log, path, err)
	}
	if !written {
		log.Infof("Skipping %s as it already has a description", path)
		return entities.FileResult{Path: path, Outcome: entities.OutcomeSkipped}
	}

	log.WithField("chars", len(description)).Debug("Stored description")
	return entities.FileResult{Path: path, Outcome: entities.OutcomeIndexed}
}

func failed(log *logrus.Entry, path string, err error) entities.FileResult {
	err = shoterrors.NewProcessing(path, err)
	log.WithError(err).Warn("Failed to index file")
	return entities.FileResult{Path: path, Outcome: entities.OutcomeFailed, Err: err}
}
