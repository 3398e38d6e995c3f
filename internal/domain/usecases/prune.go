package usecases

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// PruneUseCase removes records whose source file no longer exists.
type PruneUseCase struct {
	store  ports.DescriptionStore
	exists func(path string) bool
}

// NewPruneUseCase creates a PruneUseCase checking the local filesystem.
func NewPruneUseCase(store ports.DescriptionStore) *PruneUseCase {
	return &PruneUseCase{store: store, exists: fileExists}
}

// Prune finds orphaned records and, unless dryRun, deletes them.
func (uc *PruneUseCase) Prune(ctx context.Context, dryRun bool) (*entities.PruneSummary, error) {
	records, err := uc.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing descriptions: %w", err)
	}

	summary := &entities.PruneSummary{Checked: len(records)}
	for _, rec := range records {
		source := rec.Source
		if source == "" {
			source = rec.ID
		}
		if !uc.exists(source) {
			summary.Orphans = append(summary.Orphans, rec.ID)
		}
	}

	if dryRun || len(summary.Orphans) == 0 {
		return summary, nil
	}

	if err := uc.store.Delete(ctx, summary.Orphans); err != nil {
		return summary, fmt.Errorf("deleting orphaned descriptions: %w", err)
	}
	summary.Removed = len(summary.Orphans)
	logrus.WithField("removed", summary.Removed).Info("Pruned descriptions of missing files")
	return summary, nil
}

// fileExists treats anything other than "does not exist" as present, so a
// permission error never causes a delete.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
