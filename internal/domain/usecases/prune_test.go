package usecases

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
)

func TestPrune_RemovesOnlyMissingFiles(t *testing.T) {
	dir := t.TempDir()
	kept := touch(t, dir, "Screenshot 2024-01-02 at 03.04.05.png")
	gone := filepath.Join(dir, "Screenshot 2024-01-03 at 03.04.05.png")

	store := newMockStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, entities.NewDescriptionRecord(kept, "kept")))
	require.NoError(t, store.Add(ctx, entities.NewDescriptionRecord(gone, "gone")))

	summary, err := NewPruneUseCase(store).Prune(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, []string{gone}, summary.Orphans)
	assert.Equal(t, 1, summary.Removed)
	assert.Equal(t, []string{kept}, store.order)
}

func TestPrune_DryRunDeletesNothing(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "nope.png")
	require.NoError(t, store.Add(ctx, entities.NewDescriptionRecord(missing, "x")))

	summary, err := NewPruneUseCase(store).Prune(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, []string{missing}, summary.Orphans)
	assert.Equal(t, 0, summary.Removed)
	assert.Len(t, store.order, 1)
}

func TestPrune_FallsBackToID(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, entities.DescriptionRecord{ID: "/no/such/file.png", Document: "x"}))

	uc := NewPruneUseCase(store)
	var checked []string
	uc.exists = func(path string) bool {
		checked = append(checked, path)
		return true
	}

	summary, err := uc.Prune(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/no/such/file.png"}, checked)
	assert.Empty(t, summary.Orphans)
}
