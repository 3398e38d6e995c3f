// Package usecases - query.go handles semantic lookups over stored descriptions.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// DefaultResults is the number of matches returned per query.
const DefaultResults = 5

// QueryUseCase runs nearest-neighbour queries against the description store.
type QueryUseCase struct {
	store ports.DescriptionStore
	topK  int
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(store ports.DescriptionStore, topK int) *QueryUseCase {
	if topK <= 0 {
		topK = DefaultResults
	}
	return &QueryUseCase{
		store: store,
		topK:  topK,
	}
}

// Search returns the closest descriptions to text, best first.
// A blank query returns no results.
func (uc *QueryUseCase) Search(ctx context.Context, text string) ([]entities.QueryResult, error) {
	return uc.SearchN(ctx, text, uc.topK)
}

// SearchN is Search with an explicit result count.
func (uc *QueryUseCase) SearchN(ctx context.Context, text string, n int) ([]entities.QueryResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if n <= 0 {
		n = uc.topK
	}
	results, err := uc.store.Query(ctx, text, n)
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// FormatResult renders a match as printed by the CLI.
func FormatResult(r entities.QueryResult) string {
	return fmt.Sprintf("Filename: %s, Description: %s", r.ID, r.Document)
}
