// Package entities contains core business entities.
// Pure domain objects with no knowledge of storage or external systems.
package entities

import "time"

// Screenshot is a candidate file loaded from disk and verified to be an image.
type Screenshot struct {
	Path    string
	Data    []byte
	Format  string // "png", "jpeg", ...
	Width   int
	Height  int
	ModTime time.Time
}

// DescriptionRecord is the unit persisted in the description store.
// ID is the file path and doubles as the dedup key.
type DescriptionRecord struct {
	ID       string
	Document string
	Source   string // metadata.source, same as ID
}

// NewDescriptionRecord builds the record for a described file.
func NewDescriptionRecord(path, description string) DescriptionRecord {
	return DescriptionRecord{
		ID:       path,
		Document: description,
		Source:   path,
	}
}

// QueryResult is one ranked match returned by a semantic query.
type QueryResult struct {
	ID       string
	Document string
	Distance float64 // lower is closer
}

// ModelKind names the role a model plays in the pipeline.
type ModelKind string

const (
	ModelVision    ModelKind = "vision"
	ModelText      ModelKind = "text"
	ModelEmbedding ModelKind = "embedding"
)

// RequiredModel is a model the run needs locally, and whether it was found.
type RequiredModel struct {
	Kind      ModelKind
	Name      string
	Available bool
}

// Outcome is the result of indexing a single file.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FileResult records what happened to one file in an update pass.
type FileResult struct {
	Path    string
	Outcome Outcome
	Err     error
}

// IndexSummary aggregates the per-file results of an update pass, in discovery order.
type IndexSummary struct {
	Total   int
	Indexed int
	Skipped int
	Failed  int
	Results []FileResult
}

// Record appends a file result and updates the counters.
func (s *IndexSummary) Record(r FileResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Failures returns the failed results.
func (s *IndexSummary) Failures() []FileResult {
	var failed []FileResult
	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// PruneSummary reports what an orphan sweep found.
type PruneSummary struct {
	Checked int
	Orphans []string
	Removed int
}
