// Package usecases contains application business rules.
// Usecases orchestrate entities and depend on port interfaces only.
package usecases

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/0xcro3dile/shotfind/internal/config"
	shoterrors "github.com/0xcro3dile/shotfind/internal/errors"
)

// DefaultPattern is the glob used when no pattern is given.
const DefaultPattern = "Screenshot *.png"

// FileSelector discovers candidate screenshots and filters them by the
// strict naming convention "<prefix> YYYY-MM-DD at HH.MM.SS.png".
type FileSelector struct {
	name *regexp.Regexp
}

// NewFileSelector creates a selector for files named with the given prefix.
func NewFileSelector(prefix string) *FileSelector {
	if prefix == "" {
		prefix = "Screenshot"
	}
	return &FileSelector{
		name: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) +
			` \d{4}-\d{2}-\d{2} at \d{2}\.\d{2}\.\d{2}\.png$`),
	}
}

// Matches reports whether the base name of path follows the naming convention.
func (s *FileSelector) Matches(path string) bool {
	return s.name.MatchString(filepath.Base(path))
}

// Select returns the paths matching both the glob pattern and the naming
// convention, in glob order. max > 0 keeps only the first max matches.
func (s *FileSelector) Select(pattern string, max int) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	files, err := filepath.Glob(config.ExpandHome(pattern))
	if err != nil {
		return nil, shoterrors.NewInvalidRequest(fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}

	var matches []string
	for _, f := range files {
		if s.Matches(f) {
			matches = append(matches, f)
		}
	}

	if max > 0 && len(matches) > max {
		matches = matches[:max]
	}
	return matches, nil
}
