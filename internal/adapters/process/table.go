// Package process finds and launches local service processes.
package process

import (
	"context"
	"fmt"
	"strings"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

// Table implements ports.ProcessTable over the OS process list.
type Table struct {
	names func(ctx context.Context) ([]string, error)
}

// NewTable creates a table reading the live process list.
func NewTable() *Table {
	return &Table{names: processNames}
}

// IsRunning reports whether any process name contains name, ignoring case.
func (t *Table) IsRunning(ctx context.Context, name string) (bool, error) {
	names, err := t.names(ctx)
	if err != nil {
		return false, fmt.Errorf("listing processes: %w", err)
	}

	want := strings.ToLower(name)
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return true, nil
		}
	}
	return false, nil
}

func processNames(ctx context.Context) ([]string, error) {
	procs, err := psprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		// Processes exit or deny access while we iterate.
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}
