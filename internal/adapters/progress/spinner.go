// Package progress shows progress for long blocking steps.
package progress

import (
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Spinner implements ports.ProgressIndicator. On a terminal it animates a
// spinner next to the message; elsewhere it logs the message once.
type Spinner struct {
	out *os.File

	mu sync.Mutex
	s  *spinner.Spinner
}

// NewSpinner creates a spinner writing to out, usually os.Stderr.
func NewSpinner(out *os.File) *Spinner {
	return &Spinner{out: out}
}

// Start shows message until Stop. A running spinner is replaced.
func (p *Spinner) Start(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.s != nil {
		p.s.Stop()
		p.s = nil
	}

	if !isTerminal(p.out) {
		logrus.Info(message)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(p.out))
	s.Suffix = " " + message
	s.FinalMSG = message + "\n"
	s.Start()
	p.s = s
}

// Stop ends the current spinner, if any.
func (p *Spinner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.s != nil {
		p.s.Stop()
		p.s = nil
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
