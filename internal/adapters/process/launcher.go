package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/config"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// stopTimeout is how long Stop waits after SIGTERM before killing.
const stopTimeout = 10 * time.Second

// Launcher implements ports.ServiceLauncher with os/exec.
type Launcher struct{}

// NewLauncher creates a launcher.
func NewLauncher() *Launcher {
	return &Launcher{}
}

// Start runs command in the background. Arguments starting with "~" are
// expanded. The child's output is discarded.
func (l *Launcher) Start(ctx context.Context, command string, args []string) (ports.ServiceHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	expanded := make([]string, len(args))
	for i, a := range args {
		expanded[i] = config.ExpandHome(a)
	}

	// Not bound to ctx: the service lives until Stop. With no Stdout or
	// Stderr set, the child writes to the null device.
	cmd := exec.Command(command, expanded...)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", command, err)
	}

	logrus.WithFields(logrus.Fields{"service": command, "pid": cmd.Process.Pid}).Debug("Started service")

	h := &handle{cmd: cmd, done: make(chan struct{})}
	go h.wait()
	return h, nil
}

type handle struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	once    sync.Once
	stopErr error
}

func (h *handle) wait() {
	h.err = h.cmd.Wait()
	close(h.done)
}

// Stop terminates the service and waits for it. Safe to call more than once.
func (h *handle) Stop() error {
	h.once.Do(func() { h.stopErr = h.stop() })
	return h.stopErr
}

func (h *handle) stop() error {
	select {
	case <-h.done:
		return nil // already exited
	default:
	}

	if runtime.GOOS == "windows" {
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	} else if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	select {
	case <-h.done:
	case <-time.After(stopTimeout):
		logrus.WithField("pid", h.cmd.Process.Pid).Warn("Service ignored SIGTERM, killing")
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		<-h.done
	}

	// Exiting on our signal is the expected outcome.
	var exitErr *exec.ExitError
	if h.err != nil && !errors.As(h.err, &exitErr) {
		return h.err
	}
	return nil
}
