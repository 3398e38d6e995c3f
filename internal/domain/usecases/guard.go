package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
	shoterrors "github.com/0xcro3dile/shotfind/internal/errors"
)

// ServiceSpec describes the vector database process the run depends on.
type ServiceSpec struct {
	Name    string // substring matched against process names
	Command string
	Args    []string
	Grace   time.Duration
}

// GuardConfig configures a DependencyGuard.
type GuardConfig struct {
	Models []entities.RequiredModel

	// Service is nil when the store needs no external process.
	Service *ServiceSpec
}

// DependencyGuard makes sure the required models are present and the vector
// database service is running. It stops the service on Release only if it
// started it.
type DependencyGuard struct {
	registry  ports.ModelRegistry
	processes ports.ProcessTable
	launcher  ports.ServiceLauncher
	progress  ports.ProgressIndicator
	cfg       GuardConfig

	sleep  func(ctx context.Context, d time.Duration) error
	handle ports.ServiceHandle
}

// NewDependencyGuard creates a guard. progress may be nil.
func NewDependencyGuard(
	registry ports.ModelRegistry,
	processes ports.ProcessTable,
	launcher ports.ServiceLauncher,
	progress ports.ProgressIndicator,
	cfg GuardConfig,
) *DependencyGuard {
	return &DependencyGuard{
		registry:  registry,
		processes: processes,
		launcher:  launcher,
		progress:  progress,
		cfg:       cfg,
		sleep:     sleepContext,
	}
}

// Acquire ensures models first, then the service.
func (g *DependencyGuard) Acquire(ctx context.Context) error {
	if _, err := g.EnsureModels(ctx); err != nil {
		return err
	}
	return g.EnsureService(ctx)
}

// EnsureModels pulls every configured model that is not available locally.
// The returned slice reflects availability before any pull.
func (g *DependencyGuard) EnsureModels(ctx context.Context) ([]entities.RequiredModel, error) {
	names, err := g.registry.List(ctx)
	if err != nil {
		return nil, shoterrors.NewDependency("listing models", err)
	}

	models := make([]entities.RequiredModel, 0, len(g.cfg.Models))
	for _, m := range g.cfg.Models {
		if m.Name == "" {
			continue
		}
		m.Available = hasModel(names, m.Name)
		models = append(models, m)
	}

	for _, m := range models {
		if m.Available {
			continue
		}
		if err := g.pull(ctx, m); err != nil {
			return models, err
		}
	}
	return models, nil
}

func (g *DependencyGuard) pull(ctx context.Context, m entities.RequiredModel) error {
	msg := fmt.Sprintf("Downloading required %s model : %s (this may take a few minutes)", m.Kind, m.Name)
	if g.progress != nil {
		g.progress.Start(msg)
		defer g.progress.Stop()
	} else {
		logrus.Info(msg)
	}

	if err := g.registry.Pull(ctx, m.Name); err != nil {
		return shoterrors.NewDependency(fmt.Sprintf("pulling %s model %s", m.Kind, m.Name), err)
	}
	return nil
}

func hasModel(available []string, name string) bool {
	for _, a := range available {
		if strings.HasPrefix(a, name) {
			return true
		}
	}
	return false
}

// EnsureService starts the vector database unless it is already running.
func (g *DependencyGuard) EnsureService(ctx context.Context) error {
	svc := g.cfg.Service
	if svc == nil || g.handle != nil {
		return nil
	}

	running, err := g.processes.IsRunning(ctx, svc.Name)
	if err != nil {
		return shoterrors.NewDependency("scanning processes", err)
	}
	if running {
		logrus.WithField("service", svc.Name).Info("Found running process")
		return nil
	}

	logrus.WithField("service", svc.Name).Info("Starting vector database server...")
	handle, err := g.launcher.Start(ctx, svc.Command, svc.Args)
	if err != nil {
		return shoterrors.NewDependency("starting "+svc.Name, err)
	}
	g.handle = handle

	return g.sleep(ctx, svc.Grace)
}

// Owned reports whether this guard started the service.
func (g *DependencyGuard) Owned() bool {
	return g.handle != nil
}

// Release stops the service if this guard started it. Safe to call more than once.
func (g *DependencyGuard) Release() error {
	if g.handle == nil {
		return nil
	}
	logrus.Info("Stopping vector database server...")
	handle := g.handle
	g.handle = nil
	if err := handle.Stop(); err != nil {
		return shoterrors.NewDependency("stopping vector database", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
