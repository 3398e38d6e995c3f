package main

import (
	"fmt"
	"os"

	"github.com/0xcro3dile/shotfind/internal/adapters/embedding"
	"github.com/0xcro3dile/shotfind/internal/adapters/filewatcher"
	"github.com/0xcro3dile/shotfind/internal/adapters/llm"
	"github.com/0xcro3dile/shotfind/internal/adapters/loader"
	"github.com/0xcro3dile/shotfind/internal/adapters/process"
	"github.com/0xcro3dile/shotfind/internal/adapters/progress"
	"github.com/0xcro3dile/shotfind/internal/adapters/vectordb"
	"github.com/0xcro3dile/shotfind/internal/config"
	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
	"github.com/0xcro3dile/shotfind/internal/domain/usecases"
	"github.com/0xcro3dile/shotfind/internal/errors"
)

// components are the adapters one invocation runs on.
type components struct {
	registry   ports.ModelRegistry
	processes  ports.ProcessTable
	launcher   ports.ServiceLauncher
	progress   ports.ProgressIndicator
	vision     ports.VisionService
	loader     ports.ImageLoader
	store      ports.DescriptionStore
	newWatcher func() (ports.FileWatcher, error)
	close      func() error
}

// componentFactory builds the adapters for cfg. Tests substitute fakes.
type componentFactory func(cfg *config.Config) (*components, error)

// newComponents wires the Ollama, process and store adapters selected by cfg.
func newComponents(cfg *config.Config) (*components, error) {
	embedder := embedding.NewOllamaAdapter(cfg.Ollama.URL, cfg.Models.Embedding)

	c := &components{
		registry:  llm.NewOllamaRegistry(cfg.Ollama.URL),
		processes: process.NewTable(),
		launcher:  process.NewLauncher(),
		progress:  progress.NewSpinner(os.Stderr),
		vision:    llm.NewOllamaVisionAdapter(cfg.Ollama.URL, cfg.Models.Vision),
		loader:    loader.NewImageLoader(0),
		newWatcher: func() (ports.FileWatcher, error) {
			return filewatcher.NewFSNotifyWatcher(nil)
		},
		close: func() error { return nil },
	}

	switch cfg.Store.Backend {
	case config.BackendChroma, "":
		store, err := vectordb.NewChromaStore(cfg.Chroma, embedder)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		c.store = store
	case config.BackendSQLite:
		store, err := vectordb.NewSQLiteStore(config.ExpandHome(cfg.DataDir), embedder)
		if err != nil {
			return nil, errors.NewDependency("opening description database", err)
		}
		c.store = store
		c.close = store.Close
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown store backend %q", cfg.Store.Backend))
	}
	return c, nil
}

// pipeline holds the use cases assembled over one set of components.
type pipeline struct {
	comps        *components
	selector     *usecases.FileSelector
	ingest       *usecases.IngestUseCase
	query        *usecases.QueryUseCase
	prune        *usecases.PruneUseCase
	orchestrator *usecases.Orchestrator
}

func assemble(cfg *config.Config, c *components) *pipeline {
	selector := usecases.NewFileSelector(cfg.Selector.Prefix)
	ingest := usecases.NewIngestUseCase(
		c.loader,
		usecases.NewDescriptionGenerator(c.vision, cfg.Prompt),
		usecases.NewIndexWriter(c.store),
	)
	query := usecases.NewQueryUseCase(c.store, cfg.Query.Results)
	guard := usecases.NewDependencyGuard(c.registry, c.processes, c.launcher, c.progress, guardConfig(cfg))

	return &pipeline{
		comps:        c,
		selector:     selector,
		ingest:       ingest,
		query:        query,
		prune:        usecases.NewPruneUseCase(c.store),
		orchestrator: usecases.NewOrchestrator(guard, selector, ingest, query),
	}
}

// guardConfig lists the models every run needs. Only the chroma backend
// depends on a service process.
func guardConfig(cfg *config.Config) usecases.GuardConfig {
	gc := usecases.GuardConfig{
		Models: []entities.RequiredModel{
			{Kind: entities.ModelVision, Name: cfg.Models.Vision},
			{Kind: entities.ModelText, Name: cfg.Models.Text},
			{Kind: entities.ModelEmbedding, Name: cfg.Models.Embedding},
		},
	}
	if cfg.Store.Backend != config.BackendSQLite {
		gc.Service = &usecases.ServiceSpec{
			Name:    cfg.Service.Name,
			Command: cfg.Service.Command,
			Args:    cfg.Service.Args,
			Grace:   cfg.Service.StartupGrace(),
		}
	}
	return gc
}
