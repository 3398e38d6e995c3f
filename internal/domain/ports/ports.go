// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"errors"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
)

// ErrDuplicateID is returned by DescriptionStore.Add when a record with the
// same id already exists.
var ErrDuplicateID = errors.New("record id already exists")

// VisionService turns an image and a prompt into a text description.
type VisionService interface {
	Describe(ctx context.Context, prompt string, image *entities.Screenshot) (string, error)
}

// ModelRegistry lists and downloads models on the local model server.
type ModelRegistry interface {
	// List returns the names of locally available models.
	List(ctx context.Context) ([]string, error)

	// Pull blocks until the model is downloaded.
	Pull(ctx context.Context, name string) error
}

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DescriptionStore persists description records and answers semantic queries.
type DescriptionStore interface {
	// Get returns the records among ids that exist.
	Get(ctx context.Context, ids []string) ([]entities.DescriptionRecord, error)

	// Add inserts a new record. Returns ErrDuplicateID if the id exists.
	Add(ctx context.Context, rec entities.DescriptionRecord) error

	// Query returns up to n records nearest to text, closest first.
	Query(ctx context.Context, text string, n int) ([]entities.QueryResult, error)

	// All returns every stored record.
	All(ctx context.Context) ([]entities.DescriptionRecord, error)

	// Delete removes records by id. Missing ids are ignored.
	Delete(ctx context.Context, ids []string) error
}

// ImageLoader reads a candidate file and verifies it is an image.
type ImageLoader interface {
	Load(ctx context.Context, path string) (*entities.Screenshot, error)
}

// ProcessTable reports whether a process is running.
type ProcessTable interface {
	// IsRunning reports whether any process name contains name, ignoring case.
	IsRunning(ctx context.Context, name string) (bool, error)
}

// ServiceLauncher starts a background service owned by this process.
type ServiceLauncher interface {
	Start(ctx context.Context, command string, args []string) (ServiceHandle, error)
}

// ServiceHandle is a started service that must be stopped before exit.
type ServiceHandle interface {
	// Stop terminates the service and waits for it to exit.
	Stop() error
}

// ProgressIndicator shows that a long blocking step is in progress.
type ProgressIndicator interface {
	Start(message string)
	Stop()
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
