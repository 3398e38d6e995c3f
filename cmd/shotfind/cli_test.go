package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/0xcro3dile/shotfind/internal/adapters/loader"
	"github.com/0xcro3dile/shotfind/internal/adapters/vectordb"
	"github.com/0xcro3dile/shotfind/internal/config"
	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

type fakeRegistry struct {
	models []string
	pulled []string
}

func (r *fakeRegistry) List(ctx context.Context) ([]string, error) { return r.models, nil }

func (r *fakeRegistry) Pull(ctx context.Context, name string) error {
	r.pulled = append(r.pulled, name)
	return nil
}

type fakeTable struct{ running bool }

func (t fakeTable) IsRunning(ctx context.Context, name string) (bool, error) { return t.running, nil }

type fakeHandle struct{ stops *int }

func (h fakeHandle) Stop() error {
	*h.stops++
	return nil
}

type fakeLauncher struct {
	starts int
	stops  int
}

func (l *fakeLauncher) Start(ctx context.Context, command string, args []string) (ports.ServiceHandle, error) {
	l.starts++
	return fakeHandle{stops: &l.stops}, nil
}

// fakeVision describes every image the same way and counts calls.
type fakeVision struct {
	mu    sync.Mutex
	calls []string
}

func (v *fakeVision) Describe(ctx context.Context, prompt string, shot *entities.Screenshot) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, shot.Path)
	if strings.Contains(shot.Path, "10.00.00") {
		return "A login form with a blue button", nil
	}
	return "A terminal running tests", nil
}

// fakeWatcher replays events, then closes its channel. onWatch runs when
// watching starts.
type fakeWatcher struct {
	dir     string
	onWatch func()
	events  []ports.FileEvent
}

func (w *fakeWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	w.dir = dir
	if w.onWatch != nil {
		w.onWatch()
	}
	ch := make(chan ports.FileEvent, len(w.events))
	for _, ev := range w.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (w *fakeWatcher) Stop() error { return nil }

type wordEmbedder struct{}

func (wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "button")),
		float32(strings.Count(lower, "terminal")),
		0.1,
	}, nil
}

type harness struct {
	t        *testing.T
	dir      string
	cfgDir   string
	registry *fakeRegistry
	table    fakeTable
	launcher *fakeLauncher
	vision   *fakeVision
	store    *vectordb.InMemoryStore
	watcher  *fakeWatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:        t,
		dir:      t.TempDir(),
		cfgDir:   t.TempDir(),
		registry: &fakeRegistry{models: []string{"llava:latest", "mistral:latest", "nomic-embed-text:latest"}},
		table:    fakeTable{running: true},
		launcher: &fakeLauncher{},
		vision:   &fakeVision{},
		store:    vectordb.NewInMemoryStore(wordEmbedder{}),
		watcher:  &fakeWatcher{},
	}
}

func (h *harness) factory(cfg *config.Config) (*components, error) {
	cfg.Service.StartupGraceSeconds = 0
	return &components{
		registry:  h.registry,
		processes: h.table,
		launcher:  h.launcher,
		vision:    h.vision,
		loader:    loader.NewImageLoader(0),
		store:     h.store,
		newWatcher: func() (ports.FileWatcher, error) {
			return h.watcher, nil
		},
		close: func() error { return nil },
	}, nil
}

func (h *harness) writePNG(name string) string {
	h.t.Helper()
	var buf bytes.Buffer
	require.NoError(h.t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func (h *harness) pattern() string {
	return filepath.Join(h.dir, "Screenshot *.png")
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	return h.runContext(context.Background(), args...)
}

func (h *harness) runContext(ctx context.Context, args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	app := newCLIApp(&stdout, &stderr, h.factory)
	full := append([]string{"shotfind", "--config", h.cfgDir}, args...)
	err := app.RunContext(ctx, full)
	return stdout.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ec cli.ExitCoder
	require.True(t, errors.As(err, &ec), "expected an exit error, got %v", err)
	return ec.ExitCode()
}

func TestCLI_UpdateThenQuery(t *testing.T) {
	h := newHarness(t)
	login := h.writePNG("Screenshot 2024-01-01 at 10.00.00.png")
	h.writePNG("Screenshot 2024-01-01 at 11.00.00.png")
	h.writePNG("Screenshot 2024-01-01 at 12.00.00 (2).png") // wrong name, ignored

	out, err := h.run("--update", "--pattern", h.pattern(), "--query", "button")

	require.NoError(t, err)
	assert.Len(t, h.vision.calls, 2)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Filename: "+login+", Description: A login form with a blue button", lines[0])
}

func TestCLI_UpdateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.writePNG("Screenshot 2024-01-01 at 10.00.00.png")

	_, err := h.run("--update", "--pattern", h.pattern())
	require.NoError(t, err)
	_, err = h.run("--update", "--pattern", h.pattern())
	require.NoError(t, err)

	assert.Len(t, h.vision.calls, 1, "indexed file is not described again")
	all, err := h.store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCLI_MaxFiles(t *testing.T) {
	h := newHarness(t)
	h.writePNG("Screenshot 2024-01-01 at 10.00.00.png")
	h.writePNG("Screenshot 2024-01-01 at 11.00.00.png")

	_, err := h.run("--update", "--pattern", h.pattern(), "--max-files", "1")

	require.NoError(t, err)
	assert.Len(t, h.vision.calls, 1)
}

func TestCLI_NoMatches(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("--update", "--pattern", h.pattern(), "--query", "button")

	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "No files found that match the pattern")
	assert.Empty(t, out, "query is not run")
}

func TestCLI_FailedFileExitsTwo(t *testing.T) {
	h := newHarness(t)
	h.writePNG("Screenshot 2024-01-01 at 10.00.00.png")
	bad := filepath.Join(h.dir, "Screenshot 2024-01-01 at 11.00.00.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	_, err := h.run("--update", "--pattern", h.pattern())

	require.Error(t, err)
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Len(t, h.vision.calls, 1, "the good file is still indexed")
}

func TestCLI_StartsAndStopsOwnedService(t *testing.T) {
	h := newHarness(t)
	h.table.running = false

	_, err := h.run("--query", "button")

	require.NoError(t, err)
	assert.Equal(t, 1, h.launcher.starts)
	assert.Equal(t, 1, h.launcher.stops)
}

func TestCLI_LeavesForeignServiceRunning(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("--query", "button")

	require.NoError(t, err)
	assert.Zero(t, h.launcher.starts)
	assert.Zero(t, h.launcher.stops)
}

func TestCLI_SQLiteBackendSkipsService(t *testing.T) {
	h := newHarness(t)
	h.table.running = false
	writeConfig(t, h.cfgDir, map[string]any{"store": map[string]string{"backend": "sqlite"}})

	_, err := h.run("--query", "button")

	require.NoError(t, err)
	assert.Zero(t, h.launcher.starts)
}

func TestCLI_PullsMissingModels(t *testing.T) {
	h := newHarness(t)
	h.registry.models = []string{"mistral:7b"}

	_, err := h.run("--query", "button")

	require.NoError(t, err)
	assert.Equal(t, []string{"llava", "nomic-embed-text"}, h.registry.pulled)
}

func TestCLI_Prune(t *testing.T) {
	h := newHarness(t)
	keep := h.writePNG("Screenshot 2024-01-01 at 10.00.00.png")
	gone := h.writePNG("Screenshot 2024-01-01 at 11.00.00.png")
	_, err := h.run("--update", "--pattern", h.pattern())
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	out, err := h.run("prune", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Orphaned: "+gone)
	assert.Contains(t, out, "1 of 2 descriptions would be removed")

	out, err = h.run("prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 of 2 descriptions")

	all, err := h.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep, all[0].ID)
}

func TestCLI_WatchIndexesExistingThenNew(t *testing.T) {
	h := newHarness(t)
	existing := h.writePNG("Screenshot 2024-01-01 at 10.00.00.png")
	var added string
	h.watcher.onWatch = func() { added = h.writePNG("Screenshot 2024-01-01 at 11.00.00.png") }
	h.watcher.events = []ports.FileEvent{
		{Path: filepath.Join(h.dir, "Screenshot 2024-01-01 at 11.00.00.png"), Operation: ports.FileCreated},
	}

	out, err := h.run("watch", "--pattern", h.pattern())

	require.NoError(t, err)
	assert.Equal(t, h.dir, h.watcher.dir)
	assert.Equal(t, []string{existing, added}, h.vision.calls)
	assert.Equal(t, "Indexed "+added+"\n", out)
}

func TestCLI_WatchWithoutMatchesStopsOwnedService(t *testing.T) {
	h := newHarness(t)
	h.table.running = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runContext(ctx, "watch", "--pattern", h.pattern())

	require.NoError(t, err, "no matches on the first pass is not an error")
	assert.Equal(t, h.dir, h.watcher.dir)
	assert.Equal(t, 1, h.launcher.starts)
	assert.Equal(t, 1, h.launcher.stops)
}

func TestCLI_ServeStopsOwnedServiceOnCancel(t *testing.T) {
	h := newHarness(t)
	h.table.running = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runContext(ctx, "serve", "--addr", "127.0.0.1:0")

	require.NoError(t, err)
	assert.Equal(t, 1, h.launcher.starts)
	assert.Equal(t, 1, h.launcher.stops)
}

func TestCLI_ServeBadAddress(t *testing.T) {
	h := newHarness(t)
	h.table.running = false

	_, err := h.run("serve", "--addr", "not-an-address")

	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Equal(t, 1, h.launcher.stops, "service is released after a failed listen")
}

func TestCLI_InvalidArguments(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("--max-files", "-1", "--update")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "INVALID_REQUEST")

	_, err = h.run("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	h := newHarness(t)
	writeConfig(t, h.cfgDir, map[string]any{"log_level": "loud"})

	_, err := h.run("--query", "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log_level")
}

func TestNewComponents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendSQLite
	cfg.DataDir = t.TempDir()

	c, err := newComponents(cfg)
	require.NoError(t, err)
	defer c.close()
	assert.IsType(t, &vectordb.SQLiteStore{}, c.store)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "descriptions.db"))

	cfg.Store.Backend = config.BackendChroma
	c, err = newComponents(cfg)
	require.NoError(t, err)
	assert.IsType(t, &vectordb.ChromaStore{}, c.store)

	cfg.Store.Backend = "redis"
	_, err = newComponents(cfg)
	assert.Error(t, err)
}

func TestGuardConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	gc := guardConfig(cfg)
	require.Len(t, gc.Models, 3)
	require.NotNil(t, gc.Service)
	assert.Equal(t, "chroma", gc.Service.Command)

	cfg.Store.Backend = config.BackendSQLite
	assert.Nil(t, guardConfig(cfg).Service)
}

func TestSetupLogging_RunField(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	var buf bytes.Buffer
	id, err := setupLogging(&buf, "info", false)
	require.NoError(t, err)
	assert.Len(t, id, 26)

	logrus.Info("hello")
	assert.Contains(t, buf.String(), "run="+id)

	logrus.Debug("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	_, err = setupLogging(&buf, "info", true)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func writeConfig(t *testing.T, dir string, v map[string]any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))
}
