package usecases

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// mockStore implements ports.DescriptionStore in memory. Query ranks by the
// share of query words found in the document.
type mockStore struct {
	records map[string]entities.DescriptionRecord
	order   []string
	adds    int

	getErr error
	addErr error
	// dupOnAdd simulates another writer inserting the id between probe and add.
	dupOnAdd bool
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]entities.DescriptionRecord)}
}

func (m *mockStore) Get(ctx context.Context, ids []string) ([]entities.DescriptionRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []entities.DescriptionRecord
	for _, id := range ids {
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockStore) Add(ctx context.Context, rec entities.DescriptionRecord) error {
	if m.addErr != nil {
		return m.addErr
	}
	if m.dupOnAdd {
		return ports.ErrDuplicateID
	}
	if _, ok := m.records[rec.ID]; ok {
		return ports.ErrDuplicateID
	}
	m.records[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	m.adds++
	return nil
}

func (m *mockStore) Query(ctx context.Context, text string, n int) ([]entities.QueryResult, error) {
	words := strings.Fields(strings.ToLower(text))
	var results []entities.QueryResult
	for _, id := range m.order {
		rec := m.records[id]
		doc := strings.ToLower(rec.Document)
		hits := 0
		for _, w := range words {
			if strings.Contains(doc, w) {
				hits++
			}
		}
		results = append(results, entities.QueryResult{
			ID:       rec.ID,
			Document: rec.Document,
			Distance: 1 - float64(hits)/float64(len(words)),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (m *mockStore) All(ctx context.Context) ([]entities.DescriptionRecord, error) {
	out := make([]entities.DescriptionRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *mockStore) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.records, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.records[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

// mockLoader implements ports.ImageLoader without touching the filesystem.
type mockLoader struct {
	fail map[string]bool
}

func (m *mockLoader) Load(ctx context.Context, path string) (*entities.Screenshot, error) {
	if m.fail[path] {
		return nil, errors.New("not an image")
	}
	return &entities.Screenshot{Path: path, Data: []byte("png"), Format: "png"}, nil
}

// mockVision implements ports.VisionService.
type mockVision struct {
	mu      sync.Mutex
	calls   []string
	prompts []string
	fail    map[string]bool
	answer  func(path string) string
}

func (m *mockVision) Describe(ctx context.Context, prompt string, image *entities.Screenshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, image.Path)
	m.prompts = append(m.prompts, prompt)
	if m.fail[image.Path] {
		return "", errors.New("inference failed")
	}
	if m.answer != nil {
		return m.answer(image.Path), nil
	}
	return "a screenshot of " + image.Path, nil
}

// mockRegistry implements ports.ModelRegistry.
type mockRegistry struct {
	models  []string
	pulled  []string
	listErr error
	pullErr error
}

func (m *mockRegistry) List(ctx context.Context) ([]string, error) {
	return m.models, m.listErr
}

func (m *mockRegistry) Pull(ctx context.Context, name string) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulled = append(m.pulled, name)
	m.models = append(m.models, name+":latest")
	return nil
}

// mockProcesses implements ports.ProcessTable.
type mockProcesses struct {
	running map[string]bool
	err     error
}

func (m *mockProcesses) IsRunning(ctx context.Context, name string) (bool, error) {
	return m.running[strings.ToLower(name)], m.err
}

// mockLauncher implements ports.ServiceLauncher and records lifecycle calls.
type mockLauncher struct {
	started  int
	stopped  int
	startErr error
	procs    *mockProcesses
	command  string
	args     []string
}

func (m *mockLauncher) Start(ctx context.Context, command string, args []string) (ports.ServiceHandle, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started++
	m.command = command
	m.args = args
	if m.procs != nil {
		m.procs.running[command] = true
	}
	return &mockHandle{launcher: m}, nil
}

type mockHandle struct {
	launcher *mockLauncher
}

func (h *mockHandle) Stop() error {
	h.launcher.stopped++
	if h.launcher.procs != nil {
		delete(h.launcher.procs.running, h.launcher.command)
	}
	return nil
}

// mockProgress implements ports.ProgressIndicator.
type mockProgress struct {
	messages []string
	stops    int
}

func (m *mockProgress) Start(message string) { m.messages = append(m.messages, message) }
func (m *mockProgress) Stop()                { m.stops++ }

// mockWatcher implements ports.FileWatcher over a channel the test feeds.
type mockWatcher struct {
	events  chan ports.FileEvent
	stopped bool
}

func (m *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return m.events, nil
}

func (m *mockWatcher) Stop() error {
	m.stopped = true
	return nil
}
