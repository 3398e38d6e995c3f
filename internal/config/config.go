// Package config loads shotfind configuration.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store backends.
const (
	BackendChroma = "chroma"
	BackendSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	Ollama   OllamaConfig   `json:"ollama"`
	Models   ModelsConfig   `json:"models"`
	Prompt   string         `json:"prompt,omitempty"`
	Store    StoreConfig    `json:"store"`
	Chroma   ChromaConfig   `json:"chroma"`
	Service  ServiceConfig  `json:"service"`
	Selector SelectorConfig `json:"selector"`
	Query    QueryConfig    `json:"query"`

	// DataDir holds the SQLite backend database.
	DataDir string `json:"data_dir,omitempty"`

	// LogLevel is a logrus level name ("info", "debug", ...).
	LogLevel string `json:"log_level,omitempty"`
}

// OllamaConfig points at the model server.
type OllamaConfig struct {
	URL string `json:"url,omitempty"`
}

// ModelsConfig names the models the run depends on.
// Each name is matched as a prefix against the locally available models.
type ModelsConfig struct {
	Vision    string `json:"vision,omitempty"`
	Text      string `json:"text,omitempty"` // reserved, only ensured present
	Embedding string `json:"embedding,omitempty"`
}

// StoreConfig selects the description store.
type StoreConfig struct {
	Backend string `json:"backend,omitempty"`
}

// ChromaConfig addresses the collection in a Chroma server.
type ChromaConfig struct {
	URL        string `json:"url,omitempty"`
	Tenant     string `json:"tenant,omitempty"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// ServiceConfig describes how to find and launch the vector database process.
type ServiceConfig struct {
	// Name is matched case-insensitively against running process names.
	Name    string   `json:"name,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	StartupGraceSeconds int `json:"startup_grace_seconds,omitempty"`
}

// StartupGrace returns the wait after launching the service.
func (s ServiceConfig) StartupGrace() time.Duration {
	return time.Duration(s.StartupGraceSeconds) * time.Second
}

// SelectorConfig controls the strict screenshot naming filter.
type SelectorConfig struct {
	Prefix string `json:"prefix,omitempty"`
}

// QueryConfig controls semantic lookups.
type QueryConfig struct {
	Results int `json:"results,omitempty"`
}

// DefaultConfig returns the default configuration.
// Paths containing "~" are expanded against the user's home directory by ExpandHome.
func DefaultConfig() *Config {
	return &Config{
		Ollama: OllamaConfig{URL: "http://localhost:11434"},
		Models: ModelsConfig{
			Vision:    "llava",
			Text:      "mistral",
			Embedding: "nomic-embed-text",
		},
		Prompt: "What is in this image?",
		Store:  StoreConfig{Backend: BackendChroma},
		Chroma: ChromaConfig{
			URL:        "http://localhost:8000",
			Tenant:     "default_tenant",
			Database:   "default_database",
			Collection: "screenshots",
		},
		Service: ServiceConfig{
			Name:                "chroma",
			Command:             "chroma",
			Args:                []string{"run", "--path", "~/chroma_data", "--log-path", "~/chroma_logs"},
			StartupGraceSeconds: 5,
		},
		Selector: SelectorConfig{Prefix: "Screenshot"},
		Query:    QueryConfig{Results: 5},
		DataDir:  "~/.shotfind/data",
		LogLevel: "info",
	}
}

// Load loads configuration from baseDir/config.json on top of the defaults.
// Returns the defaults if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.shotfind.
func Load(baseDir string) (*Config, error) {
	overlay, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), overlay), nil
}

// loadFileRaw returns a zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence when non-zero.
func Merge(base, overlay *Config) *Config {
	result := *base

	result.Ollama.URL = pick(base.Ollama.URL, overlay.Ollama.URL)
	result.Models.Vision = pick(base.Models.Vision, overlay.Models.Vision)
	result.Models.Text = pick(base.Models.Text, overlay.Models.Text)
	result.Models.Embedding = pick(base.Models.Embedding, overlay.Models.Embedding)
	result.Prompt = pick(base.Prompt, overlay.Prompt)
	result.Store.Backend = pick(base.Store.Backend, overlay.Store.Backend)

	result.Chroma.URL = pick(base.Chroma.URL, overlay.Chroma.URL)
	result.Chroma.Tenant = pick(base.Chroma.Tenant, overlay.Chroma.Tenant)
	result.Chroma.Database = pick(base.Chroma.Database, overlay.Chroma.Database)
	result.Chroma.Collection = pick(base.Chroma.Collection, overlay.Chroma.Collection)

	result.Service.Name = pick(base.Service.Name, overlay.Service.Name)
	result.Service.Command = pick(base.Service.Command, overlay.Service.Command)
	result.Service.Args = base.Service.Args
	if len(overlay.Service.Args) > 0 {
		result.Service.Args = overlay.Service.Args
	}
	if overlay.Service.StartupGraceSeconds != 0 {
		result.Service.StartupGraceSeconds = overlay.Service.StartupGraceSeconds
	}

	result.Selector.Prefix = pick(base.Selector.Prefix, overlay.Selector.Prefix)
	if overlay.Query.Results != 0 {
		result.Query.Results = overlay.Query.Results
	}
	result.DataDir = pick(base.DataDir, overlay.DataDir)
	result.LogLevel = pick(base.LogLevel, overlay.LogLevel)

	return &result
}

func pick(base, overlay string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
