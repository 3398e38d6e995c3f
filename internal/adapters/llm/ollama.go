// Package llm provides the Ollama vision and model registry adapters.
// Adapter implementing ports.VisionService and ports.ModelRegistry.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
)

const defaultBaseURL = "http://localhost:11434"

// OllamaVisionAdapter implements ports.VisionService using the Ollama chat API.
type OllamaVisionAdapter struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaVisionAdapter creates a new Ollama vision adapter.
func NewOllamaVisionAdapter(baseURL, model string) *OllamaVisionAdapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "llava"
	}
	return &OllamaVisionAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second, // first call loads the model
		},
	}
}

// ollamaChatMessage is one message of an Ollama chat request.
type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatRequest is the Ollama chat API request.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// ollamaChatResponse is the Ollama chat API response.
type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

// Describe sends the prompt and the image in a single non-streaming chat call.
func (a *OllamaVisionAdapter) Describe(ctx context.Context, prompt string, image *entities.Screenshot) (string, error) {
	reqBody := ollamaChatRequest{
		Model: a.model,
		Messages: []ollamaChatMessage{{
			Role:    "user",
			Content: prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(image.Data)},
		}},
		Stream: false,
	}

	logrus.WithFields(logrus.Fields{"model": a.model, "file": image.Path}).Debug("Calling Ollama chat")

	var chatResp ollamaChatResponse
	if err := postJSON(ctx, a.client, a.baseURL+"/api/chat", reqBody, &chatResp); err != nil {
		return "", err
	}
	return chatResp.Message.Content, nil
}

// OllamaRegistry implements ports.ModelRegistry using the Ollama tags and pull APIs.
type OllamaRegistry struct {
	baseURL string
	client  *http.Client
}

// NewOllamaRegistry creates a registry client. Pulls can take many minutes,
// so the client has no overall timeout; the caller's context bounds it.
func NewOllamaRegistry(baseURL string) *OllamaRegistry {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OllamaRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// List returns the names of the locally available models.
func (r *OllamaRegistry) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		names = append(names, name)
	}
	return names, nil
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type ollamaPullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Pull downloads a model and blocks until Ollama reports success.
func (r *OllamaRegistry) Pull(ctx context.Context, name string) error {
	logrus.WithField("model", name).Debug("Pulling model")

	var pullResp ollamaPullResponse
	if err := postJSON(ctx, r.client, r.baseURL+"/api/pull", ollamaPullRequest{Name: name}, &pullResp); err != nil {
		return err
	}
	if pullResp.Error != "" {
		return fmt.Errorf("pulling %s: %s", name, pullResp.Error)
	}
	if pullResp.Status != "success" {
		return fmt.Errorf("pulling %s: unexpected status %q", name, pullResp.Status)
	}
	return nil
}

// postJSON sends body as JSON and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
