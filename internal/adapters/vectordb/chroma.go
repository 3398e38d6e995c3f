package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/config"
	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/ports"
)

// chromaPageSize bounds one /get page when listing the whole collection.
const chromaPageSize = 500

// ChromaStore implements ports.DescriptionStore against a Chroma server
// through its v2 HTTP API. Embeddings are computed client-side.
type ChromaStore struct {
	baseURL    string
	tenant     string
	database   string
	collection string
	embedder   ports.EmbeddingService
	httpClient *http.Client

	// The server may not be running yet at construction time, so the
	// collection id is resolved on first use.
	mu           sync.Mutex
	collectionID string
}

// NewChromaStore creates a client for cfg's collection.
func NewChromaStore(cfg config.ChromaConfig, embedder ports.EmbeddingService) (*ChromaStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("chroma url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("chroma collection is required")
	}
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "default_tenant"
	}
	database := cfg.Database
	if database == "" {
		database = "default_database"
	}
	return &ChromaStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		tenant:     tenant,
		database:   database,
		collection: cfg.Collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *ChromaStore) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

// ensureCollection gets or creates the collection and caches its id.
func (c *ChromaStore) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectionID != "" {
		return c.collectionID, nil
	}

	reqBody := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	}
	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.doRequest(ctx, http.MethodPost, c.collectionsPath(), reqBody, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("chroma returned no id for collection %q", c.collection)
	}

	logrus.WithFields(logrus.Fields{"collection": c.collection, "id": resp.ID}).Debug("Resolved Chroma collection")
	c.collectionID = resp.ID
	return c.collectionID, nil
}

func (c *ChromaStore) collectionRequest(ctx context.Context, op string, body, out interface{}) error {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("%s/%s/%s", c.collectionsPath(), url.PathEscape(id), op)
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

type chromaGetResponse struct {
	IDs       []string                 `json:"ids"`
	Documents []*string                `json:"documents"`
	Metadatas []map[string]interface{} `json:"metadatas"`
}

func (r chromaGetResponse) records() []entities.DescriptionRecord {
	records := make([]entities.DescriptionRecord, 0, len(r.IDs))
	for i, id := range r.IDs {
		rec := entities.DescriptionRecord{ID: id}
		if i < len(r.Documents) && r.Documents[i] != nil {
			rec.Document = *r.Documents[i]
		}
		if i < len(r.Metadatas) {
			if v, ok := r.Metadatas[i]["source"].(string); ok {
				rec.Source = v
			}
		}
		records = append(records, rec)
	}
	return records
}

// Get returns the stored records among ids.
func (c *ChromaStore) Get(ctx context.Context, ids []string) ([]entities.DescriptionRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	reqBody := map[string]interface{}{
		"ids":     ids,
		"include": []string{"documents", "metadatas"},
	}
	var resp chromaGetResponse
	if err := c.collectionRequest(ctx, "get", reqBody, &resp); err != nil {
		return nil, err
	}
	return resp.records(), nil
}

// Add embeds the document and adds the record. A server-side rejection of
// an existing id is reported as ports.ErrDuplicateID.
func (c *ChromaStore) Add(ctx context.Context, rec entities.DescriptionRecord) error {
	vec, err := c.embedder.Embed(ctx, rec.Document)
	if err != nil {
		return fmt.Errorf("embedding description: %w", err)
	}
	reqBody := map[string]interface{}{
		"ids":        []string{rec.ID},
		"documents":  []string{rec.Document},
		"metadatas":  []map[string]interface{}{{"source": rec.Source}},
		"embeddings": [][]float32{vec},
	}
	err = c.collectionRequest(ctx, "add", reqBody, nil)
	if isDuplicateResponse(err) {
		return ports.ErrDuplicateID
	}
	return err
}

// Query returns the n records nearest to text.
func (c *ChromaStore) Query(ctx context.Context, text string, n int) ([]entities.QueryResult, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if n <= 0 {
		n = 5
	}
	reqBody := map[string]interface{}{
		"query_embeddings": [][]float32{vec},
		"n_results":        n,
		"include":          []string{"documents", "distances"},
	}

	// One result row per query embedding.
	var resp struct {
		IDs       [][]string  `json:"ids"`
		Documents [][]*string `json:"documents"`
		Distances [][]float64 `json:"distances"`
	}
	if err := c.collectionRequest(ctx, "query", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]entities.QueryResult, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		res := entities.QueryResult{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) && resp.Documents[0][i] != nil {
			res.Document = *resp.Documents[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			res.Distance = resp.Distances[0][i]
		}
		results = append(results, res)
	}
	return results, nil
}

// All pages through the whole collection.
func (c *ChromaStore) All(ctx context.Context) ([]entities.DescriptionRecord, error) {
	var all []entities.DescriptionRecord
	for offset := 0; ; offset += chromaPageSize {
		reqBody := map[string]interface{}{
			"limit":   chromaPageSize,
			"offset":  offset,
			"include": []string{"documents", "metadatas"},
		}
		var resp chromaGetResponse
		if err := c.collectionRequest(ctx, "get", reqBody, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.records()...)
		if len(resp.IDs) < chromaPageSize {
			return all, nil
		}
	}
}

// Delete removes records by id.
func (c *ChromaStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.collectionRequest(ctx, "delete", map[string]interface{}{"ids": ids}, nil)
}

// chromaAPIError is a non-2xx answer from the server.
type chromaAPIError struct {
	Status int
	Body   string
}

func (e *chromaAPIError) Error() string {
	return fmt.Sprintf("chroma API error: %d %s", e.Status, e.Body)
}

func isDuplicateResponse(err error) bool {
	apiErr, ok := err.(*chromaAPIError)
	if !ok {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "already exists") || strings.Contains(body, "duplicate")
}

func (c *ChromaStore) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal chroma request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create chroma request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read chroma response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &chromaAPIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse chroma response: %w", err)
	}
	return nil
}
