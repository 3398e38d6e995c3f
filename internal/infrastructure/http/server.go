// Package http provides the HTTP server infrastructure.
// Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/shotfind/internal/domain/entities"
	"github.com/0xcro3dile/shotfind/internal/domain/usecases"
)

// maxResults bounds the n parameter of a search.
const maxResults = 100

// Server is the HTTP server for the search API and page.
type Server struct {
	queryUseCase *usecases.QueryUseCase
	addr         string
}

// NewServer creates a new HTTP server.
func NewServer(queryUC *usecases.QueryUseCase, addr string) *Server {
	return &Server{
		queryUseCase: queryUC,
		addr:         addr,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/health", s.handleHealth)

	return corsMiddleware(loggingMiddleware(mux))
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. It returns once in-flight requests
// have finished or the shutdown timeout has passed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownDone <- server.Shutdown(shutdownCtx)
	}()

	logrus.WithField("addr", ln.Addr().String()).Info("Search server starting")

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownDone; err != nil {
		logrus.WithError(err).Warn("Search server did not shut down cleanly")
	}
	return nil
}

// handleIndex renders a minimal search page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>shotfind</title>
    <style>
        body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
        input { width: 80%; padding: .4rem; }
        li { margin: .6rem 0; }
        .id { font-weight: bold; }
        .dist { color: #888; font-size: .8rem; }
    </style>
</head>
<body>
    <h1>shotfind</h1>
    <form onsubmit="search(event)">
        <input type="text" id="q" placeholder="Describe the screenshot you are looking for..." autocomplete="off" required>
        <button type="submit">Search</button>
    </form>
    <ol id="results"></ol>
    <script>
        async function search(e) {
            e.preventDefault();
            const q = document.getElementById('q').value.trim();
            const list = document.getElementById('results');
            list.innerHTML = '';
            if (!q) return;
            const resp = await fetch('/api/search?q=' + encodeURIComponent(q));
            const data = await resp.json();
            if (!resp.ok) {
                list.textContent = data.error || 'Search failed';
                return;
            }
            for (const r of data.results) {
                const li = document.createElement('li');
                const id = document.createElement('div');
                id.className = 'id';
                id.textContent = r.id;
                const desc = document.createElement('div');
                desc.textContent = r.description;
                const dist = document.createElement('div');
                dist.className = 'dist';
                dist.textContent = 'distance ' + r.distance.toFixed(4);
                li.append(id, desc, dist);
                list.appendChild(li);
            }
        }
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

type searchResult struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Distance    float64 `json:"distance"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

// handleSearch answers GET /api/search?q=...&n=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxResults {
			writeError(w, http.StatusBadRequest, "n must be between 1 and 100")
			return
		}
		n = v
	}

	results, err := s.queryUseCase.SearchN(r.Context(), query, n)
	if err != nil {
		logrus.WithError(err).WithField("query", query).Error("Search failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: toSearchResults(results)})
}

func toSearchResults(results []entities.QueryResult) []searchResult {
	out := make([]searchResult, 0, len(results))
	for _, r := range results {
		out = append(out, searchResult{ID: r.ID, Description: r.Document, Distance: r.Distance})
	}
	return out
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("HTTP request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
