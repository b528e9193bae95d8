package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/cortexbase/cortex/internal/config"
	"github.com/cortexbase/cortex/internal/embedding"
	"github.com/cortexbase/cortex/internal/extract"
	"github.com/cortexbase/cortex/internal/generate"
	"github.com/cortexbase/cortex/internal/ingest"
	"github.com/cortexbase/cortex/internal/models"
	"github.com/cortexbase/cortex/internal/retrieval"
	"github.com/cortexbase/cortex/internal/storage"
	"github.com/cortexbase/cortex/internal/vector"
)

type stubGenerator struct {
	answer string
	prompt string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, nil
}

func newTestServer(t *testing.T, generator *stubGenerator) *Server {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "cortex.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx, err := vector.OpenFlatIndex(32, "")
	if err != nil {
		t.Fatalf("OpenFlatIndex: %v", err)
	}
	embedder := embedding.NewMockEmbedder(32)
	chunker, err := ingest.NewChunker(800, 200)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	ingestor := ingest.NewIngestor(store, embedder, idx, chunker)
	fileIngestor := ingest.NewFileIngestor(ingestor, extract.NewExtractor(), nil, nil, nil)
	retriever := retrieval.NewRetriever(store, embedder, idx)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "cortex.db")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "vectors.idx")
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")
	cfg.Embedding.Dimensions = 32

	var gen generate.Generator
	if generator != nil {
		gen = generator
	}
	return NewServer(ingestor, fileIngestor, retriever, gen, store, idx, cfg, zap.NewNop())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestTextEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"text":     "the quick brown fox",
		"filename": "fox.txt",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.DocID == "" || result.ChunkCount != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	// The document is readable back through the API.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+result.DocID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get document status = %d", rec.Code)
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Filename != "fox.txt" {
		t.Errorf("filename = %q", doc.Filename)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+result.DocID+"/chunks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get chunks status = %d", rec.Code)
	}
	var chunks []*models.Chunk
	if err := json.Unmarshal(rec.Body.Bytes(), &chunks); err != nil {
		t.Fatalf("decode chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "the quick brown fox" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestIngestTextValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"text": "no filename here",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing filename status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec2.Code)
	}
}

func TestListDocumentsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/documents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var docs []*models.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty list, got %d", len(docs))
	}

	for _, name := range []string{"a.txt", "b.txt"} {
		rec = doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
			"text":     "content of " + name,
			"filename": name,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("ingest %s status = %d", name, rec.Code)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d", len(docs))
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/v1/documents/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestQueryEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"text":     "jupiter is the largest planet",
		"filename": "planets.txt",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/query", map[string]interface{}{
		"query": "jupiter is the largest planet",
		"top_k": 3,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(resp.Sources))
	}
	if resp.Sources[0].Filename != "planets.txt" {
		t.Errorf("source filename = %q", resp.Sources[0].Filename)
	}
	// No generator configured: sources only, no answer.
	if resp.Answer != "" {
		t.Errorf("answer should be empty without a generator, got %q", resp.Answer)
	}
}

func TestQueryEndpointEmptyCorpus(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/query", map[string]interface{}{
		"q": "anything at all",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "No relevant content found." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %d, want 0", len(resp.Sources))
	}
}

func TestQueryEndpointWithGenerator(t *testing.T) {
	gen := &stubGenerator{answer: "Jupiter."}
	srv := newTestServer(t, gen)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"text":     "jupiter is the largest planet",
		"filename": "planets.txt",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/query", map[string]interface{}{
		"query": "which planet is largest?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d", rec.Code)
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Jupiter." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if !strings.Contains(gen.prompt, "jupiter is the largest planet") {
		t.Errorf("prompt missing retrieved context:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "which planet is largest?") {
		t.Errorf("prompt missing question:\n%s", gen.prompt)
	}
}

func TestQueryValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/query", map[string]interface{}{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", rec.Code)
	}
}

func TestUploadEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("uploaded file content")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ChunkCount != 1 {
		t.Errorf("chunk count = %d, want 1", result.ChunkCount)
	}
}

func TestUploadMissingFile(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/v1/upload", map[string]string{"not": "a form"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]interface{}{
		"text":     "content for the status counters",
		"filename": "c.txt",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status["documents"].(float64) != 1 {
		t.Errorf("documents = %v", status["documents"])
	}
	if status["chunks"].(float64) != 1 {
		t.Errorf("chunks = %v", status["chunks"])
	}
	if status["vector_index_size"].(float64) != 1 {
		t.Errorf("vector_index_size = %v", status["vector_index_size"])
	}
}
