package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicehub/internal/common"
	"invoicehub/internal/extraction"
	"invoicehub/internal/pipeline"
	"invoicehub/internal/repository"
	"invoicehub/internal/services/ingest"
)

// fakeExtractionBackend emulates the external service: healthy, and every
// submitted file parses successfully.
func fakeExtractionBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/parse-multiple-invoices", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		var results []map[string]any
		for _, fh := range r.MultipartForm.File["files"] {
			results = append(results, map[string]any{
				"filename": fh.Filename,
				"success":  true,
				"data": map[string]any{
					"invoice_metadata":  map[string]any{"document_number": "DOC-" + fh.Filename},
					"vendor":            map[string]any{"company_name": "Acme Corp."},
					"financial_summary": map[string]any{"total": 10.0, "currency_code": "USD"},
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "results": results})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) (*gin.Engine, repository.InvoiceRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := fakeExtractionBackend(t)
	extCfg := common.ExtractionConfig{
		BaseURL:            backend.URL,
		HealthTimeoutBatch: 2 * time.Second,
		HealthTimeoutSolo:  2 * time.Second,
		HealthRetries:      1,
		PerFileTimeout:     10 * time.Second,
	}
	client, err := extraction.NewClient(extCfg, logger)
	require.NoError(t, err)

	repo, conn, err := repository.OpenSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pipeCfg := common.PipelineConfig{BatchSize: 3, WaveConcurrency: 2, MaxFileSize: 5 * 1024 * 1024}
	orch := pipeline.NewOrchestrator(client, pipeCfg, extCfg.PerFileTimeout, logger)
	committer := pipeline.NewCommitter(repo, pipeline.NewResolver(repo, logger), logger)
	svc := ingest.NewService(client, orch, committer, extCfg, pipeCfg, logger)

	r := gin.New()
	New(svc, repo, client, logger).Routes(r)
	return r, repo
}

func multipartUpload(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, name := range names {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
		h.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestProcessBatchEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)
	owner := uuid.New()

	body, contentType := multipartUpload(t, "files", "a.pdf", "b.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/process", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", owner.String())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report ingest.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, ingest.RunOK, report.Status)
	assert.Equal(t, 2, report.Created)

	recs, err := repo.ListByOwner(req.Context(), owner)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "Acme Corp", r.NormalizedVendor)
	}
}

func TestProcessBatchRequiresOwnerHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "files", "a.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/process", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	owner := uuid.New()

	body, contentType := multipartUpload(t, "files", "a.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/invoices/process", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", owner.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.Header.Set("X-Owner-ID", owner.String())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Invoices []struct {
			ID string `json:"id"`
		} `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Invoices, 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/invoices/"+listed.Invoices[0].ID, nil)
	req.Header.Set("X-Owner-ID", owner.String())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/invoices/"+listed.Invoices[0].ID, nil)
	req.Header.Set("X-Owner-ID", owner.String())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthzEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Extraction string `json:"extraction"`
		Storage    string `json:"storage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Extraction)
	assert.Equal(t, "ok", body.Storage)
}
