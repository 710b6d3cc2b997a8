// Package extraction is the HTTP client for the external OCR/extraction
// service: the availability gate plus the single and batch parse calls. The
// service itself is opaque; this package owns turning transport failures,
// non-2xx statuses and response-shape mismatches into per-file outcomes.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
	"invoicehub/internal/retry"
)

const (
	healthPath = "/health"
	singlePath = "/parse-invoice"
	batchPath  = "/parse-multiple-invoices"
)

// Client talks to the extraction service. Construct once at process start and
// pass by reference; NewClient refuses to build an unconfigured client.
type Client struct {
	baseURL    string
	cfg        common.ExtractionConfig
	httpClient *http.Client
	logger     *slog.Logger

	// sleep is only swapped in tests.
	sleep retry.Sleeper
}

func NewClient(cfg common.ExtractionConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, common.NewAppError("CONFIG_ERROR", "extraction base URL is not set", common.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// CheckHealth probes GET /health with bounded retries. perAttempt is the
// per-attempt timeout budget: ~10s before batch work, ~30s before a single
// submission to absorb the service's cold start. Success is any 2xx.
func (c *Client) CheckHealth(ctx context.Context, perAttempt time.Duration) error {
	policy := retry.Policy{
		MaxAttempts:    c.cfg.HealthRetries,
		Delay:          c.cfg.HealthRetryDelay,
		AttemptTimeout: perAttempt,
	}

	err := retry.Do(ctx, policy, c.sleep, c.probe)
	if err != nil {
		return common.NewAppError("SERVICE_UNAVAILABLE", "health probe failed after retries", common.ErrUnavailable)
	}
	return nil
}

// Ping issues a single probe with no retries and no inter-attempt sleeps.
// Liveness endpoints use it so a dead backend answers within one timeout
// instead of walking the whole retry schedule.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := c.probe(ctx); err != nil {
		return common.NewAppError("SERVICE_UNAVAILABLE", "health probe failed", common.ErrUnavailable)
	}
	return nil
}

func (c *Client) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("extraction.health.probe_failed", "error", err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("extraction.health.bad_status", "status", resp.StatusCode)
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

// ParseInvoice submits one document to /parse-invoice and returns the
// extracted payload.
func (c *Client) ParseInvoice(ctx context.Context, file entity.UploadFile, timeout time.Duration) (*entity.ExtractedInvoice, time.Duration, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body, contentType, err := multipartBody("file", []entity.UploadFile{file})
	if err != nil {
		return nil, 0, err
	}

	raw, status, err := c.post(ctx, singlePath, body, contentType, timeout, reqID)
	if err != nil {
		return nil, time.Since(start), normalizeTransportError(err, status)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, time.Since(start), common.NewAppError("EXTRACTION_ERROR", "response is not JSON", common.ErrExtraction)
	}
	if err := validateShape(singleSchema, doc); err != nil {
		return nil, time.Since(start), common.NewAppError("EXTRACTION_ERROR", shapeErrorReason(err), common.ErrExtraction)
	}

	var parsed struct {
		Success   bool                    `json:"success"`
		Data      entity.ExtractedInvoice `json:"data"`
		Message   string                  `json:"message"`
		RequestID string                  `json:"request_id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, time.Since(start), common.NewAppError("EXTRACTION_ERROR", "decode response", common.ErrExtraction)
	}
	if !parsed.Success {
		reason := parsed.Message
		if reason == "" {
			reason = "service reported failure"
		}
		return nil, time.Since(start), common.NewAppError("EXTRACTION_ERROR", reason, common.ErrExtraction)
	}

	c.logger.Info("extraction.single.ok",
		"req_id", reqID,
		"filename", file.Filename,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &parsed.Data, time.Since(start), nil
}

// ParseBatch submits the files to /parse-multiple-invoices as one multipart
// request and returns one outcome per file, in input order. A wholesale
// failure (transport, timeout, non-2xx, bad shape) is returned as an error;
// the caller degrades it into synthetic failure outcomes for the whole batch.
func (c *Client) ParseBatch(ctx context.Context, files []entity.UploadFile, timeout time.Duration) ([]entity.FileOutcome, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body, contentType, err := multipartBody("files", files)
	if err != nil {
		return nil, err
	}

	raw, status, err := c.post(ctx, batchPath, body, contentType, timeout, reqID)
	if err != nil {
		return nil, normalizeTransportError(err, status)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, common.NewAppError("EXTRACTION_ERROR", "response is not JSON", common.ErrExtraction)
	}
	if err := validateShape(batchSchema, doc); err != nil {
		return nil, common.NewAppError("EXTRACTION_ERROR", shapeErrorReason(err), common.ErrExtraction)
	}

	var parsed struct {
		Success bool `json:"success"`
		Results []struct {
			Filename              string                   `json:"filename"`
			Success               bool                     `json:"success"`
			Data                  *entity.ExtractedInvoice `json:"data"`
			Error                 string                   `json:"error"`
			ProcessingTimeSeconds float64                  `json:"processing_time_seconds"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, common.NewAppError("EXTRACTION_ERROR", "decode response", common.ErrExtraction)
	}

	// Align results to input order: match by filename, fall back to index.
	byName := make(map[string]int, len(parsed.Results))
	for i, r := range parsed.Results {
		if _, dup := byName[r.Filename]; !dup {
			byName[r.Filename] = i
		}
	}

	outcomes := make([]entity.FileOutcome, len(files))
	for i, f := range files {
		idx, ok := byName[f.Filename]
		if !ok && i < len(parsed.Results) {
			idx, ok = i, true
		}
		if !ok {
			outcomes[i] = entity.FileOutcome{
				Filename: f.Filename,
				Error:    "no result returned for file",
			}
			continue
		}
		r := parsed.Results[idx]
		out := entity.FileOutcome{
			Filename:       f.Filename,
			Success:        r.Success,
			ProcessingTime: time.Duration(r.ProcessingTimeSeconds * float64(time.Second)),
		}
		if r.Success && r.Data != nil {
			out.Invoice = r.Data
		} else {
			out.Success = false
			out.Error = r.Error
			if out.Error == "" {
				out.Error = "service reported failure"
			}
		}
		outcomes[i] = out
	}

	c.logger.Info("extraction.batch.ok",
		"req_id", reqID,
		"files", len(files),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return outcomes, nil
}

func (c *Client) post(ctx context.Context, path string, body *bytes.Buffer, contentType string, timeout time.Duration, reqID string) ([]byte, int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Info("extraction.http.request", "req_id", reqID, "path", path, "bytes", body.Len())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("extraction.http.send_error", "req_id", reqID, "path", path, "error", err)
		return nil, 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("extraction.http.body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Info("extraction.http.response", "req_id", reqID, "path", path, "status", resp.StatusCode, "bytes", len(raw))

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

// normalizeTransportError folds timeouts, network errors and upstream
// statuses into the taxonomy, attaching a retry-worthiness hint where the
// status suggests a cold start.
func normalizeTransportError(err error, status int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewAppError("TIMEOUT", "extraction call exceeded its deadline", common.ErrTimeout)
	}
	if status != 0 {
		msg := fmt.Sprintf("extraction service returned status %d", status)
		if hint := common.RetryHint(status); hint != "" {
			msg += " (" + hint + ")"
		}
		return common.NewAppError("SERVICE_UNAVAILABLE", msg, common.ErrUnavailable)
	}
	return common.NewAppError("SERVICE_UNAVAILABLE", err.Error(), common.ErrUnavailable)
}

func multipartBody(field string, files []entity.UploadFile) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range files {
		part, err := w.CreateFormFile(field, f.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
