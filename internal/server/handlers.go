package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
	"invoicehub/internal/repository"
	"invoicehub/internal/services/ingest"
)

// healthChecker is the single-shot probe the liveness endpoint needs. It
// must not inherit the gate's retry schedule: a dead backend has to answer
// within one timeout, not after walking every retry delay.
type healthChecker interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// Server exposes the ingestion pipeline and record access over HTTP for the
// dashboard. Authentication lives in front of this service; the owner is
// taken from the X-Owner-ID header set by that layer.
type Server struct {
	ingestSvc *ingest.Service
	repo      repository.InvoiceRepository
	checker   healthChecker
	logger    *slog.Logger
}

func New(ingestSvc *ingest.Service, repo repository.InvoiceRepository, checker healthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ingestSvc: ingestSvc, repo: repo, checker: checker, logger: logger}
}

func (s *Server) ProcessBatch(c *gin.Context) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required: " + err.Error()})
		return
	}
	files, err := readUploads(form.File["files"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files submitted"})
		return
	}

	report, err := s.ingestSvc.ProcessBatch(c.Request.Context(), ownerID, files)
	if err != nil {
		s.renderRunError(c, report, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) ProcessSingle(c *gin.Context) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required: " + err.Error()})
		return
	}
	files, err := readUploads([]*multipart.FileHeader{header})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.ingestSvc.ProcessSingle(c.Request.Context(), ownerID, files[0], nil)
	if err != nil {
		s.renderRunError(c, report, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) ListInvoices(c *gin.Context) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return
	}

	recs, err := s.repo.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		s.logger.Error("server.list_failed",
			"owner_id", ownerID,
			"request_id", common.RequestIDFromContext(c.Request.Context()),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invoices"})
		return
	}
	if recs == nil {
		recs = []*entity.InvoiceRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"invoices": recs})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if _, ok := s.ownerID(c); !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	if err := s.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		s.logger.Error("server.delete_failed",
			"id", id,
			"request_id", common.RequestIDFromContext(c.Request.Context()),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete invoice"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) Healthz(c *gin.Context) {
	status := http.StatusOK

	extraction := "ok"
	if err := s.checker.Ping(c.Request.Context(), 5*time.Second); err != nil {
		extraction = "unavailable"
		status = http.StatusServiceUnavailable
	}

	storage := "ok"
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(pingCtx); err != nil {
		storage = "unavailable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "extraction": extraction, "storage": storage})
}

func (s *Server) ownerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := common.OwnerIDFromContext(c.Request.Context())
	if !ok {
		// RequireOwner rejects before a handler runs, this is a wiring bug.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "owner missing from request context"})
		return uuid.Nil, false
	}
	return id, true
}

// renderRunError maps precondition failures to HTTP statuses; anything else
// already degraded to per-file results inside the report.
func (s *Server) renderRunError(c *gin.Context, report *ingest.Report, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnavailable), errors.Is(err, common.ErrTimeout):
		status = http.StatusServiceUnavailable
	case errors.Is(err, common.ErrConfiguration):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error(), "report": report})
}

func readUploads(headers []*multipart.FileHeader) ([]entity.UploadFile, error) {
	var out []entity.UploadFile
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, entity.UploadFile{
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Data:        data,
		})
	}
	return out, nil
}
