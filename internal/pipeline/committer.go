package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
	"invoicehub/internal/normalize"
	"invoicehub/internal/repository"
)

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Committer performs the create-or-update decision for each successfully
// extracted record. No cross-record transaction: a failed write never rolls
// back siblings committed earlier in the same run.
type Committer struct {
	repo     repository.InvoiceRepository
	resolver *Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewCommitter(repo repository.InvoiceRepository, resolver *Resolver, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{
		repo:     repo,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
}

// Commit stores one extracted invoice for the owner, updating a matching
// record in place (original creation timestamp preserved) or creating a new
// one. The persisted record is returned directly so callers never need a
// refresh read.
func (c *Committer) Commit(ctx context.Context, ownerID uuid.UUID, filename string, extracted *entity.ExtractedInvoice, fileRef *entity.FileRef) entity.CommitResult {
	if reason := validatePayload(filename, extracted); reason != "" {
		c.logger.Warn("committer.rejected", "owner_id", ownerID, "filename", filename, "reason", reason)
		return entity.CommitResult{Status: entity.CommitFailed, Reason: reason}
	}

	vendor := normalize.Name(extracted.Vendor.CompanyName)
	customer := normalize.Name(extracted.Customer.CompanyName)

	match := c.resolver.FindExisting(ctx, ownerID, filename, extracted.Meta.DocumentNumber)
	if !match.Definitive && match.Record == nil {
		c.logger.Warn("committer.best_effort_no_match", "owner_id", ownerID, "filename", filename)
	}

	now := c.now().UTC()
	rec := &entity.InvoiceRecord{
		OwnerID:          ownerID,
		Filename:         filename,
		SafeFilename:     safeFilename(filename),
		DocumentNumber:   strings.TrimSpace(extracted.Meta.DocumentNumber),
		Total:            extracted.Financial.Total,
		IssueDate:        extracted.Meta.IssueDate,
		NormalizedVendor: vendor,
		Payload:          *extracted,
		UpdatedAt:        now,
	}
	if fileRef != nil {
		rec.FileURL = fileRef.URL
		rec.FileSize = fileRef.Size
	}

	if match.Record != nil {
		rec.ID = match.Record.ID
		rec.CreatedAt = match.Record.CreatedAt
		if err := c.repo.Update(ctx, rec); err != nil {
			c.logger.Error("committer.update_failed", "id", rec.ID, "owner_id", ownerID, "error", err)
			return entity.CommitResult{Status: entity.CommitFailed, Reason: err.Error()}
		}
		c.logger.Info("committer.updated",
			"id", rec.ID,
			"owner_id", ownerID,
			"document_number", rec.DocumentNumber,
			"vendor", vendor,
			"customer", customer,
		)
		return entity.CommitResult{Status: entity.CommitUpdated, Record: rec}
	}

	rec.ID = uuid.New()
	rec.CreatedAt = now
	if err := c.repo.Create(ctx, rec); err != nil {
		c.logger.Error("committer.create_failed", "owner_id", ownerID, "filename", filename, "error", err)
		return entity.CommitResult{Status: entity.CommitFailed, Reason: err.Error()}
	}
	c.logger.Info("committer.created",
		"id", rec.ID,
		"owner_id", ownerID,
		"document_number", rec.DocumentNumber,
		"vendor", vendor,
		"customer", customer,
	)
	return entity.CommitResult{Status: entity.CommitCreated, Record: rec}
}

// validatePayload rejects clearly malformed extractions before any storage
// lookup. Sparse data is fine, garbage shapes are not.
func validatePayload(filename string, extracted *entity.ExtractedInvoice) string {
	v := common.NewValidator()
	v.Field("filename", filename, common.Required)
	v.Field("document_number", extracted.Meta.DocumentNumber, common.MaxLength(64))
	v.Field("vendor.company_name", extracted.Vendor.CompanyName, common.MaxLength(256))
	v.Field("issue_date", extracted.Meta.IssueDate, common.ISODate)
	v.Field("currency_code", extracted.Financial.CurrencyCode, common.CurrencyCode)
	return v.ErrorMessage()
}

// safeFilename derives a filesystem-safe variant of the original filename.
func safeFilename(name string) string {
	s := strings.TrimSpace(name)
	s = reUnsafeFilename.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		s = "document.pdf"
	}
	return s
}
