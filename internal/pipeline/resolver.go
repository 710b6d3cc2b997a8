package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"invoicehub/internal/common"
	"invoicehub/internal/repository"

	"invoicehub/internal/entity"
)

// Resolver decides whether an extracted record matches a previously stored
// one. A document number is the most stable identifier a vendor provides
// across reprocessing attempts; filename is a weak fallback because users
// rename files.
type Resolver struct {
	repo   repository.InvoiceRepository
	logger *slog.Logger
}

func NewResolver(repo repository.InvoiceRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Match is the resolver's answer. Definitive is false when a storage lookup
// failed along the way: the "no match" is then best-effort, not
// guaranteed-unique, and the caller may create a duplicate.
type Match struct {
	Record     *entity.InvoiceRecord
	Definitive bool
}

// FindExisting looks for a stored record for (ownerID, filename, docNumber).
// Priority: exact document-number match, then a case-insensitive scan of the
// owner's records, then exact filename match. Storage errors are swallowed
// and treated as "no match" so a flaky store degrades to duplicate records
// rather than blocked ingestion.
func (r *Resolver) FindExisting(ctx context.Context, ownerID uuid.UUID, filename, docNumber string) Match {
	definitive := true
	docNumber = strings.TrimSpace(docNumber)

	if docNumber != "" {
		rec, err := r.repo.GetByOwnerAndDocNumber(ctx, ownerID, docNumber)
		switch {
		case err == nil:
			return Match{Record: rec, Definitive: true}
		case !errors.Is(err, common.ErrNotFound):
			r.logger.Warn("resolver.doc_number_lookup_failed", "owner_id", ownerID, "error", err)
			definitive = false
		}

		// OCR casing is inconsistent; an index-backed exact match misses
		// "inv-100" vs "INV-100", so scan the owner's records once.
		recs, err := r.repo.ListByOwner(ctx, ownerID)
		if err != nil {
			r.logger.Warn("resolver.scan_failed", "owner_id", ownerID, "error", err)
			definitive = false
		} else {
			want := strings.ToLower(docNumber)
			for _, rec := range recs {
				if strings.ToLower(strings.TrimSpace(rec.DocumentNumber)) == want {
					return Match{Record: rec, Definitive: true}
				}
			}
		}
	}

	rec, err := r.repo.GetByOwnerAndFilename(ctx, ownerID, filename)
	switch {
	case err == nil:
		return Match{Record: rec, Definitive: true}
	case !errors.Is(err, common.ErrNotFound):
		r.logger.Warn("resolver.filename_lookup_failed", "owner_id", ownerID, "filename", filename, "error", err)
		definitive = false
	}

	return Match{Definitive: definitive}
}
