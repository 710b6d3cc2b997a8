package repository

import (
	"context"

	"github.com/google/uuid"

	"invoicehub/internal/entity"
)

// InvoiceRepository is the read/write contract the pipeline needs from the
// storage collaborator. Every operation takes a single logical record; the
// store provides per-record atomicity, nothing cross-record.
type InvoiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceRecord, error)
	GetByOwnerAndDocNumber(ctx context.Context, ownerID uuid.UUID, docNumber string) (*entity.InvoiceRecord, error)
	GetByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*entity.InvoiceRecord, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.InvoiceRecord, error)
	Create(ctx context.Context, rec *entity.InvoiceRecord) error
	Update(ctx context.Context, rec *entity.InvoiceRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}
