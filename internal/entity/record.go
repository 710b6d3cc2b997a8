package entity

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceRecord is the persisted entity for one ingested invoice.
//
// NormalizedVendor is always the output of normalize.Name, never the raw OCR
// string; exact-match lookups rely on that.
type InvoiceRecord struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Filename     string `json:"filename"`
	SafeFilename string `json:"safe_filename"`
	FileURL      string `json:"file_url,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`

	// Denormalized index fields lifted from the payload for fast filtering.
	DocumentNumber   string  `json:"document_number"`
	Total            float64 `json:"total"`
	IssueDate        string  `json:"issue_date"`
	NormalizedVendor string  `json:"normalized_vendor"`

	Payload ExtractedInvoice `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileRef points at the stored upload backing a record. Optional.
type FileRef struct {
	URL  string
	Size int64
}
