package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
)

const invoiceColumns = `id, owner_id, filename, safe_filename, file_url, file_size,
	document_number, total, issue_date, normalized_vendor, payload, created_at, updated_at`

type postgresInvoiceRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresInvoiceRepository returns an InvoiceRepository backed by a pgx
// pool. The invoices table is expected to exist (see migrations in db/).
func NewPostgresInvoiceRepository(pool *pgxpool.Pool, logger *slog.Logger) InvoiceRepository {
	return &postgresInvoiceRepo{pool: pool, logger: logger}
}

func (r *postgresInvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

func (r *postgresInvoiceRepo) GetByOwnerAndDocNumber(ctx context.Context, ownerID uuid.UUID, docNumber string) (*entity.InvoiceRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = $1 AND document_number = $2`,
		ownerID, docNumber)
	return scanInvoice(row)
}

func (r *postgresInvoiceRepo) GetByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*entity.InvoiceRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = $1 AND filename = $2`,
		ownerID, filename)
	return scanInvoice(row)
}

func (r *postgresInvoiceRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.InvoiceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		r.logger.Error("failed to list invoices", "owner_id", ownerID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *postgresInvoiceRepo) Create(ctx context.Context, rec *entity.InvoiceRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.OwnerID, rec.Filename, rec.SafeFilename, rec.FileURL, rec.FileSize,
		rec.DocumentNumber, rec.Total, rec.IssueDate, rec.NormalizedVendor, payload,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create invoice", "owner_id", rec.OwnerID, "filename", rec.Filename, "error", err)
	}
	return err
}

func (r *postgresInvoiceRepo) Update(ctx context.Context, rec *entity.InvoiceRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET
			filename = $2, safe_filename = $3, file_url = $4, file_size = $5,
			document_number = $6, total = $7, issue_date = $8, normalized_vendor = $9,
			payload = $10, updated_at = $11
		WHERE id = $1`,
		rec.ID, rec.Filename, rec.SafeFilename, rec.FileURL, rec.FileSize,
		rec.DocumentNumber, rec.Total, rec.IssueDate, rec.NormalizedVendor, payload,
		rec.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to update invoice", "id", rec.ID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *postgresInvoiceRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresInvoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete invoice", "id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	var payload []byte
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Filename, &rec.SafeFilename, &rec.FileURL, &rec.FileSize,
		&rec.DocumentNumber, &rec.Total, &rec.IssueDate, &rec.NormalizedVendor, &payload,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
