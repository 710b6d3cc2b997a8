package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  filename TEXT NOT NULL,
  safe_filename TEXT NOT NULL,
  file_url TEXT NOT NULL DEFAULT '',
  file_size INTEGER NOT NULL DEFAULT 0,
  document_number TEXT NOT NULL DEFAULT '',
  total REAL NOT NULL DEFAULT 0,
  issue_date TEXT NOT NULL DEFAULT '',
  normalized_vendor TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_owner_doc ON invoices(owner_id, document_number);
CREATE INDEX IF NOT EXISTS idx_invoices_owner_filename ON invoices(owner_id, filename);
`

type sqliteInvoiceRepo struct {
	conn   *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (and initializes) the local SQLite store. Used in local
// mode and in tests; the contract is identical to the postgres repository.
func OpenSQLite(path string, logger *slog.Logger) (InvoiceRepository, *sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return &sqliteInvoiceRepo{conn: conn, logger: logger}, conn, nil
}

func (r *sqliteInvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.InvoiceRecord, error) {
	row := r.conn.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id.String())
	return scanSQLiteInvoice(row)
}

func (r *sqliteInvoiceRepo) GetByOwnerAndDocNumber(ctx context.Context, ownerID uuid.UUID, docNumber string) (*entity.InvoiceRecord, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = ? AND document_number = ?`,
		ownerID.String(), docNumber)
	return scanSQLiteInvoice(row)
}

func (r *sqliteInvoiceRepo) GetByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*entity.InvoiceRecord, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = ? AND filename = ?`,
		ownerID.String(), filename)
	return scanSQLiteInvoice(row)
}

func (r *sqliteInvoiceRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.InvoiceRecord, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID.String())
	if err != nil {
		r.logger.Error("failed to list invoices", "owner_id", ownerID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanSQLiteInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *sqliteInvoiceRepo) Create(ctx context.Context, rec *entity.InvoiceRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	_, err = r.conn.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.OwnerID.String(), rec.Filename, rec.SafeFilename, rec.FileURL, rec.FileSize,
		rec.DocumentNumber, rec.Total, rec.IssueDate, rec.NormalizedVendor, string(payload),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		r.logger.Error("failed to create invoice", "owner_id", rec.OwnerID, "filename", rec.Filename, "error", err)
	}
	return err
}

func (r *sqliteInvoiceRepo) Update(ctx context.Context, rec *entity.InvoiceRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	res, err := r.conn.ExecContext(ctx, `
		UPDATE invoices SET
			filename = ?, safe_filename = ?, file_url = ?, file_size = ?,
			document_number = ?, total = ?, issue_date = ?, normalized_vendor = ?,
			payload = ?, updated_at = ?
		WHERE id = ?`,
		rec.Filename, rec.SafeFilename, rec.FileURL, rec.FileSize,
		rec.DocumentNumber, rec.Total, rec.IssueDate, rec.NormalizedVendor,
		string(payload), rec.UpdatedAt.UTC().Format(time.RFC3339Nano), rec.ID.String())
	if err != nil {
		r.logger.Error("failed to update invoice", "id", rec.ID, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *sqliteInvoiceRepo) Ping(ctx context.Context) error {
	return r.conn.PingContext(ctx)
}

func (r *sqliteInvoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id.String())
	if err != nil {
		r.logger.Error("failed to delete invoice", "id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanSQLiteInvoice(row rowScanner) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	var id, ownerID, payload, createdAt, updatedAt string
	err := row.Scan(
		&id, &ownerID, &rec.Filename, &rec.SafeFilename, &rec.FileURL, &rec.FileSize,
		&rec.DocumentNumber, &rec.Total, &rec.IssueDate, &rec.NormalizedVendor, &payload,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if rec.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
