package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is an in-memory InvoiceRepository with per-method error injection.
type fakeRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*entity.InvoiceRecord

	failDocLookup  error
	failList       error
	failNameLookup error
	failWrite      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[uuid.UUID]*entity.InvoiceRecord{}}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.InvoiceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeRepo) GetByOwnerAndDocNumber(_ context.Context, ownerID uuid.UUID, docNumber string) (*entity.InvoiceRecord, error) {
	if f.failDocLookup != nil {
		return nil, f.failDocLookup
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.DocumentNumber == docNumber {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeRepo) GetByOwnerAndFilename(_ context.Context, ownerID uuid.UUID, filename string) (*entity.InvoiceRecord, error) {
	if f.failNameLookup != nil {
		return nil, f.failNameLookup
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.Filename == filename {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*entity.InvoiceRecord, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.InvoiceRecord
	for _, rec := range f.records {
		if rec.OwnerID == ownerID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, rec *entity.InvoiceRecord) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) Update(_ context.Context, rec *entity.InvoiceRecord) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func storedRecord(ownerID uuid.UUID, filename, docNumber string) *entity.InvoiceRecord {
	now := time.Now().UTC()
	return &entity.InvoiceRecord{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Filename:       filename,
		SafeFilename:   filename,
		DocumentNumber: docNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestResolverCaseInsensitiveDocNumber(t *testing.T) {
	repo := newFakeRepo()
	owner := uuid.New()
	rec := storedRecord(owner, "orig.pdf", "INV-100")
	require.NoError(t, repo.Create(context.Background(), rec))

	r := NewResolver(repo, discardLogger())
	match := r.FindExisting(context.Background(), owner, "renamed.pdf", "inv-100")

	require.NotNil(t, match.Record)
	assert.True(t, match.Definitive)
	assert.Equal(t, rec.ID, match.Record.ID)
}

func TestResolverFilenameFallback(t *testing.T) {
	repo := newFakeRepo()
	owner := uuid.New()
	rec := storedRecord(owner, "march.pdf", "INV-200")
	require.NoError(t, repo.Create(context.Background(), rec))

	r := NewResolver(repo, discardLogger())

	match := r.FindExisting(context.Background(), owner, "march.pdf", "")
	require.NotNil(t, match.Record)
	assert.Equal(t, rec.ID, match.Record.ID)

	// A doc number that matches nothing still falls through to filename.
	match = r.FindExisting(context.Background(), owner, "march.pdf", "INV-999")
	require.NotNil(t, match.Record)
	assert.Equal(t, rec.ID, match.Record.ID)
}

func TestResolverFailsOpenOnStorageErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.failDocLookup = errors.New("store down")
	repo.failList = errors.New("store down")
	repo.failNameLookup = errors.New("store down")

	r := NewResolver(repo, discardLogger())
	match := r.FindExisting(context.Background(), uuid.New(), "a.pdf", "INV-1")

	assert.Nil(t, match.Record)
	assert.False(t, match.Definitive, "lookup failures must be flagged as best-effort")
}

func TestResolverNoMatchIsDefinitive(t *testing.T) {
	r := NewResolver(newFakeRepo(), discardLogger())
	match := r.FindExisting(context.Background(), uuid.New(), "a.pdf", "INV-1")
	assert.Nil(t, match.Record)
	assert.True(t, match.Definitive)
}

// fakeParser records calls and lets tests fail selected batches.
type fakeParser struct {
	mu       sync.Mutex
	calls    int
	failNth  int // 1-based batch call to fail; 0 = never
	failWith error
}

func (p *fakeParser) ParseBatch(_ context.Context, files []entity.UploadFile, _ time.Duration) ([]entity.FileOutcome, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()

	if p.failNth != 0 && n == p.failNth {
		return nil, p.failWith
	}
	out := make([]entity.FileOutcome, len(files))
	for i, f := range files {
		out[i] = entity.FileOutcome{Filename: f.Filename, Success: true, Invoice: &entity.ExtractedInvoice{}}
	}
	return out, nil
}

func pdfFiles(names ...string) []entity.UploadFile {
	out := make([]entity.UploadFile, len(names))
	for i, n := range names {
		out[i] = entity.UploadFile{Filename: n, ContentType: "application/pdf", Size: 1024, Data: []byte("%PDF")}
	}
	return out
}

func testPipelineConfig() common.PipelineConfig {
	return common.PipelineConfig{BatchSize: 2, WaveConcurrency: 2, MaxFileSize: 5 * 1024 * 1024}
}

func TestOrchestratorPreservesBatchOrder(t *testing.T) {
	parser := &fakeParser{}
	o := NewOrchestrator(parser, testPipelineConfig(), time.Minute, discardLogger())

	report, err := o.ProcessAll(context.Background(), pdfFiles("1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf"))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 5)

	var names []string
	for _, out := range report.Outcomes {
		names = append(names, out.Filename)
	}
	assert.Equal(t, []string{"1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf"}, names)
	assert.Equal(t, 5, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, parser.calls)
}

func TestOrchestratorIsolatesBatchFailure(t *testing.T) {
	parser := &fakeParser{
		failNth:  2,
		failWith: common.NewAppError("TIMEOUT", "extraction call exceeded its deadline", common.ErrTimeout),
	}
	// Sequential waves so the second batch call is deterministic.
	cfg := testPipelineConfig()
	cfg.WaveConcurrency = 1
	o := NewOrchestrator(parser, cfg, time.Minute, discardLogger())

	report, err := o.ProcessAll(context.Background(), pdfFiles("1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf"))
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 5)

	assert.True(t, report.Outcomes[0].Success)
	assert.True(t, report.Outcomes[1].Success)
	assert.False(t, report.Outcomes[2].Success)
	assert.False(t, report.Outcomes[3].Success)
	assert.True(t, report.Outcomes[4].Success)

	assert.Contains(t, report.Outcomes[2].Error, "deadline")
	assert.Contains(t, report.Outcomes[3].Error, "deadline")
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
}

func TestOrchestratorRejectsInvalidSetBeforeNetworkIO(t *testing.T) {
	parser := &fakeParser{}
	o := NewOrchestrator(parser, testPipelineConfig(), time.Minute, discardLogger())

	files := pdfFiles("good.pdf", "also-good.pdf")
	files = append(files, entity.UploadFile{Filename: "notes.txt", ContentType: "text/plain", Size: 10})

	_, err := o.ProcessAll(context.Background(), files)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Zero(t, parser.calls, "no network call may happen for an invalid set")

	oversize := pdfFiles("big.pdf")
	oversize[0].Size = 6 * 1024 * 1024
	_, err = o.ProcessAll(context.Background(), oversize)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Zero(t, parser.calls)
}

func TestCommitterCreateThenUpdate(t *testing.T) {
	repo := newFakeRepo()
	c := NewCommitter(repo, NewResolver(repo, discardLogger()), discardLogger())
	owner := uuid.New()

	extracted := &entity.ExtractedInvoice{
		Meta:      entity.InvoiceMeta{DocumentNumber: "INV-100", IssueDate: "2026-03-01"},
		Vendor:    entity.Party{CompanyName: "ACME CORP."},
		Financial: entity.FinancialSummary{Total: 100, CurrencyCode: "USD"},
	}

	first := c.Commit(context.Background(), owner, "march.pdf", extracted, nil)
	require.Equal(t, entity.CommitCreated, first.Status)
	require.NotNil(t, first.Record)
	assert.Equal(t, "Acme Corp", first.Record.NormalizedVendor)

	extracted.Financial.Total = 120
	second := c.Commit(context.Background(), owner, "march-rescan.pdf", extracted, nil)
	require.Equal(t, entity.CommitUpdated, second.Status)
	require.NotNil(t, second.Record)

	assert.Len(t, repo.records, 1, "same document number must not create a second record")
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, first.Record.CreatedAt, second.Record.CreatedAt, "update preserves the original creation timestamp")
	assert.Equal(t, 120.0, second.Record.Total)
}

func TestCommitterRejectsMalformedPayload(t *testing.T) {
	repo := newFakeRepo()
	c := NewCommitter(repo, NewResolver(repo, discardLogger()), discardLogger())
	owner := uuid.New()

	bad := &entity.ExtractedInvoice{
		Meta:      entity.InvoiceMeta{DocumentNumber: "INV-1", IssueDate: "03/01/2026"},
		Vendor:    entity.Party{CompanyName: "Acme"},
		Financial: entity.FinancialSummary{CurrencyCode: "dollars"},
	}

	res := c.Commit(context.Background(), owner, "a.pdf", bad, nil)
	assert.Equal(t, entity.CommitFailed, res.Status)
	assert.Contains(t, res.Reason, "issue_date")
	assert.Contains(t, res.Reason, "currency_code")
	assert.Empty(t, repo.records, "malformed payloads must not reach storage")

	// Sparse but well formed data commits fine.
	ok := c.Commit(context.Background(), owner, "b.pdf", &entity.ExtractedInvoice{}, nil)
	assert.Equal(t, entity.CommitCreated, ok.Status)
}

func TestCommitterWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failWrite = errors.New("disk full")
	c := NewCommitter(repo, NewResolver(repo, discardLogger()), discardLogger())

	res := c.Commit(context.Background(), uuid.New(), "a.pdf", &entity.ExtractedInvoice{}, nil)
	assert.Equal(t, entity.CommitFailed, res.Status)
	assert.Contains(t, res.Reason, "disk full")
}

func TestCommitterStoresFileRef(t *testing.T) {
	repo := newFakeRepo()
	c := NewCommitter(repo, NewResolver(repo, discardLogger()), discardLogger())

	res := c.Commit(context.Background(), uuid.New(), "march scan (1).pdf",
		&entity.ExtractedInvoice{Vendor: entity.Party{CompanyName: "Acme"}},
		&entity.FileRef{URL: "https://files.test/march.pdf", Size: 2048})

	require.Equal(t, entity.CommitCreated, res.Status)
	assert.Equal(t, "https://files.test/march.pdf", res.Record.FileURL)
	assert.Equal(t, int64(2048), res.Record.FileSize)
	assert.Equal(t, "march_scan_1_.pdf", res.Record.SafeFilename)
}
