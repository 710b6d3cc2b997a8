package entity

import "time"

// FileOutcome is the result of processing one file within a batch. Created
// once when a batch response is parsed (or when a batch call fails wholesale)
// and never mutated afterwards.
type FileOutcome struct {
	Filename       string            `json:"filename"`
	Success        bool              `json:"success"`
	Invoice        *ExtractedInvoice `json:"invoice,omitempty"`
	Error          string            `json:"error,omitempty"`
	ProcessingTime time.Duration     `json:"-"`
}

// BatchReport aggregates FileOutcome values for one ingestion run, in the
// order batches were scheduled.
type BatchReport struct {
	Outcomes  []FileOutcome `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	TotalTime time.Duration `json:"-"`
	AvgTime   time.Duration `json:"-"`
}

// CommitStatus is the per-record result of a create-or-update.
type CommitStatus string

const (
	CommitCreated CommitStatus = "created"
	CommitUpdated CommitStatus = "updated"
	CommitFailed  CommitStatus = "failed"
)

// CommitResult reports one record's create-or-update decision. Record is the
// persisted row (fresh from the write, no re-read needed by callers).
type CommitResult struct {
	Status CommitStatus   `json:"status"`
	Record *InvoiceRecord `json:"record,omitempty"`
	Reason string         `json:"reason,omitempty"`
}
