// Package ingest ties the pipeline together for the inbound surface:
// availability gate, batch orchestration, then the create-or-update commit
// for every extracted record.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"invoicehub/internal/common"
	"invoicehub/internal/entity"
	"invoicehub/internal/pipeline"
)

// ExtractionClient is the slice of the extraction client this service uses.
type ExtractionClient interface {
	CheckHealth(ctx context.Context, perAttempt time.Duration) error
	ParseInvoice(ctx context.Context, file entity.UploadFile, timeout time.Duration) (*entity.ExtractedInvoice, time.Duration, error)
}

// RunStatus distinguishes "nothing was attempted" from partial failure from
// full success; the caller's retry affordance depends on it.
type RunStatus string

const (
	RunRejected RunStatus = "rejected" // precondition failed, no work started
	RunPartial  RunStatus = "partial"  // some files failed
	RunOK       RunStatus = "ok"       // every file extracted and committed
)

// FileResult is the per-file line of the final report.
type FileResult struct {
	Filename string              `json:"filename"`
	Success  bool                `json:"success"`
	Error    string              `json:"error,omitempty"`
	Commit   *entity.CommitResult `json:"commit,omitempty"`
}

// Report is the aggregate answer for one ingestion run.
type Report struct {
	Status    RunStatus    `json:"status"`
	Results   []FileResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
}

// Service handles ingestion business logic.
type Service struct {
	client       ExtractionClient
	orchestrator *pipeline.Orchestrator
	committer    *pipeline.Committer
	extCfg       common.ExtractionConfig
	pipeCfg      common.PipelineConfig
	logger       *slog.Logger
}

// NewService creates a new ingest service.
func NewService(client ExtractionClient, orch *pipeline.Orchestrator, committer *pipeline.Committer,
	extCfg common.ExtractionConfig, pipeCfg common.PipelineConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:       client,
		orchestrator: orch,
		committer:    committer,
		extCfg:       extCfg,
		pipeCfg:      pipeCfg,
		logger:       logger,
	}
}

// ProcessBatch runs the full pipeline for a set of uploaded files. A
// precondition failure (validation, unreachable service) returns the error
// and a RunRejected report so the caller can keep the user's selection and
// offer resubmission; after work starts, failures only ever degrade to
// per-file results.
func (s *Service) ProcessBatch(ctx context.Context, ownerID uuid.UUID, files []entity.UploadFile) (*Report, error) {
	// An invalid submission must be refused before any network call,
	// including the health probe.
	if err := pipeline.ValidateFiles(files, s.pipeCfg.MaxFileSize); err != nil {
		s.logger.Error("ingest.rejected", "owner_id", ownerID, "error", err)
		return &Report{Status: RunRejected}, err
	}

	// Fail fast on an unreachable backend before consuming upload time.
	if err := s.client.CheckHealth(ctx, s.extCfg.HealthTimeoutBatch); err != nil {
		s.logger.Error("ingest.gate_failed", "owner_id", ownerID, "error", err)
		return &Report{Status: RunRejected}, err
	}

	batch, err := s.orchestrator.ProcessAll(ctx, files)
	if err != nil {
		s.logger.Error("ingest.rejected", "owner_id", ownerID, "error", err)
		return &Report{Status: RunRejected}, err
	}

	report := &Report{Status: RunOK}
	for i := range batch.Outcomes {
		report.addOutcome(ctx, s.committer, ownerID, &batch.Outcomes[i], nil)
	}
	report.finish()

	s.logger.Info("ingest.batch_complete",
		"owner_id", ownerID,
		"files", len(files),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"created", report.Created,
		"updated", report.Updated,
	)
	return report, nil
}

// ProcessSingle runs one document through the single-submission path, which
// uses the longer health budget to absorb the extraction service's cold
// start.
func (s *Service) ProcessSingle(ctx context.Context, ownerID uuid.UUID, file entity.UploadFile, fileRef *entity.FileRef) (*Report, error) {
	if err := pipeline.ValidateFiles([]entity.UploadFile{file}, s.pipeCfg.MaxFileSize); err != nil {
		return &Report{Status: RunRejected}, err
	}
	if err := s.client.CheckHealth(ctx, s.extCfg.HealthTimeoutSolo); err != nil {
		s.logger.Error("ingest.gate_failed", "owner_id", ownerID, "error", err)
		return &Report{Status: RunRejected}, err
	}

	report := &Report{Status: RunOK}
	invoice, elapsed, err := s.client.ParseInvoice(ctx, file, s.extCfg.PerFileTimeout)
	outcome := entity.FileOutcome{Filename: file.Filename, ProcessingTime: elapsed}
	if err != nil {
		outcome.Error = err.Error()
	} else {
		outcome.Success = true
		outcome.Invoice = invoice
	}
	report.addOutcome(ctx, s.committer, ownerID, &outcome, fileRef)
	report.finish()
	return report, nil
}

func (r *Report) addOutcome(ctx context.Context, committer *pipeline.Committer, ownerID uuid.UUID, out *entity.FileOutcome, fileRef *entity.FileRef) {
	res := FileResult{Filename: out.Filename, Success: out.Success, Error: out.Error}
	if out.Success {
		commit := committer.Commit(ctx, ownerID, out.Filename, out.Invoice, fileRef)
		res.Commit = &commit
		switch commit.Status {
		case entity.CommitCreated:
			r.Created++
		case entity.CommitUpdated:
			r.Updated++
		case entity.CommitFailed:
			res.Success = false
			res.Error = commit.Reason
		}
	}
	if res.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

func (r *Report) finish() {
	if r.Failed > 0 {
		r.Status = RunPartial
	}
}
