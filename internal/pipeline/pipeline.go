package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"phieu/internal/amis"
	"phieu/internal/assets"
	"phieu/internal/docx"
	"phieu/internal/logging"
)

// Stage names one phase of a run.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageAuthenticating Stage = "authenticating"
	StageSearching      Stage = "searching"
	StageFetching       Stage = "fetching"
	StageAssembling     Stage = "assembling"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// SessionClient is the slice of the AMIS client the orchestrator drives.
type SessionClient interface {
	Login(ctx context.Context, creds amis.Credentials) (*amis.Session, error)
	SearchRecord(ctx context.Context, sess *amis.Session, recordID string) (*amis.RecordHandle, error)
}

// AssetFetcher retrieves the template and image bundle for a record.
type AssetFetcher interface {
	Fetch(ctx context.Context, sess *amis.Session, record *amis.RecordHandle) (*assets.Bundle, error)
}

// DocumentAssembler merges a bundle into the final artifact.
type DocumentAssembler interface {
	Assemble(template []byte, images []assets.Asset, signature docx.SignatureImage) (*docx.AssembledDocument, []docx.Warning, error)
}

// RunRecorder persists run history. Recorder failures are logged, never
// fatal; the artifact matters more than the ledger.
type RunRecorder interface {
	Create(ctx context.Context, runID, recordID string, startedAt time.Time) error
	RecordStage(ctx context.Context, runID, stage string) error
	FinishSuccess(ctx context.Context, runID, outputName string, warnings int) error
	FinishFailure(ctx context.Context, runID, stage, message string) error
}

// Request describes one run.
type Request struct {
	RecordID    string
	Credentials amis.Credentials
	Signature   docx.SignatureImage
}

// Result is a completed run.
type Result struct {
	RunID      string
	RecordID   string
	Artifact   *docx.AssembledDocument
	OutputName string
	Warnings   []docx.Warning
}

// Pipeline wires the session client, fetcher and assembler into a single
// sequenced run.
type Pipeline struct {
	client    SessionClient
	fetcher   AssetFetcher
	assembler DocumentAssembler
	recorder  RunRecorder
	logger    *slog.Logger
	clock     func() time.Time
}

// PipelineOption customizes construction.
type PipelineOption func(*Pipeline)

// WithRecorder attaches a run-history recorder.
func WithRecorder(recorder RunRecorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = recorder }
}

// WithClock overrides the wall clock used for output-name timestamps.
func WithClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New constructs a pipeline.
func New(client SessionClient, fetcher AssetFetcher, assembler DocumentAssembler, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client:    client,
		fetcher:   fetcher,
		assembler: assembler,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one retrieval-and-assembly run end to end. The context is
// checked at every stage transition; component errors surface wrapped in a
// *StageError carrying the stage they occurred at.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithRecordID(ctx, req.RecordID)
	log := p.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldRecordID, req.RecordID),
	)

	p.recordCreate(ctx, runID, req.RecordID, log)

	result, err := p.run(ctx, runID, req, log)
	if err != nil {
		var stageErr *StageError
		stage := StageFailed
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		log.Error("run failed", logging.String(logging.FieldStage, string(stage)), logging.Error(err))
		p.recordFailure(ctx, runID, stage, err, log)
		return nil, err
	}

	log.Info("run complete",
		logging.String("output", result.OutputName),
		logging.Int("image_blocks", result.Artifact.ImageBlocks),
		logging.Int("warnings", len(result.Warnings)),
	)
	p.recordSuccess(ctx, runID, result, log)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, req Request, log *slog.Logger) (*Result, error) {
	if err := p.enterStage(ctx, runID, StageAuthenticating, log); err != nil {
		return nil, err
	}
	sess, err := p.client.Login(ctx, req.Credentials)
	if err != nil {
		return nil, stageFailure(StageAuthenticating, err)
	}
	defer sess.Close()

	if err := p.enterStage(ctx, runID, StageSearching, log); err != nil {
		return nil, err
	}
	record, err := p.client.SearchRecord(ctx, sess, req.RecordID)
	if errors.Is(err, amis.ErrSessionExpired) {
		// One re-login, then the search is retried exactly once.
		log.Warn("session expired, re-authenticating")
		sess.Close()
		sess, err = p.client.Login(ctx, req.Credentials)
		if err != nil {
			return nil, stageFailure(StageSearching, err)
		}
		defer sess.Close()
		record, err = p.client.SearchRecord(ctx, sess, req.RecordID)
	}
	if err != nil {
		return nil, stageFailure(StageSearching, err)
	}

	if err := p.enterStage(ctx, runID, StageFetching, log); err != nil {
		return nil, err
	}
	bundle, err := p.fetcher.Fetch(ctx, sess, record)
	if err != nil {
		return nil, stageFailure(StageFetching, err)
	}

	if err := p.enterStage(ctx, runID, StageAssembling, log); err != nil {
		return nil, err
	}
	artifact, warnings, err := p.assembler.Assemble(bundle.Template.Content, bundle.Images, req.Signature)
	if err != nil {
		return nil, stageFailure(StageAssembling, err)
	}

	return &Result{
		RunID:      runID,
		RecordID:   req.RecordID,
		Artifact:   artifact,
		OutputName: OutputName(req.RecordID, p.clock()),
		Warnings:   warnings,
	}, nil
}

// enterStage enforces cancellation at the transition and records the new
// stage in the run history.
func (p *Pipeline) enterStage(ctx context.Context, runID string, stage Stage, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return stageFailure(stage, err)
	}
	log.Debug("stage transition", logging.String(logging.FieldStage, string(stage)))
	if p.recorder != nil {
		if err := p.recorder.RecordStage(ctx, runID, string(stage)); err != nil {
			log.Warn("record stage", logging.Error(err))
		}
	}
	return nil
}

func (p *Pipeline) recordCreate(ctx context.Context, runID, recordID string, log *slog.Logger) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Create(ctx, runID, recordID, p.clock()); err != nil {
		log.Warn("record run start", logging.Error(err))
	}
}

func (p *Pipeline) recordSuccess(ctx context.Context, runID string, result *Result, log *slog.Logger) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.FinishSuccess(ctx, runID, result.OutputName, len(result.Warnings)); err != nil {
		log.Warn("record run success", logging.Error(err))
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, runID string, stage Stage, runErr error, log *slog.Logger) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.FinishFailure(ctx, runID, string(stage), runErr.Error()); err != nil {
		log.Warn("record run failure", logging.Error(err))
	}
}

// OutputName builds the artifact file name for a record at a point in time,
// for example Phieu_TTTT_R-1001_20260824_153000.docx.
func OutputName(recordID string, at time.Time) string {
	return fmt.Sprintf("Phieu_TTTT_%s_%s.docx", recordID, at.Format("20060102_150405"))
}
