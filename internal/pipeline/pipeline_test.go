package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"phieu/internal/amis"
	"phieu/internal/assets"
	"phieu/internal/docx"
)

var testClock = func() time.Time {
	return time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)
}

type fakeClient struct {
	logins     int
	loginErrs  []error
	searches   int
	searchErrs []error
	record     *amis.RecordHandle
}

func (f *fakeClient) Login(_ context.Context, _ amis.Credentials) (*amis.Session, error) {
	f.logins++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &amis.Session{}, nil
}

func (f *fakeClient) SearchRecord(_ context.Context, _ *amis.Session, recordID string) (*amis.RecordHandle, error) {
	f.searches++
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.record != nil {
		return f.record, nil
	}
	return &amis.RecordHandle{RecordID: recordID}, nil
}

type fakeFetcher struct {
	err    error
	bundle *assets.Bundle
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *amis.Session, record *amis.RecordHandle) (*assets.Bundle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.bundle != nil {
		return f.bundle, nil
	}
	return &assets.Bundle{Template: assets.Asset{Kind: assets.KindTemplate, Content: []byte("tpl")}}, nil
}

type fakeAssembler struct {
	err      error
	warnings []docx.Warning
}

func (f *fakeAssembler) Assemble(template []byte, images []assets.Asset, signature docx.SignatureImage) (*docx.AssembledDocument, []docx.Warning, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &docx.AssembledDocument{Data: []byte("artifact"), ImageBlocks: len(images)}, f.warnings, nil
}

type fakeRecorder struct {
	created   int
	stages    []string
	succeeded int
	failed    int
	failStage string
}

func (f *fakeRecorder) Create(_ context.Context, _, _ string, _ time.Time) error {
	f.created++
	return nil
}

func (f *fakeRecorder) RecordStage(_ context.Context, _, stage string) error {
	f.stages = append(f.stages, stage)
	return nil
}

func (f *fakeRecorder) FinishSuccess(_ context.Context, _, _ string, _ int) error {
	f.succeeded++
	return nil
}

func (f *fakeRecorder) FinishFailure(_ context.Context, _, stage, _ string) error {
	f.failed++
	f.failStage = stage
	return nil
}

func testRequest() Request {
	return Request{
		RecordID:    "R-1001",
		Credentials: amis.Credentials{Username: "surveyor", Password: "secret"},
		Signature:   docx.SignatureImage{Name: "sig.png", Content: []byte("sig")},
	}
}

func TestRunSuccess(t *testing.T) {
	client := &fakeClient{}
	recorder := &fakeRecorder{}
	pipe := New(client, &fakeFetcher{}, &fakeAssembler{}, nil,
		WithRecorder(recorder), WithClock(testClock))

	result, err := pipe.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OutputName != "Phieu_TTTT_R-1001_20260824_153000.docx" {
		t.Errorf("output name = %q", result.OutputName)
	}
	if result.RunID == "" {
		t.Error("run id not assigned")
	}
	if string(result.Artifact.Data) != "artifact" {
		t.Errorf("artifact = %q", result.Artifact.Data)
	}
	if client.logins != 1 || client.searches != 1 {
		t.Errorf("logins = %d, searches = %d", client.logins, client.searches)
	}

	wantStages := []string{"authenticating", "searching", "fetching", "assembling"}
	if len(recorder.stages) != len(wantStages) {
		t.Fatalf("stages = %v", recorder.stages)
	}
	for i, stage := range wantStages {
		if recorder.stages[i] != stage {
			t.Errorf("stage %d = %s, want %s", i, recorder.stages[i], stage)
		}
	}
	if recorder.created != 1 || recorder.succeeded != 1 || recorder.failed != 0 {
		t.Errorf("recorder counts = %d/%d/%d", recorder.created, recorder.succeeded, recorder.failed)
	}
}

func TestRunRetriesSearchOnceAfterSessionExpiry(t *testing.T) {
	client := &fakeClient{searchErrs: []error{amis.ErrSessionExpired}}
	pipe := New(client, &fakeFetcher{}, &fakeAssembler{}, nil, WithClock(testClock))

	if _, err := pipe.Run(context.Background(), testRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.logins != 2 {
		t.Errorf("logins = %d, want 2", client.logins)
	}
	if client.searches != 2 {
		t.Errorf("searches = %d, want 2", client.searches)
	}
}

func TestRunDoesNotRetrySearchTwice(t *testing.T) {
	client := &fakeClient{searchErrs: []error{amis.ErrSessionExpired, amis.ErrSessionExpired}}
	pipe := New(client, &fakeFetcher{}, &fakeAssembler{}, nil, WithClock(testClock))

	_, err := pipe.Run(context.Background(), testRequest())
	if !errors.Is(err, amis.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageSearching {
		t.Errorf("stage = %v", err)
	}
	if client.logins != 2 || client.searches != 2 {
		t.Errorf("logins = %d, searches = %d", client.logins, client.searches)
	}
}

func TestRunReloginFailureSurfacesAuthError(t *testing.T) {
	client := &fakeClient{
		loginErrs:  []error{nil, &amis.AuthError{Reason: "credentials rejected"}},
		searchErrs: []error{amis.ErrSessionExpired},
	}
	pipe := New(client, &fakeFetcher{}, &fakeAssembler{}, nil, WithClock(testClock))

	_, err := pipe.Run(context.Background(), testRequest())
	var authErr *amis.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %v", err)
	}
	if client.searches != 1 {
		t.Errorf("searches = %d, want 1", client.searches)
	}
}

func TestRunLoginFailure(t *testing.T) {
	client := &fakeClient{loginErrs: []error{&amis.AuthError{Reason: "credentials rejected"}}}
	recorder := &fakeRecorder{}
	pipe := New(client, &fakeFetcher{}, &fakeAssembler{}, nil,
		WithRecorder(recorder), WithClock(testClock))

	_, err := pipe.Run(context.Background(), testRequest())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageAuthenticating {
		t.Fatalf("expected authenticating stage error, got %v", err)
	}
	var authErr *amis.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected wrapped *AuthError, got %v", err)
	}
	if recorder.failed != 1 || recorder.failStage != "authenticating" {
		t.Errorf("recorder failed = %d at %s", recorder.failed, recorder.failStage)
	}
}

func TestRunFetchFailure(t *testing.T) {
	pipe := New(&fakeClient{}, &fakeFetcher{err: assets.ErrMissingTemplate}, &fakeAssembler{}, nil, WithClock(testClock))

	_, err := pipe.Run(context.Background(), testRequest())
	if !errors.Is(err, assets.ErrMissingTemplate) {
		t.Fatalf("expected ErrMissingTemplate, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageFetching {
		t.Errorf("stage = %v", err)
	}
}

func TestRunAssemblyFailure(t *testing.T) {
	assembleErr := &docx.SignatureAnchorError{Anchor: "Chữ ký cán bộ khảo sát"}
	pipe := New(&fakeClient{}, &fakeFetcher{}, &fakeAssembler{err: assembleErr}, nil, WithClock(testClock))

	_, err := pipe.Run(context.Background(), testRequest())
	var anchorErr *docx.SignatureAnchorError
	if !errors.As(err, &anchorErr) {
		t.Fatalf("expected *SignatureAnchorError, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageAssembling {
		t.Errorf("stage = %v", err)
	}
}

func TestRunPropagatesWarnings(t *testing.T) {
	warnings := []docx.Warning{{Asset: "back.png", Err: errors.New("bad image")}}
	pipe := New(&fakeClient{}, &fakeFetcher{}, &fakeAssembler{warnings: warnings}, nil, WithClock(testClock))

	result, err := pipe.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Asset != "back.png" {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{}
	pipe := New(client, &fakeFetcher{}, &fakeAssembler{}, nil, WithClock(testClock))

	_, err := pipe.Run(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.logins != 0 {
		t.Errorf("logins = %d, want 0", client.logins)
	}
}

func TestOutputName(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := OutputName("R-77", at); got != "Phieu_TTTT_R-77_20260102_030405.docx" {
		t.Errorf("OutputName = %q", got)
	}
}
