package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"phieu/internal/amis"
	"phieu/internal/assets"
	"phieu/internal/config"
	"phieu/internal/docx"
	"phieu/internal/fileutil"
	"phieu/internal/logging"
	"phieu/internal/pipeline"
	"phieu/internal/runlog"
)

const (
	envUsername = "PHIEU_AMIS_USERNAME"
	envPassword = "PHIEU_AMIS_PASSWORD"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		recordID      string
		username      string
		password      string
		signaturePath string
		outputPath    string
		onDecodeError string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Assemble the survey document for one record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if onDecodeError != "" {
				cfg.Assembly.OnDecodeError = onDecodeError
			}

			creds, err := resolveCredentials(username, password)
			if err != nil {
				return err
			}
			signature, err := loadSignature(signaturePath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return executeRun(ctx, cfg, runParams{
				recordID:   strings.TrimSpace(recordID),
				creds:      creds,
				signature:  signature,
				outputPath: outputPath,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&recordID, "record-id", "r", "", "AMIS record identifier")
	cmd.Flags().StringVarP(&username, "username", "u", "", "AMIS username (or "+envUsername+")")
	cmd.Flags().StringVarP(&password, "password", "p", "", "AMIS password (or "+envPassword+")")
	cmd.Flags().StringVarP(&signaturePath, "signature", "s", "", "Path to the surveyor signature image")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Artifact destination (defaults to the output directory)")
	cmd.Flags().StringVar(&onDecodeError, "on-decode-error", "", "Undecodable image policy: skip or fail")
	_ = cmd.MarkFlagRequired("record-id")
	_ = cmd.MarkFlagRequired("signature")

	return cmd
}

type runParams struct {
	recordID   string
	creds      amis.Credentials
	signature  docx.SignatureImage
	outputPath string
}

func executeRun(ctx context.Context, cfg *config.Config, params runParams, stdout io.Writer) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	// One run at a time per workspace; concurrent runs would race on the
	// output directory and the run database.
	lock := flock.New(filepath.Join(cfg.Paths.WorkspaceDir, "phieu.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return errors.New("another phieu run holds the workspace lock")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	store, err := runlog.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()

	assemblyOpts, err := docx.OptionsFromConfig(cfg.Assembly)
	if err != nil {
		return err
	}

	client := amis.NewClient(cfg.AMIS, amis.WithLogger(logger))
	fetcher := assets.NewFetcher(client, logger)
	assembler := docx.NewAssembler(assemblyOpts, logger)
	pipe := pipeline.New(client, fetcher, assembler, logger, pipeline.WithRecorder(store))

	result, err := pipe.Run(ctx, pipeline.Request{
		RecordID:    params.recordID,
		Credentials: params.creds,
		Signature:   params.signature,
	})
	if err != nil {
		return err
	}

	target := strings.TrimSpace(params.outputPath)
	if target == "" {
		target = filepath.Join(cfg.Paths.OutputDir, result.OutputName)
	}
	target = fileutil.UniquePath(target)
	if err := fileutil.WriteFileAtomic(target, result.Artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	fmt.Fprintf(stdout, "Assembled %s (%d image blocks)\n", target, result.Artifact.ImageBlocks)
	for _, warning := range result.Warnings {
		fmt.Fprintf(stdout, "Warning: skipped %s\n", warning)
	}
	return nil
}

// resolveCredentials prefers explicit flags and falls back to environment
// variables so passwords stay out of shell history.
func resolveCredentials(username, password string) (amis.Credentials, error) {
	if username == "" {
		username = os.Getenv(envUsername)
	}
	if password == "" {
		password = os.Getenv(envPassword)
	}
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return amis.Credentials{}, fmt.Errorf("AMIS credentials required: pass --username/--password or set %s and %s", envUsername, envPassword)
	}
	return amis.Credentials{Username: username, Password: password}, nil
}

func loadSignature(path string) (docx.SignatureImage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return docx.SignatureImage{}, errors.New("signature image required: pass --signature")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return docx.SignatureImage{}, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return docx.SignatureImage{}, fmt.Errorf("read signature image: %w", err)
	}
	return docx.SignatureImage{Name: filepath.Base(expanded), Content: data}, nil
}
