package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/TeamViewMore/Poksin-Webcam/internal/app"
	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/evidence"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/notify"
)

var importUser int64

var importCmd = &cobra.Command{
	Use:   "import <files...>",
	Short: "Upload video files as single-shot evidence of a user",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importUser <= 0 {
			return fmt.Errorf("--user is required")
		}
		ctx := cmd.Context()

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		cats, err := repository.ResolveCategories(ctx, stores.Categories, cfg.CategoryWebcam, cfg.CategoryVideo, cfg.SeedCategories)
		if err != nil {
			return err
		}
		store, err := app.OpenObjectStore(ctx, cfg)
		if err != nil {
			return err
		}

		opts := evidence.Options{
			Repo:          stores.Evidence,
			Store:         store,
			Categories:    cats,
			WebcamFolder:  cfg.S3WebcamFolder,
			VideoFolder:   cfg.S3VideoFolder,
			Location:      loc,
			NotifyTimeout: cfg.NotifyTimeout,
			Logger:        log,
		}
		if cfg.ClassifyURL != "" {
			opts.Notifier = notify.NewClassifier(cfg.ClassifyURL, cfg.NotifyTimeout, log)
		}

		batchID := uuid.NewString()
		bar := progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Importing "+batchID[:8]),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		records, failed := importFiles(ctx, evidence.NewRecorder(opts), importUser, args, batchID, bar)
		bar.Finish()
		fmt.Fprintln(os.Stderr)

		printEvidence(cmd.OutOrStdout(), records)
		if len(failed) > 0 {
			for _, err := range failed {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return fmt.Errorf("%d of %d files failed", len(failed), len(args))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Int64Var(&importUser, "user", 0, "User id the evidence belongs to")
	rootCmd.AddCommand(importCmd)
}

type uploader interface {
	RecordUpload(ctx context.Context, req dto.UploadRequest) (*model.Evidence, error)
}

// importFiles uploads each path as its own record. It stops early only when ctx is cancelled.
func importFiles(ctx context.Context, up uploader, userID int64, paths []string, batchID string, progress interface{ Add(int) error }) ([]model.Evidence, []error) {
	var (
		records []model.Evidence
		failed  []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			failed = append(failed, err)
			break
		}

		data, err := os.ReadFile(path)
		if err == nil {
			var record *model.Evidence
			record, err = up.RecordUpload(ctx, dto.UploadRequest{
				UserID:      userID,
				Data:        data,
				Filename:    filepath.Base(path),
				Description: fmt.Sprintf("Imported video %s (batch %s)", filepath.Base(path), batchID),
			})
			if err == nil {
				records = append(records, *record)
			}
		}
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", path, err))
		}
		progress.Add(1)
	}
	return records, failed
}
