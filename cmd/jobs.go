package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/vidmark/internal/formatter"
	"github.com/desertthunder/vidmark/internal/models"
	"github.com/desertthunder/vidmark/internal/repositories"
	"github.com/desertthunder/vidmark/internal/shared"
	"github.com/urfave/cli/v3"
)

// JobsList prints the watched jobs stored in the local database.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := repositories.NewWatchRepository(db).List()
	if err != nil {
		return fmt.Errorf("failed to list watched jobs: %w", err)
	}

	switch format := cmd.String("format"); format {
	case "json":
		return r.writeJSON(jobs, cmd.Bool("pretty"))
	case "csv":
		data, err := formatter.JobsToCSV(jobs)
		if err != nil {
			return fmt.Errorf("failed to format CSV: %w", err)
		}
		_, err = r.output.Write(data)
		return err
	case "markdown":
		_, err = r.output.Write(formatter.JobsToMarkdown(jobs))
		return err
	case "table":
		return r.writePlain("%s", formatter.JobsToTable(jobs))
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// JobsShow prints the last observed state of a single job.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("id")
	if jobID == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	event, err := repositories.NewWatchRepository(db).Get(jobID)
	if err != nil {
		return err
	}

	return r.writeJSON(event, cmd.Bool("pretty"))
}

// JobsHistory queries the backend's progress history endpoint for a job.
func (r *Runner) JobsHistory(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("id")
	if jobID == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	since := cmd.Timestamp("since")
	r.logger.Info("fetching progress history", "job", jobID, "since", since)

	events, err := r.jobs.ProgressHistory(ctx, jobID, since)
	if err != nil {
		return err
	}
	if events == nil {
		events = []models.ProgressEvent{}
	}

	return r.writeJSON(events, cmd.Bool("pretty"))
}

// JobsForget removes a job from the local database.
func (r *Runner) JobsForget(ctx context.Context, cmd *cli.Command) error {
	jobID := cmd.StringArg("id")
	if jobID == "" {
		return fmt.Errorf("%w: job id is required", shared.ErrMissingArgument)
	}

	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewWatchRepository(db).Delete(jobID); err != nil {
		return fmt.Errorf("failed to forget job: %w", err)
	}
	return r.writePlain("✓ Forgot job %s\n", jobID)
}
