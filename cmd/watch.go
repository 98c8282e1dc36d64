package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vidmark/internal/realtime"
	"github.com/desertthunder/vidmark/internal/repositories"
	"github.com/desertthunder/vidmark/internal/shared"
	"github.com/desertthunder/vidmark/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch connects to the progress channel and follows job updates until interrupted.
//
// Watched jobs are restored from and written back to the local database, so a
// restarted watch picks up where the previous one left off.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	repo := repositories.NewWatchRepository(db)

	client := realtime.NewClient(realtime.Options{
		ChannelURL:    r.config.Server.ChannelURL,
		Credential:    r.tokens.Credential,
		Dialer:        r.dialer,
		History:       r.jobs,
		Logger:        r.logger,
		Backoff:       realtime.Backoff{Initial: r.config.Watch.InitialBackoff(), Max: r.config.Watch.MaxBackoff()},
		TerminalTTL:   r.config.Watch.TerminalTTL(),
		SweepInterval: r.config.Watch.SweepInterval(),
	})
	defer client.Close()

	seed, err := repo.List()
	if err != nil {
		return fmt.Errorf("failed to restore watched jobs: %w", err)
	}
	client.Seed(seed)

	// Persist every snapshot so the watched set survives restarts.
	persisted, stopPersist := client.Subscribe()
	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		for update := range persisted {
			if err := repo.Sync(update.Jobs); err != nil {
				r.logger.Warn("failed to persist watched jobs", "error", err)
			}
		}
	}()
	defer func() {
		// Drain the final sync before the deferred db.Close runs.
		stopPersist()
		<-persistDone
	}()

	if err := client.Start(ctx); err != nil {
		return err
	}

	if cmd.Bool("plain") {
		return r.watchPlain(ctx, client)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/vidmark-watch.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	updates, cancel := client.Subscribe()
	model := ui.NewModel(updates, cancel)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}

	return nil
}

// watchPlain logs each update as key-value lines until the context is cancelled.
func (r *Runner) watchPlain(ctx context.Context, client *realtime.Client) error {
	updates, cancel := client.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.HistoryErr != nil {
				r.logger.Warn("gap recovery incomplete", "error", update.HistoryErr)
			}
			for _, ev := range update.Jobs {
				r.logger.Info("progress",
					"job", ev.JobID,
					"status", ev.Status,
					"progress", fmt.Sprintf("%d%%", ev.Progress),
					"videos", fmt.Sprintf("%d/%d", ev.CurrentVideo, ev.TotalVideos),
					"connection", update.Connection,
				)
			}
		}
	}
}
