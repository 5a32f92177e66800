package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/server"
	"github.com/eduardo5010/study-cycle/pkg/service/mcp"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg             config
		addr            string
		token           string
		retrainSchedule string
		withMCP         bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("STUDYCYCLE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "server-token",
			Usage:       "Bearer token required from clients",
			Sources:     cli.EnvVars("STUDYCYCLE_SERVER_TOKEN"),
			Destination: &token,
		},
		&cli.StringFlag{
			Name:        "retrain-schedule",
			Usage:       "Cron expression for local model retraining, e.g. \"0 3 * * *\"",
			Sources:     cli.EnvVars("STUDYCYCLE_RETRAIN_SCHEDULE"),
			Destination: &retrainSchedule,
		},
		&cli.BoolFlag{
			Name:        "mcp",
			Usage:       "Serve MCP tools at /mcp",
			Sources:     cli.EnvVars("STUDYCYCLE_SERVE_MCP"),
			Destination: &withMCP,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the prediction and telemetry HTTP service",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, logger := cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			// this process is the prediction service, so no remote predictor
			uc, err := cfg.newReview(ctx, repo, reviewDeps{generator: true, local: true, warehouse: true})
			if err != nil {
				return err
			}

			if retrainSchedule == "" {
				f, err := readSchedulerFile(cfg.schedulerConfig)
				if err != nil {
					return err
				}
				retrainSchedule = f.RetrainSchedule
			}
			if retrainSchedule != "" {
				if err := startRetrainer(ctx, retrainSchedule, uc); err != nil {
					return err
				}
			}

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithBearerToken(token),
			}
			if withMCP {
				opts = append(opts, server.WithMCP(mcp.Handler(mcp.NewServer(uc, version))))
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.New(uc, repo, opts...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server started", "addr", addr, "mcp", withMCP)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return goerr.Wrap(err, "server failed", goerr.V("addr", addr))
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down server")
			}
			return nil
		},
	}
}

// startRetrainer retrains the local model on the cron schedule until ctx is
// done
func startRetrainer(ctx context.Context, schedule string, uc *review.UseCase) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return goerr.Wrap(err, "invalid retrain schedule", goerr.V("schedule", schedule))
	}

	logger := logging.From(ctx)
	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			logger.Info("next local model retrain", "at", next.Format(time.RFC3339))

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			art, err := uc.TrainLocal(ctx, time.Time{})
			if err != nil {
				logger.Warn("scheduled retrain failed", "error", err)
				continue
			}
			logger.Info("scheduled retrain complete", "samples", art.Samples, "loss", art.Loss)
		}
	}()
	return nil
}
