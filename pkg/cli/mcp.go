package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/service/mcp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "http",
			Usage:       "Serve MCP over streamable HTTP on this address instead of stdio",
			Sources:     cli.EnvVars("STUDYCYCLE_MCP_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, predictorFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Expose the scheduler as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout carries the protocol on stdio
			ctx, logger := cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{
				generator: true,
				predictor: true,
				local:     true,
				warehouse: true,
			})
			if err != nil {
				return err
			}

			server := mcp.NewServer(uc, version)
			if addr == "" {
				return mcp.RunStdio(ctx, server)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           mcp.Handler(server),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("MCP server listening", slog.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "MCP server failed", goerr.V("addr", addr))
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown MCP server")
			}
			return nil
		},
	}
}
