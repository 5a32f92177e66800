package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func trainCommand() *cli.Command {
	var (
		cfg   config
		since time.Duration
	)

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "since",
			Usage:       "Only train on outcomes recorded within this duration (0 for all)",
			Destination: &since,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "train",
		Usage: "Train the local recall model from recorded outcomes",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{local: true, warehouse: true})
			if err != nil {
				return err
			}

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " training local model..."
			s.Start()
			art, err := uc.TrainLocal(ctx, from)
			s.Stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Model %s trained on %d samples (loss %.4f)\n", art.Name, art.Samples, art.Loss)
			return nil
		},
	}
}

func predictLocalCommand() *cli.Command {
	var (
		cfg      config
		learner  string
		item     string
		interval float64
	)

	flags := []cli.Flag{
		learnerFlag(&learner, true),
		itemFlag(&item, true),
		&cli.FloatFlag{
			Name:        "interval",
			Usage:       "Seconds from now until the review",
			Value:       86400,
			Destination: &interval,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "predict-local",
		Usage: "Predict recall probability with the local model",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			if interval < 0 {
				return goerr.New("interval must not be negative", goerr.V("interval", interval))
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{local: true})
			if err != nil {
				return err
			}

			p, err := uc.PredictLocal(ctx, model.LearnerID(learner), model.StudyItemID(item), interval)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "%.4f\n", p)
			return nil
		},
	}
}
