package cli

import (
	"context"
	"os"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func learnerFlag(dst *string, required bool) cli.Flag {
	return &cli.StringFlag{
		Name:        "learner",
		Aliases:     []string{"l"},
		Usage:       "Learner ID",
		Sources:     cli.EnvVars("STUDYCYCLE_LEARNER_ID"),
		Destination: dst,
		Required:    required,
	}
}

func itemFlag(dst *string, required bool) cli.Flag {
	return &cli.StringFlag{
		Name:        "item",
		Aliases:     []string{"i"},
		Usage:       "Study item ID",
		Destination: dst,
		Required:    required,
	}
}

func selectCommand() *cli.Command {
	var (
		cfg     config
		learner string
		item    string
	)

	flags := []cli.Flag{
		itemFlag(&item, true),
		learnerFlag(&learner, false),
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "select",
		Usage: "Choose the variant a learner sees for a study item",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{generator: true})
			if err != nil {
				return err
			}

			sel := uc.SelectVariant(ctx, model.StudyItemID(item), model.LearnerID(learner))
			return printJSON(c.Root().Writer, sel)
		},
	}
}

func recommendCommand() *cli.Command {
	var (
		cfg        config
		learner    string
		item       string
		lambda     float64
		candidates []string
	)

	flags := []cli.Flag{
		learnerFlag(&learner, false),
		itemFlag(&item, false),
		&cli.FloatFlag{
			Name:        "lambda",
			Usage:       "Decay rate per day overriding the learner profile",
			Destination: &lambda,
		},
		&cli.StringSliceFlag{
			Name:        "candidate",
			Aliases:     []string{"c"},
			Usage:       "Candidate interval in seconds (repeatable or comma separated)",
			Destination: &candidates,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, predictorFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "recommend",
		Usage: "Recommend the next review interval",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			intervals, err := parseIntervals(candidates)
			if err != nil {
				return err
			}
			q := model.IntervalQuery{
				LearnerID:          model.LearnerID(learner),
				ItemID:             model.StudyItemID(item),
				CandidateIntervals: intervals,
			}
			if c.IsSet("lambda") {
				if err := model.ValidateLambda(lambda); err != nil {
					return err
				}
				q.Lambda = &lambda
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{predictor: true, local: true})
			if err != nil {
				return err
			}

			return printJSON(c.Root().Writer, uc.RecommendNextInterval(ctx, q))
		},
	}
}

func recordCommand() *cli.Command {
	var (
		cfg         config
		learner     string
		item        string
		variant     string
		correctness int64
		responseMs  int64
	)

	flags := []cli.Flag{
		learnerFlag(&learner, true),
		itemFlag(&item, true),
		&cli.StringFlag{
			Name:        "variant",
			Usage:       "Variant that was shown",
			Destination: &variant,
		},
		&cli.IntFlag{
			Name:        "correct",
			Usage:       "1 if the learner recalled the item, 0 otherwise",
			Required:    true,
			Destination: &correctness,
		},
		&cli.IntFlag{
			Name:        "response-ms",
			Usage:       "Response time in milliseconds",
			Destination: &responseMs,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, predictorFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "record",
		Usage: "Record the outcome of a review",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{predictor: true, warehouse: true})
			if err != nil {
				return err
			}

			recorded := uc.Record(ctx, review.Outcome{
				LearnerID:      model.LearnerID(learner),
				ItemID:         model.StudyItemID(item),
				VariantID:      model.VariantID(variant),
				Correctness:    int(correctness),
				ResponseTimeMs: responseMs,
			})
			if recorded.Event == nil {
				return goerr.New("outcome rejected", goerr.V("correct", correctness))
			}
			return printJSON(c.Root().Writer, recorded)
		},
	}
}

func adjustLambdaCommand() *cli.Command {
	var (
		cfg     config
		learner string
	)

	flags := []cli.Flag{
		learnerFlag(&learner, true),
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, predictorFlags(&cfg)...)

	return &cli.Command{
		Name:  "adjust-lambda",
		Usage: "Rescale a learner's decay rate from recent accuracy",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{predictor: true})
			if err != nil {
				return err
			}

			profile, err := uc.AdjustLambda(ctx, model.LearnerID(learner))
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, profile)
		},
	}
}

func dueCommand() *cli.Command {
	var (
		cfg     config
		learner string
	)

	flags := []cli.Flag{
		learnerFlag(&learner, true),
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, predictorFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "due",
		Usage: "List items due for review",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			uc, err := cfg.newReview(ctx, repo, reviewDeps{predictor: true, local: true})
			if err != nil {
				return err
			}

			due, err := uc.DueItems(ctx, model.LearnerID(learner), time.Now())
			if err != nil {
				return err
			}
			if len(due) == 0 {
				_, err := c.Root().Writer.Write([]byte("Nothing is due.\n"))
				return err
			}
			return printJSON(c.Root().Writer, due)
		},
	}
}
