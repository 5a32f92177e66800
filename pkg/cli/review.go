package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func reviewCommand() *cli.Command {
	var (
		cfg     config
		learner string
	)

	flags := []cli.Flag{
		learnerFlag(&learner, true),
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, schedulerFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, predictorFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "review",
		Usage:     "Run an interactive review session",
		ArgsUsage: "[ITEM...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

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

			learnerID := model.LearnerID(learner)
			items := make([]model.StudyItemID, 0, c.Args().Len())
			for _, arg := range c.Args().Slice() {
				items = append(items, model.StudyItemID(arg))
			}
			if len(items) == 0 {
				due, err := uc.DueItems(ctx, learnerID, time.Now())
				if err != nil {
					return err
				}
				for _, d := range due {
					items = append(items, d.ItemID)
				}
			}

			w := c.Root().Writer
			if len(items) == 0 {
				fmt.Fprintf(w, "Nothing is due.\n")
				return nil
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt: "recalled? [y/n/q] ",
				Stdout: w,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start prompt")
			}
			defer rl.Close()

			fmt.Fprintf(w, "Review session started with %d items.\n", len(items))
			s := &session{uc: uc, rl: rl, w: w, learner: learnerID}
			for _, item := range items {
				quit, err := s.reviewItem(ctx, item)
				if err != nil {
					return err
				}
				if quit {
					break
				}
			}

			fmt.Fprintf(w, "\nReview session completed (%d reviewed)\n", s.reviewed)
			return nil
		},
	}
}

type session struct {
	uc       *review.UseCase
	rl       *readline.Instance
	w        io.Writer
	learner  model.LearnerID
	reviewed int
}

// reviewItem shows one variant and records the answer. It returns true when
// the learner asked to stop.
func (s *session) reviewItem(ctx context.Context, item model.StudyItemID) (bool, error) {
	sel := s.uc.SelectVariant(ctx, item, s.learner)
	if sel.Variant == nil {
		fmt.Fprintf(s.w, "\n[%s] no variant available, skipped\n", item)
		return false, nil
	}

	fmt.Fprintf(s.w, "\n[%s] %s (%s, %s)\n", item, sel.Variant.Text(), sel.Variant.Type, sel.Variant.Difficulty)
	if choices, ok := sel.Variant.Content["choices"].([]any); ok {
		for i, choice := range choices {
			fmt.Fprintf(s.w, "  %d) %v\n", i+1, choice)
		}
	}

	shown := time.Now()
	for {
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			return false, goerr.Wrap(err, "failed to read answer")
		}

		var correctness int
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			correctness = 1
		case "n", "no":
			correctness = 0
		case "q", "quit", "exit":
			return true, nil
		default:
			continue
		}

		recorded := s.uc.Record(ctx, review.Outcome{
			LearnerID:      s.learner,
			ItemID:         item,
			VariantID:      sel.Variant.ID,
			Correctness:    correctness,
			ResponseTimeMs: time.Since(shown).Milliseconds(),
		})
		if !recorded.Persisted {
			fmt.Fprintf(s.w, "warning: outcome was not saved\n")
		}
		s.reviewed++

		rec := s.uc.RecommendNextInterval(ctx, model.IntervalQuery{
			LearnerID: s.learner,
			ItemID:    item,
		})
		next := time.Duration(rec.RecommendedIntervalSec) * time.Second
		fmt.Fprintf(s.w, "next review in %s (retention %.2f, %s)\n", next, rec.PredictedRetention, rec.Source)
		return false, nil
	}
}
