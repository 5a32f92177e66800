package cli

import (
	"context"
	"io"
	"os"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func generateCommand() *cli.Command {
	var (
		cfg    config
		item   string
		source string
		save   bool
	)

	flags := []cli.Flag{
		itemFlag(&item, true),
		&cli.StringFlag{
			Name:        "source",
			Aliases:     []string{"s"},
			Usage:       "Source text file (default: stdin)",
			Destination: &source,
		},
		&cli.BoolFlag{
			Name:        "save",
			Usage:       "Store the generated variants for the item",
			Destination: &save,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "generate",
		Usage: "Generate review variants from source text",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			text, err := readSource(source)
			if err != nil {
				return err
			}

			gen, err := cfg.newGenerator(ctx)
			if err != nil {
				return err
			}

			result := gen.Generate(ctx, model.StudyItemID(item), text)
			if save && !result.Degraded {
				repo, err := cfg.newRepository(ctx)
				if err != nil {
					return err
				}
				for _, v := range result.Variants {
					if err := repo.PutVariant(ctx, v); err != nil {
						return goerr.Wrap(err, "failed to save variant", goerr.V("variant_id", v.ID))
					}
				}
			}

			return printJSON(c.Root().Writer, result)
		},
	}
}

func readSource(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read stdin")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read source", goerr.V("path", path))
	}
	return string(data), nil
}
