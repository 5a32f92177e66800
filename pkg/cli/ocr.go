package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/ocr"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func ocrCommand() *cli.Command {
	var (
		cfg       config
		contentID string
		user      string
		binary    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "content-id",
			Usage:       "Content ID for a single file (default: file name without extension)",
			Destination: &contentID,
		},
		learnerFlag(&user, false),
		&cli.StringFlag{
			Name:        "tesseract",
			Usage:       "Path to the tesseract binary",
			Sources:     cli.EnvVars("STUDYCYCLE_TESSERACT"),
			Value:       ocr.DefaultEngine,
			Destination: &binary,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "ocr",
		Usage:     "Extract text from uploaded files",
		ArgsUsage: "FILE...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, _ = cfg.setupLogger(ctx, os.Stderr)
			defer cfg.close(ctx)

			paths := c.Args().Slice()
			if len(paths) == 0 {
				return goerr.New("at least one file is required")
			}
			if contentID != "" && len(paths) > 1 {
				return goerr.New("content-id can only be used with a single file")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			queue := ocr.NewQueue(ocr.NewTesseract(repo, ocr.WithBinary(binary)))
			ids := make([]model.ContentID, len(paths))
			for i, path := range paths {
				ids[i] = model.ContentID(contentID)
				if contentID == "" {
					base := filepath.Base(path)
					ids[i] = model.ContentID(strings.TrimSuffix(base, filepath.Ext(base)))
				}
				queue.Enqueue(ctx, path, ids[i], model.LearnerID(user))
			}

			if err := queue.Close(ctx); err != nil {
				return err
			}

			w := c.Root().Writer
			for i, id := range ids {
				content, err := repo.GetContent(ctx, id)
				if err != nil {
					fmt.Fprintf(w, "%s: no text extracted\n", paths[i])
					continue
				}
				fmt.Fprintf(w, "==> %s (%s) <==\n%s\n", paths[i], id, content.OCRText)
			}
			return nil
		},
	}
}
