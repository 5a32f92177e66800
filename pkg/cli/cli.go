package cli

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// version is overwritten at build time
var version = "dev"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// a missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Code: 1, Message: err.Error()}
	}

	cmd := &cli.Command{
		Name:    "studycycle",
		Usage:   "Adaptive review scheduler",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			selectCommand(),
			recommendCommand(),
			recordCommand(),
			adjustLambdaCommand(),
			dueCommand(),
			trainCommand(),
			predictLocalCommand(),
			generateCommand(),
			ocrCommand(),
			reviewCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
