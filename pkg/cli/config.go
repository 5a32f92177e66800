package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/eduardo5010/study-cycle/pkg/adapter"
	"github.com/eduardo5010/study-cycle/pkg/localmodel"
	"github.com/eduardo5010/study-cycle/pkg/policy"
	"github.com/eduardo5010/study-cycle/pkg/repository"
	"github.com/eduardo5010/study-cycle/pkg/usecase/generate"
	"github.com/eduardo5010/study-cycle/pkg/usecase/review"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Repository
	repository string
	project    string
	database   string

	// Selection and scheduling
	policy          string
	policyDir       string
	seed            int64
	schedulerConfig string

	// Generator
	generator       string
	anthropicAPIKey string
	claudeModel     string
	geminiProject   string
	geminiLocation  string
	geminiModel     string

	// Prediction service
	predictorURL   string
	predictorToken string

	// Local model and telemetry storage
	artifactStore   string
	sqlitePath      string
	bucket          string
	bucketPrefix    string
	bigqueryDataset string
	bigqueryTable   string

	// closers run when the command finishes
	closers []io.Closer
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("STUDYCYCLE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("STUDYCYCLE_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Repository backend (memory, firestore)",
			Value:       "memory",
			Sources:     cli.EnvVars("STUDYCYCLE_REPOSITORY"),
			Destination: &cfg.repository,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// schedulerFlags returns flags for selection policy and interval scheduling
func schedulerFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Variant selection policy (human-first, random, lru, rego)",
			Value:       policy.NameHumanFirst,
			Sources:     cli.EnvVars("STUDYCYCLE_POLICY"),
			Destination: &cfg.policy,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego files for the rego policy",
			Sources:     cli.EnvVars("STUDYCYCLE_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.IntFlag{
			Name:        "seed",
			Usage:       "Seed of the random selection policy",
			Value:       1,
			Sources:     cli.EnvVars("STUDYCYCLE_SEED"),
			Destination: &cfg.seed,
		},
		&cli.StringFlag{
			Name:        "scheduler-config",
			Usage:       "Path to YAML file with scheduling parameters",
			Sources:     cli.EnvVars("STUDYCYCLE_SCHEDULER_CONFIG"),
			Destination: &cfg.schedulerConfig,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "generator",
			Usage:       "Fallback content generator (gemini, claude, none)",
			Value:       "none",
			Sources:     cli.EnvVars("STUDYCYCLE_GENERATOR"),
			Destination: &cfg.generator,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model for content generation",
			Sources:     cli.EnvVars("STUDYCYCLE_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for content generation",
			Sources:     cli.EnvVars("STUDYCYCLE_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// predictorFlags returns flags for the remote prediction service
func predictorFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "predictor-url",
			Usage:       "Base URL of the prediction and telemetry service",
			Sources:     cli.EnvVars("STUDYCYCLE_PREDICTOR_URL"),
			Destination: &cfg.predictorURL,
		},
		&cli.StringFlag{
			Name:        "predictor-token",
			Usage:       "Bearer token for the prediction service",
			Sources:     cli.EnvVars("STUDYCYCLE_PREDICTOR_TOKEN"),
			Destination: &cfg.predictorToken,
		},
	}
}

// storageFlags returns flags for the local model artifact store and the
// outcome warehouse
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "artifact-store",
			Usage:       "Local model artifact store (sqlite, gcs, none)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("STUDYCYCLE_ARTIFACT_STORE"),
			Destination: &cfg.artifactStore,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file for local model artifacts",
			Value:       "studycycle.db",
			Sources:     cli.EnvVars("STUDYCYCLE_SQLITE_PATH"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for local model artifacts",
			Sources:     cli.EnvVars("STUDYCYCLE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "bucket-prefix",
			Usage:       "Object prefix inside the bucket",
			Value:       "models/",
			Sources:     cli.EnvVars("STUDYCYCLE_BUCKET_PREFIX"),
			Destination: &cfg.bucketPrefix,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset receiving outcome events",
			Sources:     cli.EnvVars("STUDYCYCLE_BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery table receiving outcome events",
			Value:       "outcomes",
			Sources:     cli.EnvVars("STUDYCYCLE_BIGQUERY_TABLE"),
			Destination: &cfg.bigqueryTable,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context, w io.Writer) (context.Context, *slog.Logger) {
	logger := logging.NewWithFormat(cfg.logFormat, cfg.logLevel, w)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), logger
}

// close releases resources opened while building dependencies
func (cfg *config) close(ctx context.Context) {
	for i := len(cfg.closers) - 1; i >= 0; i-- {
		if err := cfg.closers[i].Close(); err != nil {
			logging.From(ctx).Warn("failed to close resource", "error", err)
		}
	}
	cfg.closers = nil
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.repository {
	case "memory", "":
		return repository.NewMemory(), nil
	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		cfg.closers = append(cfg.closers, repo)
		return repo, nil
	default:
		return nil, goerr.New("unknown repository backend", goerr.V("repository", cfg.repository))
	}
}

// newPolicy builds the configured selection policy
func (cfg *config) newPolicy(ctx context.Context) (policy.Policy, error) {
	return policy.New(ctx, cfg.policy, policy.Config{
		Seed:      uint64(cfg.seed),
		PolicyDir: cfg.policyDir,
	})
}

// newClaude creates a new Claude adapter instance
func (cfg *config) newClaude() (adapter.Claude, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, goerr.New("anthropic-api-key is required")
	}
	var opts []adapter.ClaudeOption
	if cfg.claudeModel != "" {
		opts = append(opts, adapter.WithClaudeModel(cfg.claudeModel))
	}
	return adapter.NewClaude(cfg.anthropicAPIKey, opts...), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newGenerator creates the fallback generator. "none" yields a generator
// that always answers with the stub.
func (cfg *config) newGenerator(ctx context.Context) (*generate.UseCase, error) {
	switch cfg.generator {
	case "none", "":
		return generate.New(nil), nil
	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return generate.New(generate.NewGeminiBackend(gemini)), nil
	case "claude":
		claude, err := cfg.newClaude()
		if err != nil {
			return nil, err
		}
		return generate.New(generate.NewClaudeBackend(claude)), nil
	default:
		return nil, goerr.New("unknown generator", goerr.V("generator", cfg.generator))
	}
}

// newPredictor returns nil when no prediction service is configured
func (cfg *config) newPredictor() adapter.Predictor {
	if cfg.predictorURL == "" {
		return nil
	}
	var opts []adapter.PredictorOption
	if cfg.predictorToken != "" {
		opts = append(opts, adapter.WithBearerToken(cfg.predictorToken))
	}
	return adapter.NewPredictor(cfg.predictorURL, opts...)
}

// newStorage creates the artifact store; nil means no local model
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	switch cfg.artifactStore {
	case "none", "":
		return nil, nil
	case "sqlite":
		db, err := adapter.NewSQLite(cfg.sqlitePath)
		if err != nil {
			return nil, err
		}
		cfg.closers = append(cfg.closers, db)
		return db, nil
	case "gcs":
		if cfg.bucket == "" {
			return nil, goerr.New("bucket name is required")
		}
		storage, err := adapter.NewStorage(ctx, cfg.bucket, adapter.WithPrefix(cfg.bucketPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage, nil
	default:
		return nil, goerr.New("unknown artifact store", goerr.V("artifact-store", cfg.artifactStore))
	}
}

// newLocalModel returns nil when no artifact store is configured
func (cfg *config) newLocalModel(ctx context.Context) (*localmodel.Adapter, error) {
	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, nil
	}
	return localmodel.New(storage), nil
}

// newWarehouse returns nil when no BigQuery dataset is configured
func (cfg *config) newWarehouse(ctx context.Context) (adapter.BigQuery, error) {
	if cfg.bigqueryDataset == "" {
		return nil, nil
	}
	if cfg.project == "" {
		return nil, goerr.New("project is required for BigQuery")
	}
	bq, err := adapter.NewBigQuery(ctx, cfg.project, cfg.bigqueryDataset, adapter.WithTable(cfg.bigqueryTable))
	if err != nil {
		return nil, err
	}
	return bq, nil
}

// reviewDeps selects which optional collaborators newReview wires
type reviewDeps struct {
	generator bool
	predictor bool
	local     bool
	warehouse bool
}

// newReview builds the review use case from flags and the scheduler file
func (cfg *config) newReview(ctx context.Context, repo repository.Repository, deps reviewDeps) (*review.UseCase, error) {
	p, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := loadSchedulerOptions(cfg.schedulerConfig)
	if err != nil {
		return nil, err
	}

	if deps.generator {
		gen, err := cfg.newGenerator(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, review.WithGenerator(gen))
	}
	if deps.predictor {
		if pred := cfg.newPredictor(); pred != nil {
			opts = append(opts, review.WithPredictor(pred))
		}
	}
	if deps.local {
		local, err := cfg.newLocalModel(ctx)
		if err != nil {
			return nil, err
		}
		if local != nil {
			opts = append(opts, review.WithLocalModel(local))
		}
	}
	if deps.warehouse {
		bq, err := cfg.newWarehouse(ctx)
		if err != nil {
			return nil, err
		}
		if bq != nil {
			opts = append(opts, review.WithWarehouse(bq))
		}
	}

	return review.New(repo, p, opts...), nil
}
