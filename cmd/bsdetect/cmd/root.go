package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/analysis"
	"github.com/japaniel/bsdetect/pkg/auth"
	"github.com/japaniel/bsdetect/pkg/config"
	"github.com/japaniel/bsdetect/pkg/db"
	"github.com/japaniel/bsdetect/pkg/extract"
	"github.com/japaniel/bsdetect/pkg/lexicon"
	"github.com/japaniel/bsdetect/pkg/logging"
	"github.com/japaniel/bsdetect/pkg/matcher"
	"github.com/japaniel/bsdetect/pkg/scoring"
)

type globalOptions struct {
	configPath string
	dbURL      string
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "bsdetect",
		Short:         "bsdetect - bullshit detector for text, documents and web pages",
		Long:          "Scores text 0-100 for buzzwords and empty phrasing using a lexicon and a language model.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.dbURL, "db", "", "SQLite database path (overrides config and DATABASE_URL)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newTopCmd(opts))
	root.AddCommand(newRecentCmd(opts))
	root.AddCommand(newUserCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	conn     *sql.DB
	store    *db.Store
	service  *analysis.Service
	sessions *auth.Sessions
}

func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.dbURL != "" {
		cfg.Database.URL = o.dbURL
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// open builds the application. The returned close func releases the
// database and flushes the logger.
func (o *globalOptions) open(ctx context.Context) (*app, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	conn, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	store := db.NewStore(conn)

	lex := lexicon.Default()
	if cfg.LexiconPath != "" {
		lex, err = lexicon.Load(cfg.LexiconPath)
		if err != nil {
			conn.Close()
			_ = logger.Sync()
			return nil, nil, err
		}
	}

	fetcher := extract.NewFetcher(cfg.Fetch.UserAgent, cfg.Fetch.Timeout, cfg.Fetch.MaxBodyBytes)
	pages := extract.NewURLExtractor(fetcher)
	pages.StripElements = cfg.Extract.StripElements
	pages.ContentSelectors = cfg.Extract.ContentSelectors

	scorer := &scoring.Client{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
		Logger:   logger.Named("scoring"),
	}

	svc := analysis.New(analysis.Deps{
		Detector:          matcher.New(lex),
		Scorer:            scorer,
		Store:             store,
		Download:          fetcher,
		Pages:             pages,
		Documents:         extract.NewDocumentExtractor(),
		Logger:            logger.Named("analysis"),
		StrictPersistence: cfg.Analysis.StrictPersistence,
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		store:    store,
		service:  svc,
		sessions: auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.CookieName, cfg.Auth.SessionTTL),
	}
	closeFn := func() {
		conn.Close()
		_ = logger.Sync()
	}
	return a, closeFn, nil
}
