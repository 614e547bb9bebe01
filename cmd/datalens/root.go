package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/artifacts"
	"github.com/golovatskygroup/data-lens/internal/assistant"
	"github.com/golovatskygroup/data-lens/internal/audit"
	"github.com/golovatskygroup/data-lens/internal/config"
	"github.com/golovatskygroup/data-lens/internal/llm"
	"github.com/golovatskygroup/data-lens/internal/logging"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "datalens",
	Short: "Assistente de análise de dados com IA",
	Long: `datalens answers questions about an uploaded CSV or XLSX file: general
information and descriptive statistics reports, ad hoc queries and charts.

The model is reached through an OpenAI-compatible API; GROQ_API_KEY must be
set in the environment or in a .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, askCmd, describeCmd)
}

// app holds what serve and ask share.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	asst      *assistant.Assistant
	artifacts *artifacts.Store
	audit     *audit.Store
}

// loadApp reads configuration and builds the assistant. A missing API key
// fails here, before anything else starts.
func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg, log.Named("llm"))
	if err != nil {
		return nil, err
	}
	store, err := artifacts.New(artifacts.Config{Dir: cfg.Artifacts.Dir, PreviewBytes: cfg.Artifacts.PreviewBytes})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, artifacts: store}
	if cfg.Audit.DSN != "" {
		a.audit, err = audit.Open(cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
	}

	a.asst, err = assistant.New(cfg, assistant.Deps{
		Generator: client,
		Runner:    sandbox.NewRunner(sandbox.FromConfig(cfg.Sandbox), log.Named("sandbox")),
		Artifacts: store,
		Audit:     a.audit,
	}, log)
	if err != nil {
		a.close()
		return nil, err
	}
	log.Info("datalens configured",
		zap.String("model", client.Model()),
		zap.String("query_language", cfg.Query.Language),
		zap.Bool("audit", a.audit != nil),
	)
	return a, nil
}

func (a *app) close() {
	if a.audit != nil {
		_ = a.audit.Close()
	}
	_ = a.log.Sync()
}
