package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clinex/internal/config"
	"github.com/jackzampolin/clinex/internal/home"
	"github.com/jackzampolin/clinex/internal/report"
	"github.com/jackzampolin/clinex/version"
)

// formatTable prints human-readable output instead of structured data.
const formatTable = "table"

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	logFile      string

	// Set by the root PersistentPreRunE.
	homePath *home.Dir
	cfgMgr   *config.Manager
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "clinex",
	Short: "Clinical entity extraction and evaluation",
	Long: `clinex extracts clinical entities (medications, diagnoses, labs,
procedures, symptoms, allergies, demographics) from free-text notes with an
LLM, and scores predicted entities against gold annotations.

Each sample is a note <stem>.txt with gold annotations in <stem>.json (or
.yaml) and predictions in <stem>_pred.json. Evaluation matches predicted and
gold entities one-to-one per label and reports precision, recall and F1 per
label plus a micro-averaged overall row.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != formatTable {
			if _, err := report.ParseFormat(outputFormat); err != nil {
				return err
			}
		}

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		homePath = h

		mgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfgMgr = mgr

		logCfg := mgr.Get().Log
		if cmd.Flags().Changed("log-level") {
			logCfg.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			logCfg.File = logFile
		}
		l, err := setupLogging(cmd.ErrOrStderr(), logCfg)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger = l
		slog.SetDefault(l)

		if f := mgr.ConfigFile(); f != "" {
			logger.Debug("loaded config", "file", f)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.clinex/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "clinex home directory (default: ~/.clinex)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output-format", "o", formatTable, "stdout format: table, yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFile, "log-file", "", "also write logs to this file, rotated (default: log.file from config)",
	)

	rootCmd.AddCommand(versionCmd)
}

// structuredOutput returns the stdout format when -o asks for yaml or json.
func structuredOutput() (report.Format, bool) {
	if outputFormat == formatTable {
		return "", false
	}
	f, err := report.ParseFormat(outputFormat)
	return f, err == nil
}
