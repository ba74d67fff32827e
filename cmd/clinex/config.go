package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clinex/internal/config"
	"github.com/jackzampolin/clinex/internal/report"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage clinex configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to the home directory",
	Long: `Write the default config to <home>/config.yaml, with log.file set to
<home>/logs/clinex.log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if homePath.ConfigExists() && !configInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", homePath.ConfigPath())
		}
		if err := homePath.EnsureExists(); err != nil {
			return err
		}
		cfg := config.DefaultConfig()
		cfg.Log.File = homePath.LogFilePath()
		if err := config.Write(homePath.ConfigPath(), cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", homePath.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration: defaults, overridden by the config
file, overridden by CLINEX_* environment variables. Literal API keys are
redacted; ${ENV_VAR} references are shown as written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *cfgMgr.Get()
		cfg.LLM.APIKey = redact(cfg.LLM.APIKey)

		format, ok := structuredOutput()
		if !ok {
			format = report.FormatYAML
		}
		if f := cfgMgr.ConfigFile(); f != "" {
			logger.Debug("showing config", "file", f)
		}
		return report.Encode(cmd.OutOrStdout(), format, cfg)
	},
}

func redact(key string) string {
	if key == "" || strings.Contains(key, "${") {
		return key
	}
	return "<redacted>"
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
