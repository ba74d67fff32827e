package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clinex/internal/config"
	"github.com/jackzampolin/clinex/internal/eval"
	"github.com/jackzampolin/clinex/internal/extract"
	"github.com/jackzampolin/clinex/internal/match"
	"github.com/jackzampolin/clinex/internal/providers"
	"github.com/jackzampolin/clinex/internal/report"
)

var (
	evalSamples   string
	evalOutput    string
	evalMatch     string
	evalThreshold float64
	evalFormat    string
	evalExtract   bool
	evalSave      bool
	evalWatch     bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score predicted entities against gold annotations",
	Long: `Score predicted entities against gold annotations.

For every <stem>.txt in the samples directory, gold records are read from
<stem>.json (or .yaml) and predictions from <stem>_pred.json. With --extract,
samples without a predictions file are sent to the configured LLM instead.
Samples without gold or predictions are skipped; malformed records are
skipped individually. Both are listed in the report.

Match modes:
  overlap  same label and spans overlap with IoU >= --threshold (default;
           threshold 0 accepts any overlap)
  exact    same label and identical spans
  text     same label and equal normalized text (spans not required)
  partial  same label and one normalized text contains the other

Writes eval_results.json (or .yaml) and metrics.tsv to the output directory
and prints the metrics table.

Examples:
  clinex eval --samples ./samples --output ./results
  clinex eval --match exact
  clinex eval --match overlap --threshold 0.5 --format yaml
  clinex eval --extract --save-predictions
  clinex eval --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := cfgMgr.Get()

		opts, err := evalOptions(cmd, cfg.Eval)
		if err != nil {
			return err
		}

		runner := &eval.Runner{
			Policy:          opts.policy,
			SavePredictions: evalSave,
			Logger:          logger,
		}
		if evalExtract {
			ex, err := newExtractor(cfg.LLM)
			if err != nil {
				return err
			}
			runner.Extractor = ex
		}

		// In watch mode config edits apply from the next run.
		var reloaded atomic.Pointer[config.Config]
		run := func(ctx context.Context) error {
			if c := reloaded.Swap(nil); c != nil {
				next, err := evalOptions(cmd, c.Eval)
				if err != nil {
					logger.Warn("ignoring reloaded config", "error", err)
				} else {
					opts = next
					runner.Policy = opts.policy
				}
			}
			return runEvaluation(ctx, cmd, runner, opts)
		}
		if !evalWatch {
			return run(ctx)
		}

		if cfgMgr.ConfigFile() != "" {
			cfgMgr.OnChange(func(c *config.Config) {
				logger.Info("config changed", "file", cfgMgr.ConfigFile())
				reloaded.Store(c)
			})
			cfgMgr.WatchConfig()
		}

		outAbs, _ := filepath.Abs(opts.output)
		return eval.Watch(ctx, opts.samples, eval.WatchOptions{
			Logger: logger,
			Ignore: func(path string) bool {
				abs, err := filepath.Abs(path)
				return err == nil && strings.HasPrefix(abs, outAbs+string(filepath.Separator))
			},
		}, func(ctx context.Context) {
			if err := run(ctx); err != nil {
				logger.Error("evaluation failed", "error", err)
			}
		})
	},
}

type evalOpts struct {
	samples string
	output  string
	policy  match.Policy
	format  report.Format
}

// evalOptions merges flags over the eval section of the config.
func evalOptions(cmd *cobra.Command, cfg config.EvalConfig) (evalOpts, error) {
	flags := cmd.Flags()
	if flags.Changed("samples") {
		cfg.Samples = evalSamples
	}
	if flags.Changed("output") {
		cfg.Output = evalOutput
	}
	if flags.Changed("match") {
		cfg.Match = evalMatch
	}
	if flags.Changed("threshold") {
		cfg.Threshold = evalThreshold
	}
	if flags.Changed("format") {
		cfg.Format = evalFormat
	}

	policy, err := cfg.Policy()
	if err != nil {
		return evalOpts{}, err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return evalOpts{}, err
	}
	output := cfg.Output
	if output == "" {
		output = homePath.ResultsPath()
	}
	return evalOpts{samples: cfg.Samples, output: output, policy: policy, format: format}, nil
}

func runEvaluation(ctx context.Context, cmd *cobra.Command, runner *eval.Runner, opts evalOpts) error {
	out, err := runner.Run(ctx, opts.samples)
	if err != nil {
		if errors.Is(err, eval.ErrNoDocuments) && out != nil {
			logger.Error("no sample had both gold and predictions", "skipped", len(out.Skipped))
		}
		return err
	}

	rep := report.New(opts.samples, out)
	paths, err := report.Write(opts.output, rep, opts.format)
	if err != nil {
		return err
	}
	logger.Info("report written", "run_id", rep.RunID, "files", paths)

	if format, ok := structuredOutput(); ok {
		return report.Encode(cmd.OutOrStdout(), format, rep)
	}
	return report.Render(cmd.OutOrStdout(), rep)
}

// newExtractor builds an LLM extractor from the llm config section.
func newExtractor(cfg config.LLMConfig) (*extract.Extractor, error) {
	apiKey := cfg.ResolvedAPIKey()
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("no API key configured: set OPENAI_API_KEY or llm.api_key")
	}

	client := providers.WithRateLimit(providers.NewOpenAIClient(providers.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.TimeoutDuration(),
	}), cfg.RateLimit)

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = -1
	}
	return &extract.Extractor{
		Client:      client,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxRetries:  retries,
		RetryDelay:  cfg.RetryDelayDuration(),
		Logger:      logger,
	}, nil
}

func init() {
	evalCmd.Flags().StringVar(&evalSamples, "samples", "samples", "samples directory")
	evalCmd.Flags().StringVar(&evalOutput, "output", "", "report output directory (default: ~/.clinex/results)")
	evalCmd.Flags().StringVar(&evalMatch, "match", string(match.ModeOverlap), "match mode: exact, overlap, text or partial")
	evalCmd.Flags().Float64Var(&evalThreshold, "threshold", 0, "minimum span IoU for overlap mode, in [0, 1]")
	evalCmd.Flags().StringVar(&evalFormat, "format", "json", "results file format: json or yaml")
	evalCmd.Flags().BoolVar(&evalExtract, "extract", false, "run the LLM extractor for samples without predictions")
	evalCmd.Flags().BoolVar(&evalSave, "save-predictions", false, "with --extract, write extractor output to <stem>_pred.json")
	evalCmd.Flags().BoolVar(&evalWatch, "watch", false, "re-run whenever sample, gold or prediction files change")

	rootCmd.AddCommand(evalCmd)
}
