package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clinex/internal/annotation"
	"github.com/jackzampolin/clinex/internal/corpus"
	"github.com/jackzampolin/clinex/internal/report"
)

var (
	extractSamples string
	extractForce   bool
)

// extractResult is one line of the extract command's output.
type extractResult struct {
	ID         string `json:"id" yaml:"id"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Records    int    `json:"records" yaml:"records"`
	Ungrounded int    `json:"ungrounded" yaml:"ungrounded"`
	Skipped    bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract entities from sample notes with the configured LLM",
	Long: `Extract entities from every <stem>.txt in the samples directory and
write them to <stem>_pred.json, grounded to character offsets in the note.

Samples that already have a predictions file are left alone unless --force
is given. Extraction failures are reported per sample and do not stop the
run.

Examples:
  clinex extract --samples ./samples
  OPENAI_API_KEY=... clinex extract --force
  CLINEX_LLM_BASE_URL=http://localhost:11434/v1 CLINEX_LLM_MODEL=llama3.1 clinex extract`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := cfgMgr.Get()

		samplesDir := cfg.Eval.Samples
		if cmd.Flags().Changed("samples") {
			samplesDir = extractSamples
		}

		ex, err := newExtractor(cfg.LLM)
		if err != nil {
			return err
		}

		samples, err := corpus.Discover(samplesDir)
		if err != nil {
			return err
		}

		results := make([]extractResult, 0, len(samples))
		failed := 0
		for _, s := range samples {
			if err := ctx.Err(); err != nil {
				return err
			}

			res := extractResult{ID: s.ID}
			if s.HasPredictions() && !extractForce {
				res.Skipped = true
				res.Path = s.PredPath
				results = append(results, res)
				continue
			}

			text, err := corpus.ReadText(s.TextPath)
			if err == nil {
				var records []annotation.Record
				if records, err = ex.Extract(ctx, text); err == nil {
					res.Path = s.PredictionsPath()
					res.Records = len(records)
					for _, r := range records {
						if !r.HasSpan() {
							res.Ungrounded++
						}
					}
					err = annotation.Save(res.Path, text, records)
				}
			}
			if err != nil {
				failed++
				res.Error = err.Error()
				logger.Error("extraction failed", "id", s.ID, "error", err)
			} else {
				logger.Info("wrote predictions", "id", s.ID, "path", res.Path, "records", res.Records)
			}
			results = append(results, res)
		}

		if format, ok := structuredOutput(); ok {
			if err := report.Encode(cmd.OutOrStdout(), format, results); err != nil {
				return err
			}
		} else {
			w := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case r.Skipped:
					fmt.Fprintf(w, "%-30s skipped (predictions exist)\n", r.ID)
				case r.Error != "":
					fmt.Fprintf(w, "%-30s error: %s\n", r.ID, r.Error)
				default:
					fmt.Fprintf(w, "%-30s %d records (%d ungrounded) -> %s\n", r.ID, r.Records, r.Ungrounded, r.Path)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("extraction failed for %d of %d samples", failed, len(samples))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractSamples, "samples", "samples", "samples directory")
	extractCmd.Flags().BoolVar(&extractForce, "force", false, "overwrite existing predictions files")

	rootCmd.AddCommand(extractCmd)
}
