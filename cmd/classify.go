package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/classify"
	"github.com/licitaflow/compliance-cli/internal/pdftext"
	"github.com/licitaflow/compliance-cli/internal/pipeline"
	"github.com/licitaflow/compliance-cli/internal/security"
)

var classifyDocs string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify company documents without running a full analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		backend, err := initBackend()
		if err != nil {
			return err
		}
		texts, err := pdftext.NewExtractor(cfg.PDFText)
		if err != nil {
			return eris.Wrap(err, "init pdf extractor")
		}

		paths, err := pipeline.ListPDFs(classifyDocs)
		if err != nil {
			return err
		}

		files := security.NewValidator(cfg.Security.MaxFileSizeMB, append([]string{classifyDocs}, cfg.Security.AllowedDirs...)...)
		classifier := classify.New(backend, texts, files, cfg.Classify, cfg.Match.MaxIssuanceDays)

		result, err := classifier.ClassifyBatch(ctx, paths)
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		for _, f := range result.Failures {
			zap.L().Warn("document skipped", zap.String("path", f.Path), zap.Error(f.Err))
		}
		zap.L().Info("classification complete",
			zap.Int("documents", len(result.Documents)),
			zap.Int("failed", len(result.Failures)),
			zap.Int("tokens", result.Usage.Total()),
			zap.Float64("cost_usd", result.Usage.Cost),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Documents)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyDocs, "docs", "", "directory with the company document PDFs (required)")
	_ = classifyCmd.MarkFlagRequired("docs")
	rootCmd.AddCommand(classifyCmd)
}
