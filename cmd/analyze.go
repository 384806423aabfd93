package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/pipeline"
)

var (
	analyzeNotice string
	analyzeDocs   string
	analyzeOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full compliance analysis for one notice",
	Long:  "Extracts requirements from the notice, classifies every PDF in the documents directory, matches documents to requirements, and writes the report artifacts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, pipeline.Request{
			NoticePath: analyzeNotice,
			DocsDir:    analyzeDocs,
			OutputDir:  resolveOutputDir(),
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", result.RunID),
			zap.Float64("compliance_rate", result.Report.ComplianceRate()),
			zap.Int("requirements", result.Report.Statistics.TotalRequirements),
			zap.Int("documents", result.Report.Statistics.TotalDocuments),
			zap.Int("tokens", result.Usage.Total()),
			zap.Float64("cost_usd", result.Usage.Cost),
			zap.String("output_dir", result.OutputDir),
		)

		// Print the report JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Report)
	},
}

// resolveOutputDir picks the artifact directory: the flag wins, then the
// configured default. Empty means no artifacts are written.
func resolveOutputDir() string {
	if analyzeOutput != "" {
		return analyzeOutput
	}
	return cfg.Output.Dir
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeNotice, "notice", "", "path to the notice PDF (required)")
	analyzeCmd.Flags().StringVar(&analyzeDocs, "docs", "", "directory with the company document PDFs (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "directory for report artifacts (default from config)")
	_ = analyzeCmd.MarkFlagRequired("notice")
	_ = analyzeCmd.MarkFlagRequired("docs")
	rootCmd.AddCommand(analyzeCmd)
}
