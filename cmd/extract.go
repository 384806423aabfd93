package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/licitaflow/compliance-cli/internal/notice"
	"github.com/licitaflow/compliance-cli/internal/pdftext"
	"github.com/licitaflow/compliance-cli/internal/security"
)

var extractNotice string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract document requirements from a notice PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
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

		files := security.NewValidator(cfg.Security.MaxFileSizeMB, append([]string{filepath.Dir(extractNotice)}, cfg.Security.AllowedDirs...)...)
		if err := files.ValidateFile(extractNotice); err != nil {
			return eris.Wrap(err, "extract")
		}

		extracted, err := texts.Extract(ctx, extractNotice)
		if err != nil {
			return eris.Wrapf(err, "extract text from %s", filepath.Base(extractNotice))
		}
		if !extracted.Success {
			return eris.Errorf("no text layer in %s", filepath.Base(extractNotice))
		}

		extractor := notice.New(backend, loadCorpus(), cfg.Extract, extractModelFor(backend), cfg.Corpus.TopK)
		reqs, strategy, usage := extractor.Extract(ctx, extracted.Text)

		zap.L().Info("extraction complete",
			zap.String("notice", filepath.Base(extractNotice)),
			zap.Int("requirements", len(reqs)),
			zap.String("strategy", strategy),
			zap.Int("tokens", usage.Total()),
			zap.Float64("cost_usd", usage.Cost),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reqs)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractNotice, "notice", "", "path to the notice PDF (required)")
	_ = extractCmd.MarkFlagRequired("notice")
	rootCmd.AddCommand(extractCmd)
}
