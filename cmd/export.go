package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/export"
	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

var (
	exportFormat string
	exportOutput string
	exportAll    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reviewed leads to CSV or XLSX",
	Long:  "Writes approved leads (or all leads with --all) with their enrichment, score, and review disposition to a spreadsheet.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if exportFormat != "" {
			cfg.Export.Format = exportFormat
		}
		if exportOutput != "" {
			cfg.Export.Output = exportOutput
		}
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		rows, err := s.ListQueueRows(ctx)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if !exportAll {
			approved := rows[:0]
			for _, r := range rows {
				if r.Review.Status == model.ReviewApproved {
					approved = append(approved, r)
				}
			}
			rows = approved
		}

		var write func([]review.QueueRow, string) error
		switch cfg.Export.Format {
		case "xlsx":
			write = export.WriteXLSX
		default:
			write = export.WriteCSV
		}
		if err := write(rows, cfg.Export.Output); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("leads", len(rows)),
			zap.String("format", cfg.Export.Format),
			zap.String("output", cfg.Export.Output),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: csv or xlsx (default from config)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (default from config)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export every lead, not only approved ones")
	rootCmd.AddCommand(exportCmd)
}
