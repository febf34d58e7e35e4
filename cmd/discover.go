package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/dedup"
	"github.com/podreach/leadpipe/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover FILE...",
	Short: "Ingest discovery batches and deduplicate them into leads",
	Long:  "Reads JSON batches of source records, resolves each record's canonical identity, folds duplicates (including leads from earlier runs) into single leads, and stores the result.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("discover"); err != nil {
			return err
		}

		var records []model.SourceRecord
		for _, path := range args {
			batch, err := readSourceBatch(path)
			if err != nil {
				return err
			}
			records = append(records, batch...)
		}

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		// Prior leads contribute at top priority so their identities and
		// ids survive re-discovery.
		prior, err := s.ListLeads(ctx)
		if err != nil {
			return eris.Wrap(err, "list prior leads")
		}

		result, err := dedup.New(nil).Deduplicate(records, prior)
		if err != nil {
			return eris.Wrap(err, "deduplicate")
		}

		stored, err := s.UpsertLeads(ctx, result.Leads)
		if err != nil {
			return eris.Wrap(err, "store leads")
		}

		zap.L().Info("discovery complete",
			zap.Int("records", len(records)),
			zap.Int("leads", stored),
			zap.Int("merged", result.Merged),
			zap.Int("dropped", result.Dropped),
		)
		return nil
	},
}

func readSourceBatch(path string) ([]model.SourceRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch %s", path)
	}
	var records []model.SourceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, eris.Wrapf(err, "parse batch %s", path)
	}
	return records, nil
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
