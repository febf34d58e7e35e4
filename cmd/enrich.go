package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/enrich"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich stored leads from their feeds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		leads, err := s.ListLeads(ctx)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}
		if len(leads) == 0 {
			zap.L().Info("no leads to enrich")
			return nil
		}

		engine := enrich.NewEngine([]enrich.Provider{
			enrich.NewRSSProvider(nil),
		}, cfg.Enrich)

		profiles := engine.EnrichAll(ctx, leads)

		var stored, soft int
		for _, p := range profiles {
			if err := s.UpsertProfile(ctx, p); err != nil {
				return eris.Wrapf(err, "store profile for %s", p.Lead.ID)
			}
			stored++
			soft += len(p.SoftFailures)
		}

		zap.L().Info("enrichment complete",
			zap.Int("leads", len(leads)),
			zap.Int("profiles", stored),
			zap.Int("soft_failures", soft),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
