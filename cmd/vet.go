package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/podreach/leadpipe/internal/config"
	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/vetting"
	"github.com/podreach/leadpipe/pkg/anthropic"
)

var vetCriteriaPath string

var vetCmd = &cobra.Command{
	Use:   "vet",
	Short: "Score enriched leads against outreach criteria",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if vetCriteriaPath != "" {
			cfg.Criteria.File = vetCriteriaPath
		}
		if err := cfg.Validate("vet"); err != nil {
			return err
		}

		crit, err := config.LoadCriteria(cfg.Criteria.File)
		if err != nil {
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
		ids := make([]string, len(leads))
		for i, l := range leads {
			ids[i] = l.ID
		}

		profiles, err := s.ListProfiles(ctx, ids)
		if err != nil {
			return eris.Wrap(err, "list profiles")
		}
		if len(profiles) == 0 {
			zap.L().Info("no enriched profiles to vet")
			return nil
		}

		scorer := vetting.NewScorer(anthropic.NewClient(cfg.Anthropic.Key), cfg.Vetting)
		results := scorer.VetAll(ctx, profiles, crit)

		if err := s.InsertVettingResults(ctx, results); err != nil {
			return eris.Wrap(err, "store vetting results")
		}

		var byTier [5]int
		for _, r := range results {
			switch r.QualityTier {
			case model.TierA:
				byTier[0]++
			case model.TierB:
				byTier[1]++
			case model.TierC:
				byTier[2]++
			case model.TierD:
				byTier[3]++
			default:
				byTier[4]++
			}
		}

		zap.L().Info("vetting complete",
			zap.Int("profiles", len(profiles)),
			zap.Int("tier_a", byTier[0]),
			zap.Int("tier_b", byTier[1]),
			zap.Int("tier_c", byTier[2]),
			zap.Int("tier_d", byTier[3]),
			zap.Int("unvetted", byTier[4]),
		)
		return nil
	},
}

func init() {
	vetCmd.Flags().StringVar(&vetCriteriaPath, "criteria", "", "path to criteria YAML (default from config)")
	rootCmd.AddCommand(vetCmd)
}
