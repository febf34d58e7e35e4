package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

var (
	prefsUser     string
	prefsSortBy   string
	prefsSortDir  string
	prefsPageSize int
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or set reviewer queue defaults",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a reviewer's queue defaults",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("prefs"); err != nil {
			return err
		}

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		prefs, err := review.NewService(s).Preferences(ctx, prefsUser)
		if err != nil {
			return err
		}

		fmt.Printf("Reviewer:   %s\n", prefs.UserID)
		fmt.Printf("Sort by:    %s\n", prefs.DefaultSortBy)
		fmt.Printf("Sort order: %s\n", prefs.DefaultSortOrder)
		fmt.Printf("Page size:  %d\n", prefs.DefaultPageSize)
		if len(prefs.SavedFilters) > 0 {
			fmt.Println("Saved filters:")
			for name, f := range prefs.SavedFilters {
				fmt.Printf("  %-15s tier=%s status=%s search=%q\n", name, f.Tier, f.Status, f.SearchTerm)
			}
		}
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a reviewer's queue defaults",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("prefs"); err != nil {
			return err
		}

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		svc := review.NewService(s)

		// Start from the stored record so unset flags keep their value.
		prefs, err := svc.Preferences(ctx, prefsUser)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("sort-by") {
			prefs.DefaultSortBy = model.SortField(prefsSortBy)
		}
		if cmd.Flags().Changed("sort-order") {
			prefs.DefaultSortOrder = model.SortOrder(prefsSortDir)
		}
		if cmd.Flags().Changed("page-size") {
			prefs.DefaultPageSize = prefsPageSize
		}

		if err := svc.SavePreferences(ctx, prefs); err != nil {
			return err
		}

		fmt.Printf("Preferences saved for %s\n", prefs.UserID)
		return nil
	},
}

func init() {
	prefsCmd.PersistentFlags().StringVar(&prefsUser, "user", "", "reviewer id (required)")
	_ = prefsCmd.MarkPersistentFlagRequired("user")

	prefsSetCmd.Flags().StringVar(&prefsSortBy, "sort-by", "", "default sort field: date_added, score, name")
	prefsSetCmd.Flags().StringVar(&prefsSortDir, "sort-order", "", "default sort order: asc or desc")
	prefsSetCmd.Flags().IntVar(&prefsPageSize, "page-size", 0, "default queue page size")

	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}
