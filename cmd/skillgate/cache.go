package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/skillgate/pkg/models"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the fingerprint cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\n\n", stats.TotalEntries, stats.TotalHits)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tENTRIES\tCAPACITY\tDEFAULT TTL")
			for _, c := range stats.Categories {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.Category, c.Entries, c.Capacity, c.Category.DefaultTTL())
			}
			return w.Flush()
		},
	}

	var (
		expiredOnly bool
		category    string
	)
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if expiredOnly && category != "" {
				return fmt.Errorf("--expired and --category are mutually exclusive")
			}
			var cat models.CacheCategory
			if category != "" {
				var err error
				if cat, err = models.ParseCacheCategory(category); err != nil {
					return err
				}
			}

			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var n int64
			switch {
			case expiredOnly:
				n, err = a.cache.CleanupExpired(cmd.Context())
			case cat != "":
				n, err = a.cache.ClearCategory(cmd.Context(), cat)
			default:
				n, err = a.cache.ClearAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d cache entries.\n", n)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired entries")
	clearCmd.Flags().StringVar(&category, "category", "", "only remove entries in this category")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
