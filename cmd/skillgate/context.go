package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/skillgate/pkg/contextchain"
	"github.com/pario-ai/skillgate/pkg/models"
)

func newContextCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Work with persisted context chains",
	}

	var (
		typ    string
		source string
		target string
		ttl    time.Duration
	)
	addCmd := &cobra.Command{
		Use:   "add <chain> <content>",
		Short: "Append an entry to a chain",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := models.ParseContextType(typ)
			if err != nil {
				return err
			}
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var opts []contextchain.EntryOption
			if target != "" {
				opts = append(opts, contextchain.WithTarget(target))
			}
			if cmd.Flags().Changed("ttl") {
				opts = append(opts, contextchain.WithTTL(ttl))
			}

			chains := a.svc.Chains()
			entry := chains.CreateContext(strings.Join(args[1:], " "), ct, source, opts...)
			if err := chains.AddToChain(cmd.Context(), args[0], entry); err != nil {
				return err
			}
			v := contextchain.ValidateContext(entry)
			fmt.Printf("Added %s to %s (valid=%t, confidence=%.2f)\n", entry.ID, args[0], v.Valid, v.Confidence)
			for _, issue := range v.Issues {
				fmt.Printf("  issue: %s\n", issue)
			}
			return nil
		},
	}
	addCmd.Flags().StringVarP(&typ, "type", "t", string(models.ContextUserInput), "context type")
	addCmd.Flags().StringVarP(&source, "source", "s", "cli", "source skill")
	addCmd.Flags().StringVar(&target, "target", "", "target skill")
	addCmd.Flags().DurationVar(&ttl, "ttl", 0, "entry lifetime (0 never expires; config default when unset)")

	var (
		query string
		topK  int
	)
	showCmd := &cobra.Command{
		Use:   "show <chain>",
		Short: "Show a chain, or its entries ranked against --query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			chains := a.svc.Chains()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if query != "" {
				ranked, err := chains.GetRelevantContext(cmd.Context(), args[0], query, topK)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "SCORE\tID\tTYPE\tSOURCE\tCONTENT")
				for _, r := range ranked {
					fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%v\n", r.Score, r.Entry.ID, r.Entry.Type, r.Entry.SourceSkill, r.Entry.Content)
				}
				return w.Flush()
			}

			chain, ok, err := chains.GetChain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Chain not found.")
				return nil
			}
			fmt.Fprintln(w, "ID\tTYPE\tSOURCE\tRELEVANCE\tCREATED\tCONTENT")
			for _, e := range chain.Entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%v\n",
					e.ID, e.Type, e.SourceSkill, e.RelevanceScore, e.CreatedAt.Format("2006-01-02T15:04:05"), e.Content)
			}
			return w.Flush()
		},
	}
	showCmd.Flags().StringVarP(&query, "query", "q", "", "rank entries against this text")
	showCmd.Flags().IntVarP(&topK, "top", "k", contextchain.DefaultTopK, "maximum ranked results")

	cmd.AddCommand(addCmd, showCmd)
	return cmd
}
