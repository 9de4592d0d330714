package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/skillgate/pkg/models"
)

func newQueryCmd(configPath *string) *cobra.Command {
	var (
		contextJSON    string
		minConfidence  float64
		conversationID string
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a query through the orchestrator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.QueryRequest{
				Query:          strings.Join(args, " "),
				MinConfidence:  minConfidence,
				ConversationID: conversationID,
			}
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &req.Context); err != nil {
					return fmt.Errorf("parse --context: %w", err)
				}
			}

			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.svc.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "STATUS\t%s\n", res.Status)
			fmt.Fprintf(w, "SKILL\t%s\n", res.SkillUsed)
			fmt.Fprintf(w, "MODEL\t%s\n", res.ModelUsed)
			fmt.Fprintf(w, "CONFIDENCE\t%.2f (%s)\n", res.Confidence, res.ConfidenceLevel)
			fmt.Fprintf(w, "CACHE HIT\t%t\n", res.CacheHit)
			fmt.Fprintf(w, "DURATION\t%s\n", res.Duration)
			if res.Error != "" {
				fmt.Fprintf(w, "ERROR\t%s\n", res.Error)
			}
			for _, warn := range res.Warnings {
				fmt.Fprintf(w, "WARNING\t%s\n", warn)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if res.Answer != nil {
				data, err := json.MarshalIndent(res.Answer, "", "  ")
				if err != nil {
					return err
				}
				fmt.Printf("\n%s\n", data)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextJSON, "context", "", "context as a JSON object")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "admission threshold (config default when 0)")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "record the exchange in this context chain")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result envelope")
	return cmd
}
