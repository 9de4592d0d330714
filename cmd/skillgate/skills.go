package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSkillsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Inspect the skill registry",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tCONFIDENCE\tSCRIPTS")
			for _, s := range a.svc.ListSkills() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%t\n", s.ID, s.Name, s.Category, s.Confidence, s.HasScripts)
			}
			return w.Flush()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one skill with its resolved dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			s, ok := a.svc.GetSkill(args[0])
			if !ok {
				return fmt.Errorf("unknown skill %q", args[0])
			}
			order, err := a.svc.ResolveDependencies(s.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", s.ID)
			fmt.Fprintf(w, "NAME\t%s\n", s.Name)
			fmt.Fprintf(w, "CATEGORY\t%s\n", s.Category)
			fmt.Fprintf(w, "DESCRIPTION\t%s\n", s.Description)
			fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", s.Confidence)
			fmt.Fprintf(w, "PEERS\t%s\n", strings.Join(s.PeerSkills, ", "))
			fmt.Fprintf(w, "LOAD ORDER\t%s\n", strings.Join(order, " -> "))
			return w.Flush()
		},
	}

	matchCmd := &cobra.Command{
		Use:   "match <task>",
		Short: "Suggest skills whose triggers appear in the task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			matches := a.svc.MatchSkills("", strings.Join(args, " "))
			if len(matches) == 0 {
				fmt.Println("No skills match.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SKILL\tTRIGGER\tCONFIDENCE")
			for _, m := range matches {
				fmt.Fprintf(w, "%s\t%s\t%.2f\n", m.SkillID, m.Trigger, m.Confidence)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(listCmd, showCmd, matchCmd)
	return cmd
}
