package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/skillgate/pkg/models"
)

func newToolsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List, validate and call structured tools",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tool schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tREQUIRED\tOPTIONAL\tDESCRIPTION")
			for _, s := range a.svc.Tools().Tools() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, paramList(s.Required), paramList(s.Optional), s.Description)
			}
			return w.Flush()
		},
	}

	var params string
	validateCmd := &cobra.Command{
		Use:   "validate <tool>",
		Short: "Validate parameters without executing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return printJSON(a.svc.Tools().Validate(args[0], p))
		},
	}
	validateCmd.Flags().StringVarP(&params, "params", "p", "{}", "parameters as a JSON object")

	var callParams string
	callCmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Validate and execute a built-in tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(callParams)
			if err != nil {
				return err
			}
			a, err := loadApp(*configPath, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			v := a.svc.Tools()
			call := v.CreateCall(args[0], p)
			if call.Status != models.ToolInvalid {
				if call, err = v.Execute(cmd.Context(), call, nil); err != nil {
					return err
				}
			}
			return printJSON(call)
		},
	}
	callCmd.Flags().StringVarP(&callParams, "params", "p", "{}", "parameters as a JSON object")

	cmd.AddCommand(listCmd, validateCmd, callCmd)
	return cmd
}

func paramList(m map[string]models.ParamSpec) string {
	if len(m) == 0 {
		return "-"
	}
	names := make([]string, 0, len(m))
	for n, p := range m {
		names = append(names, n+":"+string(p.Type))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func parseParams(raw string) (map[string]any, error) {
	var p map[string]any
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("parse --params: %w", err)
	}
	return p, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
