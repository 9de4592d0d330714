package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "skillgate",
		Short:         "skillgate: cache-first skill orchestration with confidence gating",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults and SKILLGATE_ env when empty)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMCPCmd(&configPath),
		newQueryCmd(&configPath),
		newCacheCmd(&configPath),
		newSkillsCmd(&configPath),
		newToolsCmd(&configPath),
		newContextCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
