package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create tickmesh.yaml, the state file and the agent tree",
		Long: `Create tickmesh.yaml, the state file and the agent tree.

Existing files are never overwritten, so setup is safe to run again.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := a.mesh()
			if err != nil {
				return err
			}
			report, err := m.Setup()
			if err != nil {
				return err
			}
			cfg := m.Config()
			if report.ConfigFile {
				fmt.Fprintf(a.stdout, "wrote %s\n", cfg.Path)
			}
			if report.Bootstrapped {
				fmt.Fprintf(a.stdout, "bootstrapped %s (tick 0)\n", cfg.StatePath())
			} else {
				fmt.Fprintf(a.stdout, "state exists at %s (tick %d), left untouched\n", cfg.StatePath(), report.State.Tick)
			}
			fmt.Fprintf(a.stdout, "scaffolded %d agents under %s (%d paths created)\n", m.Registry().Len(), cfg.AgentsPath(), len(report.Created))
			return nil
		},
	}
}
