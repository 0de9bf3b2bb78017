package main

import (
	"fmt"
	"path/filepath"

	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/scheduler"
	"github.com/spf13/cobra"
)

func (a *app) stepCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Advance the orchestration by one stage",
		Long: `Advance the orchestration by one stage.

Human stages take the prompt from --message or, on an interactive terminal,
ask for it. Without input the stage is recorded as awaiting input and the
command exits with status 2; the same stage is presented again next time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.step(cmd, message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Human prompt for human stages")
	return cmd
}

func (a *app) step(cmd *cobra.Command, message string) error {
	m, err := a.mesh()
	if err != nil {
		return err
	}
	out, err := m.Step(cmd.Context(), scheduler.StepOptions{Message: message})
	if out.Blocked {
		fmt.Fprintf(a.stdout, "tick %d (%s): awaiting human input\n", out.Tick, out.Stage)
		return err
	}
	if err != nil {
		return err
	}

	w := a.stdout
	if out.Stage.IsHuman() {
		fmt.Fprintf(w, "tick %d (%s): prompt saved to %s\n", out.Tick, out.Stage,
			filepath.Join(m.Config().AgentsPath(), core.HumanID, string(core.Outbox), fmt.Sprintf("tik%d", out.Tick), core.KickoffFilename))
		fmt.Fprintln(w, "Re-run tickmesh to continue.")
		return nil
	}
	failed := out.Failed()
	fmt.Fprintf(w, "tick %d (%s): %d agents processed, %d failed\n", out.Tick, out.Stage, len(out.Results), len(failed))
	for _, r := range out.Results {
		status := "ok"
		if !r.OK() {
			status = string(r.Record.Failure)
		}
		fmt.Fprintf(w, "  %-24s %-10s %s\n", r.Agent, status, r.Selection.Target)
	}
	return nil
}
