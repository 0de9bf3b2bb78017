package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hupe1980/tickmesh/scheduler"
	"github.com/hupe1980/tickmesh/state"
	"github.com/spf13/cobra"
)

var (
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(12)
	waitStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current tick and the next stage",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := a.mesh()
			if err != nil {
				return err
			}
			plan, err := m.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, renderStatus(plan))
			return nil
		},
	}
}

func renderStatus(plan scheduler.Plan) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}
	status := string(plan.Current.Status)
	if plan.Current.Status == state.StatusAwaitingInput {
		status = waitStyle.Render(status)
	}
	next := fmt.Sprintf("tick %d · %s", plan.Target, plan.Stage)
	var who string
	if plan.Stage.IsHuman() {
		who = "human"
	} else {
		ids := make([]string, 0, len(plan.Agents))
		for _, ag := range plan.Agents {
			ids = append(ids, ag.ID)
		}
		who = fmt.Sprintf("%d agents: %s", len(ids), strings.Join(ids, ", "))
	}
	lines := []string{
		headStyle.Render("tickmesh"),
		row("tick", fmt.Sprintf("%d", plan.Current.Tick)),
		row("status", status),
		row("next", next),
		row("acting", who),
	}
	if !plan.Current.UpdatedAt.IsZero() {
		lines = append(lines, row("updated", plan.Current.UpdatedAt.Format("2006-01-02 15:04:05 MST")))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
