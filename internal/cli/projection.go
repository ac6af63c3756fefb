package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/projection"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
)

func projectionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "projection",
		Aliases: []string{"proj"},
		Short:   "Show expected score and time use of the selected game plan",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				local := s.Local()
				g, _ := local.SelectedGamePlan()
				writeProjection(a, g.Name, local.ScoreProjection(), local.TimeProjection())
				return nil
			})
		},
	}
}

func writeProjection(a *app, plan string, score projection.ScoreProjection, tp projection.TimeProjection) {
	red := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(a.out, "%s\n\n", color.New(color.Bold).Sprint(plan))

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tPOINTS\tUSED\tAVAILABLE\tREMAINING")
	row := func(name string, pts float64, b projection.PhaseBudget) {
		remaining := projection.FormatDuration(b.Remaining)
		if b.OverCommitted() {
			remaining = red.Sprint(remaining)
		}
		fmt.Fprintf(w, "%s\t%g\t%s\t%s\t%s\n", name, pts,
			projection.FormatDuration(b.Used), projection.FormatDuration(b.Available), remaining)
	}
	row(string(model.PhaseAuto), score.Auto, tp.Auto)
	row(string(model.PhaseTeleop), score.Teleop, tp.Teleop)
	row(string(model.PhaseEndgame), score.Endgame, tp.Endgame)
	row("total", score.Total, tp.Total)
	_ = w.Flush()

	if tp.OverCommitted() {
		fmt.Fprintln(a.out, red.Sprint("\nThis plan needs more time than the match has."))
	}
}
