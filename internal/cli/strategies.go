package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
	"github.com/DoyleJ11/frc-plan-sync/internal/view"
)

func stratCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "strat",
		Aliases: []string{"strats", "strategy"},
		Short:   "Manage the selected game plan's match strategies",
	}
	cmd.AddCommand(
		stratAddCmd(a),
		stratListCmd(a),
		stratUpdateCmd(a),
		stratMoveCmd(a),
		stratRemoveCmd(a),
		stratClearCmd(a),
		stratSortCmd(a),
		stratFilterCmd(a),
	)
	return cmd
}

// stratIDs lists the selected plan's strategies; the other plans are out of
// reach until selected.
func stratIDs(s *syncer.Coordinator) []string {
	var ids []string
	for _, x := range s.Local().SelectedStrategies() {
		ids = append(ids, x.ID)
	}
	return ids
}

func stratAddCmd(a *app) *cobra.Command {
	var (
		in    model.StrategyInput
		phase string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a strategy to the selected game plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			in.Phase = model.Phase(phase)
			if err := a.check(in); err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				x := s.AddStrategy(in)
				g, _ := s.Local().SelectedGamePlan()
				fmt.Fprintf(a.out, "✓ Added #%d %s to %s (%s)\n", x.Rank, x.Title, g.Name, short(x.ID))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&phase, "phase", string(model.PhaseTeleop), "auto, teleop or endgame")
	f.Float64Var(&in.ExpectedPoints, "points", 0, "expected points per cycle")
	f.Float64Var(&in.CycleTime, "cycle-time", 0, "seconds per cycle")
	f.IntVar(&in.CyclesPerMatch, "cycles", 0, "cycles per match")
	f.BoolVar(&in.IsDefensive, "defensive", false, "defensive play; scores no points")
	f.StringVarP(&in.Description, "description", "d", "", "longer description")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	return cmd
}

func stratListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the selected game plan's strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				local := s.Local()
				g, _ := local.SelectedGamePlan()
				st := local.State()
				fmt.Fprintf(a.out, "%s (phase: %s, sort: %s %s)\n", color.New(color.Bold).Sprint(g.Name), st.PhaseFilter, st.StrategySort.Field, st.StrategySort.Direction)

				items := local.SortedStrategies()
				if len(items) == 0 {
					fmt.Fprintln(a.out, "No strategies. Add one with: planner strat add <title> --phase teleop --points 5")
					return nil
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RANK\tID\tPHASE\tTITLE\tPOINTS\tCYCLE\tCYCLES\t")
				for _, x := range items {
					title := x.Title
					if x.IsDefensive {
						title += " " + color.New(color.FgCyan).Sprint("[defense]")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%s\t%s\t\n",
						x.Rank, short(x.ID), x.Phase, title, x.ExpectedPoints, cycleTime(x), cycles(x))
				}
				return w.Flush()
			})
		},
	}
}

func cycleTime(x model.Strategy) string {
	if x.CycleTime == 0 {
		return "-"
	}
	return fmt.Sprintf("%gs", x.CycleTime)
}

func cycles(x model.Strategy) string {
	if x.CyclesPerMatch == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", x.CyclesPerMatch)
}

func stratUpdateCmd(a *app) *cobra.Command {
	var (
		title, description, notes, phase string
		points, cycleSecs                float64
		cycleCount                       int
		defensive                        bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var p model.StrategyPatch
			if changed("title") {
				p.Title = &title
			}
			if changed("description") {
				p.Description = &description
			}
			if changed("notes") {
				p.Notes = &notes
			}
			if changed("phase") {
				ph := model.Phase(phase)
				p.Phase = &ph
			}
			if changed("points") {
				p.ExpectedPoints = &points
			}
			if changed("cycle-time") {
				p.CycleTime = &cycleSecs
			}
			if changed("cycles") {
				p.CyclesPerMatch = &cycleCount
			}
			if changed("defensive") {
				p.IsDefensive = &defensive
			}
			if p == (model.StrategyPatch{}) {
				return errors.New("nothing to update; pass at least one field flag")
			}
			if err := a.check(p); err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("strategy", args[0], stratIDs(s))
				if err != nil {
					return err
				}
				x, _ := s.UpdateStrategy(id, p)
				fmt.Fprintf(a.out, "✓ Updated %s: %s\n", short(x.ID), x.Title)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&title, "title", "t", "", "new title")
	f.StringVarP(&description, "description", "d", "", "new description")
	f.StringVar(&notes, "notes", "", "new notes")
	f.StringVar(&phase, "phase", "", "auto, teleop or endgame")
	f.Float64Var(&points, "points", 0, "expected points per cycle")
	f.Float64Var(&cycleSecs, "cycle-time", 0, "seconds per cycle, 0 to unset")
	f.IntVar(&cycleCount, "cycles", 0, "cycles per match, 0 to unset")
	f.BoolVar(&defensive, "defensive", false, "defensive play")
	return cmd
}

func stratMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <over-id>",
		Short: "Move a strategy to another strategy's position in the same plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				ids := stratIDs(s)
				active, err := resolve("strategy", args[0], ids)
				if err != nil {
					return err
				}
				over, err := resolve("strategy", args[1], ids)
				if err != nil {
					return err
				}
				if !s.ReorderStrategies(active, over) {
					fmt.Fprintln(a.out, "Nothing moved.")
					return nil
				}
				for _, x := range s.Local().SelectedStrategies() {
					if x.ID == active {
						fmt.Fprintf(a.out, "✓ %s is now #%d\n", x.Title, x.Rank)
					}
				}
				return nil
			})
		},
	}
}

func stratRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a strategy",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("strategy", args[0], stratIDs(s))
				if err != nil {
					return err
				}
				s.DeleteStrategy(id)
				fmt.Fprintf(a.out, "✓ Deleted %s\n", short(id))
				return nil
			})
		},
	}
}

func stratClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every strategy in the selected game plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				fmt.Fprintf(a.out, "✓ Cleared %d strategies\n", s.ClearStrategies())
				return nil
			})
		},
	}
}

func stratSortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sort <rank|title|expectedPoints|phase>",
		Short: "Sort the list display; repeat to flip direction",
		Args:  cobra.ExactArgs(1),
		ValidArgs: []string{
			string(view.FieldRank), string(view.FieldTitle), string(view.FieldExpectedPoints), string(view.FieldPhase),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f := view.Field(args[0])
			if !view.ValidStrategyField(f) {
				return fmt.Errorf("cannot sort strategies by %q", args[0])
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				st := s.Local().SortStrategiesBy(f)
				fmt.Fprintf(a.out, "Strategies sorted by %s (%s)\n", st.Field, st.Direction)
				return nil
			})
		},
	}
}

func stratFilterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "filter <all|auto|teleop|endgame>",
		Short:     "Only list strategies of one phase",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(view.PhaseAll), string(model.PhaseAuto), string(model.PhaseTeleop), string(model.PhaseEndgame)},
		RunE: func(cmd *cobra.Command, args []string) error {
			f := view.PhaseFilter(args[0])
			if f != view.PhaseAll && !model.Phase(f).Valid() {
				return fmt.Errorf("unknown phase %q", args[0])
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				s.Local().SetPhaseFilter(f)
				fmt.Fprintf(a.out, "Showing %s strategies\n", f)
				return nil
			})
		},
	}
}
