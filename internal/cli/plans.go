package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
)

func planCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plan",
		Aliases: []string{"plans"},
		Short:   "Manage game plans; strategies belong to the selected plan",
	}
	cmd.AddCommand(
		planAddCmd(a),
		planListCmd(a),
		planSelectCmd(a),
		planRenameCmd(a),
		planRemoveCmd(a),
		planDuplicateCmd(a),
	)
	return cmd
}

func planIDs(s *syncer.Coordinator) []string {
	var ids []string
	for _, g := range s.Local().GamePlans() {
		ids = append(ids, g.ID)
	}
	return ids
}

func planAddCmd(a *app) *cobra.Command {
	var in model.GamePlanInput
	var sel bool
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a game plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			if err := a.check(in); err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				g := s.AddGamePlan(in)
				if sel {
					s.Local().SelectGamePlan(g.ID)
				}
				fmt.Fprintf(a.out, "✓ Created plan %s (%s)\n", g.Name, short(g.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "what the plan is for")
	cmd.Flags().BoolVar(&sel, "select", false, "select the new plan")
	return cmd
}

func planListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List game plans; * marks the selected one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				selected, _ := s.Local().SelectedGamePlan()
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, " \tID\tNAME\tSTRATEGIES\tDESCRIPTION")
				for _, g := range s.Local().GamePlans() {
					mark := ""
					if g.ID == selected.ID {
						mark = "*"
					}
					n := len(s.Local().PartitionStrategies(g.ID))
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", mark, short(g.ID), g.Name, n, g.Description)
				}
				return w.Flush()
			})
		},
	}
}

func planSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Select the game plan strategy commands work on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("game plan", args[0], planIDs(s))
				if err != nil {
					return err
				}
				s.Local().SelectGamePlan(id)
				g, _ := s.Local().SelectedGamePlan()
				fmt.Fprintf(a.out, "✓ Selected %s\n", g.Name)
				return nil
			})
		},
	}
}

func planRenameCmd(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a game plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := model.GamePlanPatch{Name: &args[1]}
			if cmd.Flags().Changed("description") {
				p.Description = &description
			}
			if err := a.check(p); err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("game plan", args[0], planIDs(s))
				if err != nil {
					return err
				}
				g, _ := s.UpdateGamePlan(id, p)
				fmt.Fprintf(a.out, "✓ Renamed %s to %s\n", short(g.ID), g.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func planRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a game plan and all of its strategies",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("game plan", args[0], planIDs(s))
				if err != nil {
					return err
				}
				del, _ := s.DeleteGamePlan(id)
				fmt.Fprintf(a.out, "✓ Deleted plan %s and %d strategies\n", del.Plan.Name, len(del.Strategies))
				if del.Default != nil {
					fmt.Fprintf(a.out, "  Created %s since no plans were left\n", del.Default.Name)
				}
				return nil
			})
		},
	}
}

func planDuplicateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "dup <id> [name]",
		Aliases: []string{"duplicate", "copy"},
		Short:   "Copy a game plan with all of its strategies",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("game plan", args[0], planIDs(s))
				if err != nil {
					return err
				}
				var name string
				if len(args) == 2 {
					name = args[1]
				} else {
					for _, g := range s.Local().GamePlans() {
						if g.ID == id {
							name = g.Name + " (copy)"
						}
					}
				}
				g, _ := s.DuplicateGamePlan(id, name)
				fmt.Fprintf(a.out, "✓ Created plan %s (%s) with %d strategies\n", g.Name, short(g.ID), len(s.Local().PartitionStrategies(g.ID)))
				return nil
			})
		},
	}
}
