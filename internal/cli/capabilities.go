package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
	"github.com/DoyleJ11/frc-plan-sync/internal/view"
)

func capCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cap",
		Aliases: []string{"caps", "capability"},
		Short:   "Manage robot capabilities in build order",
	}
	cmd.AddCommand(
		capAddCmd(a),
		capListCmd(a),
		capUpdateCmd(a),
		capMoveCmd(a),
		capRemoveCmd(a),
		capClearCmd(a),
		capSortCmd(a),
	)
	return cmd
}

func capIDs(s *syncer.Coordinator) []string {
	var ids []string
	for _, c := range s.Local().Capabilities() {
		ids = append(ids, c.ID)
	}
	return ids
}

var priorityColors = map[model.Priority]*color.Color{
	model.PriorityCritical: color.New(color.FgRed, color.Bold),
	model.PriorityHigh:     color.New(color.FgRed),
	model.PriorityMedium:   color.New(color.FgYellow),
	model.PriorityLow:      color.New(color.FgGreen),
	model.PriorityVeryLow:  color.New(color.FgHiBlack),
}

func priorityLabel(p model.Priority) string {
	if c, ok := priorityColors[p]; ok {
		return c.Sprint(p.Label())
	}
	return p.Label()
}

func capAddCmd(a *app) *cobra.Command {
	var in model.CapabilityInput
	var priority string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a capability at the bottom of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			in.Priority = model.Priority(priority)
			if err := a.check(in); err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				c := s.AddCapability(in)
				fmt.Fprintf(a.out, "✓ Added #%d %s (%s)\n", c.Rank, c.Title, short(c.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "critical, high, medium, low or very-low")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "longer description")
	return cmd
}

func capListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List capabilities in the current display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				items := s.Local().SortedCapabilities()
				if len(items) == 0 {
					fmt.Fprintln(a.out, "No capabilities yet. Add one with: planner cap add <title>")
					return nil
				}
				localOnly := s.Local().LocalOnly()
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "RANK\tID\tTITLE\tPRIORITY\t")
				for _, c := range items {
					flag := ""
					if _, ok := localOnly[c.ID]; ok {
						flag = color.New(color.FgYellow).Sprint("not synced")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.Rank, short(c.ID), c.Title, priorityLabel(c.Priority), flag)
				}
				return w.Flush()
			})
		},
	}
}

func capUpdateCmd(a *app) *cobra.Command {
	var title, description, priority string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a capability's title, description or priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.CapabilityPatch
			if cmd.Flags().Changed("title") {
				p.Title = &title
			}
			if cmd.Flags().Changed("description") {
				p.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				pr := model.Priority(priority)
				p.Priority = &pr
			}
			if p == (model.CapabilityPatch{}) {
				return fmt.Errorf("nothing to update; pass --title, --description or --priority")
			}
			if err := a.check(p); err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("capability", args[0], capIDs(s))
				if err != nil {
					return err
				}
				c, _ := s.UpdateCapability(id, p)
				fmt.Fprintf(a.out, "✓ Updated %s: %s (%s)\n", short(c.ID), c.Title, c.Priority.Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority")
	return cmd
}

func capMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <over-id>",
		Short: "Move a capability to another capability's position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				ids := capIDs(s)
				active, err := resolve("capability", args[0], ids)
				if err != nil {
					return err
				}
				over, err := resolve("capability", args[1], ids)
				if err != nil {
					return err
				}
				if !s.ReorderCapabilities(active, over) {
					fmt.Fprintln(a.out, "Nothing moved.")
					return nil
				}
				for _, c := range s.Local().Capabilities() {
					if c.ID == active {
						fmt.Fprintf(a.out, "✓ %s is now #%d\n", c.Title, c.Rank)
					}
				}
				return nil
			})
		},
	}
}

func capRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a capability",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				id, err := resolve("capability", args[0], capIDs(s))
				if err != nil {
					return err
				}
				s.DeleteCapability(id)
				fmt.Fprintf(a.out, "✓ Deleted %s\n", short(id))
				return nil
			})
		},
	}
}

func capClearCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every capability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				if all {
					caps, strats := s.ClearAll()
					fmt.Fprintf(a.out, "✓ Cleared %d capabilities and %d strategies\n", caps, strats)
					return nil
				}
				fmt.Fprintf(a.out, "✓ Cleared %d capabilities\n", s.ClearCapabilities())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also clear the selected game plan's strategies")
	return cmd
}

func capSortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "sort <rank|title|priority>",
		Short:     "Sort the list display; repeat to flip direction",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(view.FieldRank), string(view.FieldTitle), string(view.FieldPriority)},
		RunE: func(cmd *cobra.Command, args []string) error {
			f := view.Field(args[0])
			if !view.ValidCapabilityField(f) {
				return fmt.Errorf("cannot sort capabilities by %q", args[0])
			}
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				st := s.Local().SortCapabilitiesBy(f)
				fmt.Fprintf(a.out, "Capabilities sorted by %s (%s)\n", st.Field, st.Direction)
				return nil
			})
		},
	}
}
