package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/store"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
)

func watchCmd(a *app) *cobra.Command {
	var showProjection bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a session live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.ServerURL == "" {
				return errNoServer
			}
			if a.cfg.Session == "" {
				return errors.New("no session to watch; pass --session")
			}
			if isDemo(a.cfg.Session) {
				return errors.New("the demo session is local only; there is nothing to watch")
			}
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *syncer.Coordinator) error {
				dim := color.New(color.FgHiBlack)
				stamp := func() string { return dim.Sprint(a.now().Format(time.TimeOnly)) }

				lost := make(chan struct{}, 1)
				s.OnStatus(func(st syncer.Status) {
					if st == syncer.StatusDisconnected {
						select {
						case lost <- struct{}{}:
						default:
						}
					}
					c := color.New(color.FgYellow)
					if st == syncer.StatusConnected {
						c = color.New(color.FgGreen)
					}
					fmt.Fprintf(a.out, "%s %s\n", stamp(), c.Sprint(st))
				})
				s.OnRemoteUpdate(func(v int64) {
					fmt.Fprintf(a.out, "%s %s\n", stamp(), color.New(color.FgCyan).Sprintf("teammate change (version %d)", v))
				})
				s.Local().OnChange(func(st store.State) {
					fmt.Fprintf(a.out, "%s %d capabilities, %d plans, %d strategies\n",
						stamp(), len(st.Capabilities), len(st.GamePlans), len(st.Strategies))
					if showProjection {
						g, _ := s.Local().SelectedGamePlan()
						writeProjection(a, g.Name, s.Local().ScoreProjection(), s.Local().TimeProjection())
					}
				})

				st := s.Local().State()
				fmt.Fprintf(a.out, "%s watching %s: %d capabilities, %d plans, %d strategies\n",
					stamp(), s.Session(), len(st.Capabilities), len(st.GamePlans), len(st.Strategies))

				select {
				case <-ctx.Done():
					return nil
				case <-lost:
					return errors.New("lost connection to the server")
				}
			})
		},
	}
	cmd.Flags().BoolVar(&showProjection, "projection", false, "print the projection after every change")
	return cmd
}
