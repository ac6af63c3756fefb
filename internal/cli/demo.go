package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/syncer"
)

// demoCode names the session that never leaves this machine.
const demoCode = "demo"

func isDemo(code string) bool { return remote.NormalizeCode(code) == demoCode }

func sessionDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Reset the local demo session to sample data",
		Long: `Load a sample robot and two game plans into the "demo" session.
The demo session is never sent to a server; run this again to start over.
Use it with --session demo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Session = demoCode
			return a.withSession(cmd.Context(), func(s *syncer.Coordinator) error {
				caps, plans, strats := demoData(a.now())
				s.Import(caps, plans, strats)
				s.Local().SelectGamePlan(plans[0].ID)
				fmt.Fprintf(a.out, "✓ Loaded demo session: %d capabilities, %d plans, %d strategies\n",
					len(caps), len(plans), len(strats))
				fmt.Fprintln(a.out, "  Try: planner --session demo strat list")
				return nil
			})
		},
	}
}

func demoData(now time.Time) ([]model.Capability, []model.GamePlan, []model.Strategy) {
	capability := func(title, description string, p model.Priority) model.Capability {
		return model.Capability{
			ID: uuid.NewString(), Title: title, Description: description, Priority: p,
			CreatedAt: now, UpdatedAt: now,
		}
	}
	caps := []model.Capability{
		capability("Swerve drivetrain", "Fast, maneuverable base", model.PriorityCritical),
		capability("Coral intake", "Pick up coral from the station", model.PriorityHigh),
		capability("Coral scoring L2-L4", "Elevator and end effector", model.PriorityHigh),
		capability("Algae removal", "Knock algae off the reef", model.PriorityMedium),
		capability("Deep cage climb", "", model.PriorityMedium),
		capability("Processor scoring", "", model.PriorityLow),
		capability("Net scoring", "Shoot algae into the barge net", model.PriorityVeryLow),
	}
	for i := range caps {
		caps[i].Rank = i + 1
	}

	quals := model.GamePlan{
		ID: uuid.NewString(), Name: "Qualifications", Description: "Score steadily and climb for ranking points",
		CreatedAt: now, UpdatedAt: now,
	}
	later := now.Add(time.Millisecond)
	elims := model.GamePlan{
		ID: uuid.NewString(), Name: "Eliminations", Description: "Cheap points and defense for the alliance",
		CreatedAt: later, UpdatedAt: later,
	}

	var strats []model.Strategy
	add := func(plan model.GamePlan, s model.Strategy) {
		s.ID = uuid.NewString()
		s.GamePlanID = plan.ID
		s.CreatedAt, s.UpdatedAt = now, now
		rank := 1
		for _, x := range strats {
			if x.GamePlanID == plan.ID {
				rank++
			}
		}
		s.Rank = rank
		strats = append(strats, s)
	}
	add(quals, model.Strategy{Phase: model.PhaseAuto, Title: "Leave and score one coral", ExpectedPoints: 10})
	add(quals, model.Strategy{Phase: model.PhaseTeleop, Title: "Coral L4 cycles", ExpectedPoints: 5, CycleTime: 15, CyclesPerMatch: 6})
	add(quals, model.Strategy{Phase: model.PhaseTeleop, Title: "Algae to processor", ExpectedPoints: 6, CycleTime: 12, CyclesPerMatch: 2})
	add(quals, model.Strategy{Phase: model.PhaseEndgame, Title: "Deep climb", ExpectedPoints: 12, CycleTime: 10, CyclesPerMatch: 1})
	add(elims, model.Strategy{Phase: model.PhaseAuto, Title: "Leave", ExpectedPoints: 3})
	add(elims, model.Strategy{Phase: model.PhaseTeleop, Title: "Defend the opposing reef", IsDefensive: true, Notes: "Watch pin counts"})
	add(elims, model.Strategy{Phase: model.PhaseTeleop, Title: "Coral L2 cycles", ExpectedPoints: 3, CycleTime: 10, CyclesPerMatch: 8})
	add(elims, model.Strategy{Phase: model.PhaseEndgame, Title: "Park", ExpectedPoints: 2})

	return caps, []model.GamePlan{quals, elims}, strats
}
