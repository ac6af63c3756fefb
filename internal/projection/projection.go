// Package projection derives score and time-budget totals from the strategies
// of one game plan. Results are recomputed from scratch on every call.
package projection

import (
	"fmt"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
)

// Timing holds the seconds available in each match phase.
type Timing struct {
	Auto    float64 `yaml:"auto" json:"auto"`
	Teleop  float64 `yaml:"teleop" json:"teleop"`
	Endgame float64 `yaml:"endgame" json:"endgame"`
}

// DefaultTiming is the FRC match timing: 15s auto, 2:15 teleop, 20s endgame.
func DefaultTiming() Timing {
	return Timing{Auto: 15, Teleop: 135, Endgame: 20}
}

func (t Timing) For(p model.Phase) float64 {
	switch p {
	case model.PhaseAuto:
		return t.Auto
	case model.PhaseTeleop:
		return t.Teleop
	case model.PhaseEndgame:
		return t.Endgame
	}
	return 0
}

func (t Timing) Total() float64 { return t.Auto + t.Teleop + t.Endgame }

type ScoreProjection struct {
	Auto    float64 `json:"auto"`
	Teleop  float64 `json:"teleop"`
	Endgame float64 `json:"endgame"`
	Total   float64 `json:"total"`
}

// Score sums expected points per phase. Defensive strategies score nothing.
func Score(strategies []model.Strategy) ScoreProjection {
	var p ScoreProjection
	for _, s := range strategies {
		if s.IsDefensive {
			continue
		}
		cycles := s.CyclesPerMatch
		if cycles == 0 {
			cycles = 1
		}
		pts := s.ExpectedPoints * float64(cycles)
		switch s.Phase {
		case model.PhaseAuto:
			p.Auto += pts
		case model.PhaseTeleop:
			p.Teleop += pts
		case model.PhaseEndgame:
			p.Endgame += pts
		}
	}
	p.Total = p.Auto + p.Teleop + p.Endgame
	return p
}

type PhaseBudget struct {
	Used      float64 `json:"used"`
	Available float64 `json:"available"`
	// Remaining goes negative when the plan asks for more time than the
	// phase has.
	Remaining float64 `json:"remaining"`
}

func (b PhaseBudget) OverCommitted() bool { return b.Remaining < 0 }

type TimeProjection struct {
	Auto    PhaseBudget `json:"auto"`
	Teleop  PhaseBudget `json:"teleop"`
	Endgame PhaseBudget `json:"endgame"`
	Total   PhaseBudget `json:"total"`
}

func (t TimeProjection) Phase(p model.Phase) PhaseBudget {
	switch p {
	case model.PhaseAuto:
		return t.Auto
	case model.PhaseTeleop:
		return t.Teleop
	case model.PhaseEndgame:
		return t.Endgame
	}
	return PhaseBudget{}
}

func (t TimeProjection) OverCommitted() bool {
	return t.Auto.OverCommitted() || t.Teleop.OverCommitted() || t.Endgame.OverCommitted()
}

// TimeBudget sums cycleTime × cyclesPerMatch per phase for non-defensive
// strategies. A strategy without a cycle count uses no time.
func TimeBudget(strategies []model.Strategy, timing Timing) TimeProjection {
	used := map[model.Phase]float64{}
	for _, s := range strategies {
		if s.IsDefensive {
			continue
		}
		used[s.Phase] += s.CycleTime * float64(s.CyclesPerMatch)
	}

	budget := func(p model.Phase) PhaseBudget {
		avail := timing.For(p)
		return PhaseBudget{Used: used[p], Available: avail, Remaining: avail - used[p]}
	}
	tp := TimeProjection{
		Auto:    budget(model.PhaseAuto),
		Teleop:  budget(model.PhaseTeleop),
		Endgame: budget(model.PhaseEndgame),
	}
	tp.Total = PhaseBudget{
		Used:      tp.Auto.Used + tp.Teleop.Used + tp.Endgame.Used,
		Available: timing.Total(),
	}
	tp.Total.Remaining = tp.Total.Available - tp.Total.Used
	return tp
}

// FormatDuration renders seconds as "45s" under a minute, "m:ss" otherwise.
func FormatDuration(seconds float64) string {
	neg := seconds < 0
	if neg {
		seconds = -seconds
	}
	s := int(seconds + 0.5)
	var out string
	if s < 60 {
		out = fmt.Sprintf("%ds", s)
	} else {
		out = fmt.Sprintf("%d:%02d", s/60, s%60)
	}
	if neg {
		return "-" + out
	}
	return out
}
