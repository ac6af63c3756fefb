package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name   string
		strats []model.Strategy
		want   ScoreProjection
	}{
		{
			name:   "cycles multiply points",
			strats: []model.Strategy{{Phase: model.PhaseTeleop, ExpectedPoints: 4, CyclesPerMatch: 3}},
			want:   ScoreProjection{Teleop: 12, Total: 12},
		},
		{
			name:   "unset cycles counts raw points",
			strats: []model.Strategy{{Phase: model.PhaseAuto, ExpectedPoints: 7}},
			want:   ScoreProjection{Auto: 7, Total: 7},
		},
		{
			name: "defensive strategies contribute nothing",
			strats: []model.Strategy{
				{Phase: model.PhaseEndgame, ExpectedPoints: 50, CyclesPerMatch: 2, IsDefensive: true},
				{Phase: model.PhaseTeleop, ExpectedPoints: 100, IsDefensive: true},
			},
			want: ScoreProjection{},
		},
		{
			name: "buckets and total",
			strats: []model.Strategy{
				{Phase: model.PhaseAuto, ExpectedPoints: 6},
				{Phase: model.PhaseTeleop, ExpectedPoints: 2, CyclesPerMatch: 10},
				{Phase: model.PhaseEndgame, ExpectedPoints: 12},
				{Phase: model.PhaseTeleop, ExpectedPoints: 99, IsDefensive: true},
			},
			want: ScoreProjection{Auto: 6, Teleop: 20, Endgame: 12, Total: 38},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.strats))
		})
	}
}

func TestTimeBudget_OverCommitIsNotClamped(t *testing.T) {
	strats := []model.Strategy{
		{Phase: model.PhaseTeleop, CycleTime: 10, CyclesPerMatch: 9},
		{Phase: model.PhaseTeleop, CycleTime: 20, CyclesPerMatch: 3},
		{Phase: model.PhaseTeleop, CycleTime: 30, CyclesPerMatch: 5, IsDefensive: true},
	}
	tp := TimeBudget(strats, DefaultTiming())

	assert.Equal(t, 150.0, tp.Teleop.Used)
	assert.Equal(t, 135.0, tp.Teleop.Available)
	assert.Equal(t, -15.0, tp.Teleop.Remaining)
	assert.True(t, tp.Teleop.OverCommitted())
	assert.True(t, tp.OverCommitted())
	assert.Equal(t, 170.0-150.0, tp.Total.Remaining)
}

func TestTimeBudget_MissingCyclesUsesNoTime(t *testing.T) {
	tp := TimeBudget([]model.Strategy{{Phase: model.PhaseAuto, CycleTime: 8}}, DefaultTiming())
	assert.Equal(t, 0.0, tp.Auto.Used)
	assert.Equal(t, 15.0, tp.Auto.Remaining)
}

func TestTimeBudget_CustomTiming(t *testing.T) {
	timing := Timing{Auto: 20, Teleop: 120, Endgame: 30}
	tp := TimeBudget([]model.Strategy{{Phase: model.PhaseEndgame, CycleTime: 10, CyclesPerMatch: 2}}, timing)
	assert.Equal(t, PhaseBudget{Used: 20, Available: 30, Remaining: 10}, tp.Endgame)
	assert.Equal(t, 170.0, tp.Total.Available)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "15s", FormatDuration(15))
	assert.Equal(t, "2:15", FormatDuration(135))
	assert.Equal(t, "1:00", FormatDuration(60))
	assert.Equal(t, "-15s", FormatDuration(-15))
}
