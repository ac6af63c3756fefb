package transfer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/store"
)

var t0 = time.Date(2026, 2, 14, 18, 30, 0, 0, time.UTC)

func TestBuildWriteParse(t *testing.T) {
	st := store.State{
		Capabilities: []model.Capability{{ID: "c1", Rank: 1, Title: "Intake", Priority: model.PriorityHigh, CreatedAt: t0, UpdatedAt: t0}},
		GamePlans:    []model.GamePlan{{ID: "p1", Name: "Quals", CreatedAt: t0, UpdatedAt: t0}},
		Strategies: []model.Strategy{{
			ID: "s1", GamePlanID: "p1", Rank: 1, Phase: model.PhaseTeleop, Title: "Cycle coral",
			ExpectedPoints: 4, CycleTime: 9.5, CyclesPerMatch: 8, CreatedAt: t0, UpdatedAt: t0,
		}},
	}
	doc := Build("team254", st, t0)
	assert.Equal(t, Version, doc.Version)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))
	assert.Contains(t, buf.String(), "\n  \"sessionCode\": \"team254\"")

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestBuild_EmptyListsStayArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build("x", store.State{}, t0)))
	assert.Contains(t, buf.String(), `"capabilities": []`)
	assert.Contains(t, buf.String(), `"strategies": []`)
}

func TestParse_LegacyDocument(t *testing.T) {
	in := `{
	  "version": "1.0",
	  "exportedAt": "2025-03-01T10:00:00.000Z",
	  "sessionCode": "old",
	  "capabilities": [
	    {"id": "a", "rank": 1, "title": "Shooter", "points": 25},
	    {"id": "b", "rank": 2, "title": "Climb", "points": 10},
	    {"id": "c", "rank": 3, "title": "Park", "points": 0.5}
	  ],
	  "strategies": [
	    {"id": "s1", "rank": 1, "phase": "auto", "title": "Leave", "expectedPoints": 3},
	    {"id": "s2", "rank": 2, "phase": "endgame", "title": "Hang", "expectedPoints": 12, "gamePlanId": "default"},
	    {"id": "s3", "rank": 3, "phase": "teleop", "title": "Cycle", "expectedPoints": 2, "gamePlanId": "old-plan"}
	  ]
	}`
	doc, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, doc.GamePlans, 1)
	plan := doc.GamePlans[0]
	assert.Equal(t, model.DefaultGamePlanName, plan.Name)
	assert.NotEmpty(t, plan.ID)
	require.Len(t, doc.Strategies, 3)
	for _, s := range doc.Strategies {
		assert.Equal(t, plan.ID, s.GamePlanID, s.ID)
	}

	var prios []model.Priority
	for _, c := range doc.Capabilities {
		prios = append(prios, c.Priority)
	}
	assert.Equal(t, []model.Priority{model.PriorityCritical, model.PriorityHigh, model.PriorityVeryLow}, prios)
	assert.Equal(t, Version, doc.Version)
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	in := `{
	  "version": "1.1",
	  "capabilities": [{"id": "a", "rank": 1}, {"id": "b", "rank": 2, "title": "x", "priority": "urgent"}],
	  "gamePlans": [{"id": "p1"}],
	  "strategies": [{"id": "s1", "rank": 1, "title": "t", "phase": "overtime"}, {"id": "s2", "rank": 1, "title": "t", "phase": "auto", "gamePlanId": "nope"}]
	}`
	_, err := Parse(strings.NewReader(in))
	require.ErrorIs(t, err, ErrInvalid)

	msg := err.Error()
	for _, want := range []string{
		`capabilities[0]: missing "title"`,
		`capabilities[1]: unknown priority "urgent"`,
		`gamePlans[0]: missing "name"`,
		`strategies[0]: unknown phase "overtime"`,
		`strategies[1]: unknown game plan "nope"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestParse_Shape(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"not json", `{`, nil},
		{"no version", `{"capabilities": [], "strategies": []}`, []string{`missing "version"`}},
		{"future version", `{"version": "9", "capabilities": [], "strategies": []}`, []string{`unsupported version "9"`}},
		{"no lists", `{"version": "1.0"}`, []string{`missing "capabilities"`, `missing "strategies"`}},
		{"1.1 without plans", `{"version": "1.1", "capabilities": [], "strategies": []}`, []string{`missing "gamePlans"`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			require.ErrorIs(t, err, ErrInvalid)
			for _, w := range tc.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestParse_MissingFieldsAreAggregated(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"version": "1.0", "capabilities": [{"rank": 1}], "strategies": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing "id"`)
	assert.Contains(t, err.Error(), `missing "title"`)
	assert.Equal(t, 1, strings.Count(err.Error(), "capabilities[0]"), "one entry per bad item")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "frc-plan-abc-1771093800000.json", FileName("abc", t0))
}
