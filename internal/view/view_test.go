package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
)

func titles[T interface{ model.Capability | model.Strategy }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case model.Capability:
			out = append(out, v.Title)
		case model.Strategy:
			out = append(out, v.Title)
		}
	}
	return out
}

func TestToggle(t *testing.T) {
	s := DefaultSort()
	s = s.Toggle(FieldTitle)
	assert.Equal(t, SortState{FieldTitle, Asc}, s)
	s = s.Toggle(FieldTitle)
	assert.Equal(t, SortState{FieldTitle, Desc}, s)
	s = s.Toggle(FieldTitle)
	assert.Equal(t, SortState{FieldTitle, Asc}, s)
	s = s.Toggle(FieldTitle).Toggle(FieldRank)
	assert.Equal(t, SortState{FieldRank, Asc}, s, "new field resets to ascending")
}

func TestCapabilities_TitleUsesCollation(t *testing.T) {
	caps := []model.Capability{
		{ID: "1", Rank: 1, Title: "banana"},
		{ID: "2", Rank: 2, Title: "Apple"},
		{ID: "3", Rank: 3, Title: "apricot"},
	}
	got := Default().Capabilities(caps, SortState{FieldTitle, Asc})
	assert.Equal(t, []string{"Apple", "apricot", "banana"}, titles(got))
}

func TestCapabilities_PriorityByWeight(t *testing.T) {
	caps := []model.Capability{
		{ID: "1", Rank: 1, Title: "a", Priority: model.PriorityLow},
		{ID: "2", Rank: 2, Title: "b", Priority: model.PriorityCritical},
		{ID: "3", Rank: 3, Title: "c", Priority: model.PriorityMedium},
	}
	got := Default().Capabilities(caps, SortState{FieldPriority, Desc})
	assert.Equal(t, []string{"b", "c", "a"}, titles(got))
}

func TestStrategies_PhaseUsesMatchOrder(t *testing.T) {
	strats := []model.Strategy{
		{ID: "1", Rank: 1, Title: "e", Phase: model.PhaseEndgame},
		{ID: "2", Rank: 2, Title: "t", Phase: model.PhaseTeleop},
		{ID: "3", Rank: 3, Title: "a", Phase: model.PhaseAuto},
	}
	got := Default().Strategies(strats, SortState{FieldPhase, Asc}, PhaseAll)
	assert.Equal(t, []string{"a", "t", "e"}, titles(got))

	got = Default().Strategies(strats, DefaultSort(), PhaseFilter(model.PhaseTeleop))
	require.Len(t, got, 1)
	assert.Equal(t, "t", got[0].Title)
}

func TestSortDoesNotMutateRank(t *testing.T) {
	strats := []model.Strategy{
		{ID: "1", Rank: 1, Title: "Alpha"},
		{ID: "2", Rank: 2, Title: "Charlie"},
		{ID: "3", Rank: 3, Title: "Bravo"},
	}
	sorted := Default().Strategies(strats, SortState{FieldTitle, Desc}, PhaseAll)
	assert.Equal(t, []string{"Charlie", "Bravo", "Alpha"}, titles(sorted))

	byRank := Default().Strategies(strats, DefaultSort(), PhaseAll)
	assert.Equal(t, []string{"Alpha", "Charlie", "Bravo"}, titles(byRank))
	for i, s := range byRank {
		assert.Equal(t, i+1, s.Rank)
	}
}
