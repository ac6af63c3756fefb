package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/rank"
	"github.com/DoyleJ11/frc-plan-sync/internal/view"
)

// newTestStore returns a store with predictable ids and a fixed clock.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	n := 0
	ids := func() string { n++; return fmt.Sprintf("id-%d", n) }
	clock := func() time.Time { return time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC) }
	s, err := Open(append([]Option{WithIDs(ids), WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return s
}

func capTitles(items []model.Capability) []string {
	var out []string
	for _, c := range items {
		out = append(out, fmt.Sprintf("%s:%d", c.Title, c.Rank))
	}
	return out
}

func stratTitles(items []model.Strategy) []string {
	var out []string
	for _, s := range items {
		out = append(out, fmt.Sprintf("%s:%d", s.Title, s.Rank))
	}
	return out
}

func addCaps(s *Store, titles ...string) []model.Capability {
	var out []model.Capability
	for _, title := range titles {
		out = append(out, s.AddCapability(model.CapabilityInput{Title: title, Priority: model.PriorityMedium}))
	}
	return out
}

func addStrats(s *Store, titles ...string) []model.Strategy {
	var out []model.Strategy
	for _, title := range titles {
		out = append(out, s.AddStrategy(model.StrategyInput{Title: title, Phase: model.PhaseTeleop, ExpectedPoints: 1}))
	}
	return out
}

func TestOpen_CreatesDefaultPlan(t *testing.T) {
	s := newTestStore(t)
	plans := s.GamePlans()
	require.Len(t, plans, 1)
	assert.Equal(t, model.DefaultGamePlanName, plans[0].Name)
	sel, ok := s.SelectedGamePlan()
	require.True(t, ok)
	assert.Equal(t, plans[0].ID, sel.ID)
}

func TestCapabilities_AddDeleteReorder(t *testing.T) {
	s := newTestStore(t)
	c := addCaps(s, "X", "Y", "Z")

	shifted, ok := s.DeleteCapability(c[1].ID)
	require.True(t, ok)
	assert.Equal(t, []string{"X:1", "Z:2"}, capTitles(s.Capabilities()))
	require.Len(t, shifted, 1)
	assert.Equal(t, c[2].ID, shifted[0].ID)

	addCaps(s, "W")
	part, ok := s.ReorderCapabilities(c[0].ID, c[2].ID)
	require.True(t, ok)
	assert.Len(t, part, 3)
	assert.Equal(t, []string{"Z:1", "X:2", "W:3"}, capTitles(s.Capabilities()))
}

func TestUpdateCapability_Unknown(t *testing.T) {
	s := newTestStore(t)
	title := "nope"
	_, ok := s.UpdateCapability("missing", model.CapabilityPatch{Title: &title})
	assert.False(t, ok)
}

func TestStrategies_PartitionIsolation(t *testing.T) {
	s := newTestStore(t)
	planX, _ := s.SelectedGamePlan()
	x := addStrats(s, "x1", "x2", "x3")

	planY := s.AddGamePlan(model.GamePlanInput{Name: "Y"})
	require.True(t, s.SelectGamePlan(planY.ID))
	addStrats(s, "y1", "y2")
	wantY := stratTitles(s.PartitionStrategies(planY.ID))

	require.True(t, s.SelectGamePlan(planX.ID))
	_, ok := s.ReorderStrategies(x[0].ID, x[2].ID)
	require.True(t, ok)
	_, ok = s.DeleteStrategy(x[1].ID)
	require.True(t, ok)

	assert.Equal(t, []string{"x3:1", "x1:2"}, stratTitles(s.PartitionStrategies(planX.ID)))
	assert.Equal(t, wantY, stratTitles(s.PartitionStrategies(planY.ID)))
	assert.True(t, rank.Dense(s.Strategies(), model.ByGamePlan))
}

func TestReorderStrategies_OutsideSelectedPlanIsNoop(t *testing.T) {
	s := newTestStore(t)
	x := addStrats(s, "x1", "x2")
	planY := s.AddGamePlan(model.GamePlanInput{Name: "Y"})
	require.True(t, s.SelectGamePlan(planY.ID))

	_, ok := s.ReorderStrategies(x[0].ID, x[1].ID)
	assert.False(t, ok)
}

func TestClearStrategies_ScopedToSelectedPlan(t *testing.T) {
	s := newTestStore(t)
	planX, _ := s.SelectedGamePlan()
	addStrats(s, "x1", "x2")
	planY := s.AddGamePlan(model.GamePlanInput{Name: "Y"})
	require.True(t, s.SelectGamePlan(planY.ID))
	addStrats(s, "y1")

	removed := s.ClearStrategies()
	require.Len(t, removed, 1)
	assert.Empty(t, s.PartitionStrategies(planY.ID))
	assert.Len(t, s.PartitionStrategies(planX.ID), 2)
}

func TestDeleteGamePlan_CascadesAndFallsBack(t *testing.T) {
	s := newTestStore(t)
	first, _ := s.SelectedGamePlan()
	second := s.AddGamePlan(model.GamePlanInput{Name: "Second"})
	require.True(t, s.SelectGamePlan(second.ID))
	addStrats(s, "a", "b")

	del, ok := s.DeleteGamePlan(second.ID)
	require.True(t, ok)
	assert.Len(t, del.Strategies, 2)
	assert.Nil(t, del.Default)
	assert.Empty(t, s.PartitionStrategies(second.ID))

	sel, ok := s.SelectedGamePlan()
	require.True(t, ok)
	assert.Equal(t, first.ID, sel.ID)
}

func TestDeleteGamePlan_LastPlanRecreatesDefault(t *testing.T) {
	s := newTestStore(t)
	only, _ := s.SelectedGamePlan()

	del, ok := s.DeleteGamePlan(only.ID)
	require.True(t, ok)
	require.NotNil(t, del.Default)

	sel, ok := s.SelectedGamePlan()
	require.True(t, ok)
	assert.Equal(t, del.Default.ID, sel.ID)
	assert.NotEqual(t, only.ID, sel.ID)
	assert.Equal(t, model.DefaultGamePlanName, sel.Name)
}

func TestDuplicateGamePlan(t *testing.T) {
	s := newTestStore(t)
	src, _ := s.SelectedGamePlan()
	addStrats(s, "a", "b")

	dup, copies, ok := s.DuplicateGamePlan(src.ID, "Copy")
	require.True(t, ok)
	require.Len(t, copies, 2)
	assert.Equal(t, []string{"a:1", "b:2"}, stratTitles(s.PartitionStrategies(dup.ID)))
	assert.Len(t, s.PartitionStrategies(src.ID), 2)
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)
	addCaps(s, "c1", "c2")
	addStrats(s, "s1")

	caps, strats := s.ClearAll()
	assert.Len(t, caps, 2)
	assert.Len(t, strats, 1)
	assert.Empty(t, s.Capabilities())
	assert.Empty(t, s.SelectedStrategies())
}

func TestSortIsDisplayOnly(t *testing.T) {
	s := newTestStore(t)
	addStrats(s, "Alpha", "Charlie", "Bravo")

	s.SortStrategiesBy(view.FieldTitle)
	st := s.SortStrategiesBy(view.FieldTitle)
	assert.Equal(t, view.SortState{Field: view.FieldTitle, Direction: view.Desc}, st)
	assert.Equal(t, []string{"Charlie:2", "Bravo:3", "Alpha:1"}, stratTitles(s.SortedStrategies()))

	assert.Equal(t, []string{"Alpha:1", "Charlie:2", "Bravo:3"}, stratTitles(s.SelectedStrategies()))
}

func TestSetCapabilities_KeepsPendingAndLocalOnly(t *testing.T) {
	s := newTestStore(t)
	c := addCaps(s, "A", "B")
	title := "A edited"
	_, ok := s.UpdateCapability(c[0].ID, model.CapabilityPatch{Title: &title})
	require.True(t, ok)
	s.MarkPending(c[0].ID)

	orphan := s.AddCapability(model.CapabilityInput{Title: "Offline", Priority: model.PriorityLow})
	s.MarkLocalOnly(KindCapability, orphan.ID)

	// remote still has the stale title and no "Offline" item
	s.SetCapabilities([]model.Capability{
		{ID: c[0].ID, Rank: 1, Title: "A"},
		{ID: c[1].ID, Rank: 2, Title: "B remote"},
	})

	assert.Equal(t, []string{"A edited:1", "B remote:2", "Offline:3"}, capTitles(s.Capabilities()))

	s.ClearPending(c[0].ID)
	s.ClearLocalOnly(orphan.ID)
	s.SetCapabilities([]model.Capability{
		{ID: c[0].ID, Rank: 1, Title: "A"},
		{ID: c[1].ID, Rank: 2, Title: "B remote"},
	})
	assert.Equal(t, []string{"A:1", "B remote:2"}, capTitles(s.Capabilities()))
}

func TestSetCapabilities_PendingDeleteStaysDeleted(t *testing.T) {
	s := newTestStore(t)
	c := addCaps(s, "A", "B")
	s.DeleteCapability(c[0].ID)
	s.MarkPending(c[0].ID)

	s.SetCapabilities([]model.Capability{
		{ID: c[0].ID, Rank: 1, Title: "A"},
		{ID: c[1].ID, Rank: 2, Title: "B"},
	})
	assert.Equal(t, []string{"B:1"}, capTitles(s.Capabilities()))
}

func TestSetGamePlans_SelectionFallsBack(t *testing.T) {
	s := newTestStore(t)
	s.SetGamePlans([]model.GamePlan{{ID: "remote-1", Name: "R1"}, {ID: "remote-2", Name: "R2"}})
	sel, ok := s.SelectedGamePlan()
	require.True(t, ok)
	assert.Equal(t, "remote-1", sel.ID)
}

func TestOnChangeReceivesCopies(t *testing.T) {
	s := newTestStore(t)
	var got []State
	s.OnChange(func(st State) { got = append(got, st) })

	addCaps(s, "A")
	require.Len(t, got, 1)
	got[0].Capabilities[0].Title = "mutated"
	assert.Equal(t, "A", s.Capabilities()[0].Title)
}

func TestPersistedStateSurvivesReopen(t *testing.T) {
	p := &MemoryPersister{}
	s := newTestStore(t, WithPersister(p))
	addCaps(s, "A", "B")
	s.SortCapabilitiesBy(view.FieldTitle)

	s2 := newTestStore(t, WithPersister(p))
	assert.Equal(t, []string{"A:1", "B:2"}, capTitles(s2.Capabilities()))
	assert.Equal(t, view.FieldTitle, s2.State().CapabilitySort.Field)
	assert.Len(t, s2.GamePlans(), 1, "reopen must not add a second default plan")
}
