package store

import (
	"slices"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/rank"
)

// AddGamePlan creates a plan and returns it so the caller can select it.
func (s *Store) AddGamePlan(in model.GamePlanInput) model.GamePlan {
	var added model.GamePlan
	s.mutate(func(st *State) {
		added = s.newPlan(in)
		st.GamePlans = append(st.GamePlans, added)
		if st.SelectedGamePlanID == "" {
			st.SelectedGamePlanID = added.ID
		}
	})
	return added
}

func (s *Store) newPlan(in model.GamePlanInput) model.GamePlan {
	now := s.now()
	return model.GamePlan{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Store) UpdateGamePlan(id string, p model.GamePlanPatch) (model.GamePlan, bool) {
	var (
		updated model.GamePlan
		found   bool
	)
	s.mutate(func(st *State) {
		g, i := st.gamePlan(id)
		if i == -1 {
			return
		}
		updated, found = p.Apply(g, s.now()), true
		st.GamePlans[i] = updated
	})
	return updated, found
}

// GamePlanDeletion reports everything a plan deletion changed.
type GamePlanDeletion struct {
	Plan model.GamePlan
	// Strategies were removed with the plan.
	Strategies []model.Strategy
	// Default is set when the last plan was deleted and a new default plan
	// took its place.
	Default *model.GamePlan
}

// DeleteGamePlan removes a plan and all of its strategies. If the plan was
// selected the first remaining plan is selected; if none remain a default
// plan is created.
func (s *Store) DeleteGamePlan(id string) (GamePlanDeletion, bool) {
	var (
		del GamePlanDeletion
		ok  bool
	)
	s.mutate(func(st *State) {
		g, i := st.gamePlan(id)
		if i == -1 {
			return
		}
		ok = true
		del.Plan = g
		st.GamePlans = slices.Delete(st.GamePlans, i, i+1)
		delete(st.LocalOnly, id)

		var kept []model.Strategy
		for _, x := range st.Strategies {
			if x.GamePlanID == id {
				del.Strategies = append(del.Strategies, x)
				delete(st.LocalOnly, x.ID)
				continue
			}
			kept = append(kept, x)
		}
		st.Strategies = kept

		if st.SelectedGamePlanID == id {
			st.SelectedGamePlanID = firstPlanID(st.GamePlans)
		}
		if len(st.GamePlans) == 0 {
			plan := s.ensureDefault(st)
			del.Default = &plan
		}
	})
	return del, ok
}

// DuplicateGamePlan copies a plan and its strategies (new ids, same ranks)
// under a new name.
func (s *Store) DuplicateGamePlan(sourceID, name string) (model.GamePlan, []model.Strategy, bool) {
	var (
		plan   model.GamePlan
		copies []model.Strategy
		ok     bool
	)
	s.mutate(func(st *State) {
		if _, i := st.gamePlan(sourceID); i == -1 {
			return
		}
		ok = true
		plan = s.newPlan(model.GamePlanInput{Name: name})
		st.GamePlans = append(st.GamePlans, plan)
		for _, x := range rank.Partition(st.Strategies, model.ByGamePlan, sourceID) {
			x.ID = s.newID()
			x.GamePlanID = plan.ID
			x.CreatedAt, x.UpdatedAt = plan.CreatedAt, plan.CreatedAt
			copies = append(copies, x)
		}
		st.Strategies = append(st.Strategies, copies...)
	})
	return plan, copies, ok
}

// SelectGamePlan reports false for an unknown id and leaves selection alone.
func (s *Store) SelectGamePlan(id string) bool {
	var ok bool
	s.mutate(func(st *State) {
		if _, i := st.gamePlan(id); i != -1 {
			st.SelectedGamePlanID = id
			ok = true
		}
	})
	return ok
}

func (s *Store) SelectedGamePlan() (model.GamePlan, bool) {
	st := s.read()
	g, i := st.gamePlan(st.SelectedGamePlanID)
	return g, i != -1
}

func (s *Store) GamePlans() []model.GamePlan { return s.read().GamePlans }

// EnsureDefaultGamePlan creates the default plan when there are none and
// repairs a dangling selection. created reports whether a plan was added.
func (s *Store) EnsureDefaultGamePlan() (plan model.GamePlan, created bool) {
	s.mutate(func(st *State) {
		n := len(st.GamePlans)
		plan = s.ensureDefault(st)
		created = len(st.GamePlans) > n
	})
	return plan, created
}

// ensureDefault returns the selected plan, selecting the first plan or
// creating the default one as needed.
func (s *Store) ensureDefault(st *State) model.GamePlan {
	if g, i := st.gamePlan(st.SelectedGamePlanID); i != -1 {
		return g
	}
	if len(st.GamePlans) > 0 {
		st.SelectedGamePlanID = st.GamePlans[0].ID
		return st.GamePlans[0]
	}
	g := s.newPlan(model.GamePlanInput{Name: model.DefaultGamePlanName, Description: model.DefaultGamePlanDescription})
	st.GamePlans = append(st.GamePlans, g)
	st.SelectedGamePlanID = g.ID
	return g
}

// SetGamePlans replaces the plan list from a remote snapshot. Plans with a
// write in flight or never pushed are kept. A selection that no longer exists
// falls back to the first plan.
func (s *Store) SetGamePlans(plans []model.GamePlan) {
	s.mutate(func(st *State) {
		pending := s.pendingIDs()
		byID := map[string]model.GamePlan{}
		for _, g := range st.GamePlans {
			byID[g.ID] = g
		}
		seen := map[string]bool{}
		var out []model.GamePlan
		for _, g := range plans {
			seen[g.ID] = true
			if pending[g.ID] {
				if l, ok := byID[g.ID]; ok {
					out = append(out, l)
				}
				continue
			}
			out = append(out, g)
		}
		for _, g := range st.GamePlans {
			if seen[g.ID] {
				continue
			}
			if _, lo := st.LocalOnly[g.ID]; pending[g.ID] || lo {
				out = append(out, g)
			}
		}
		st.GamePlans = out
		if _, i := st.gamePlan(st.SelectedGamePlanID); i == -1 {
			st.SelectedGamePlanID = firstPlanID(out)
		}
	})
}

func firstPlanID(plans []model.GamePlan) string {
	if len(plans) == 0 {
		return ""
	}
	return plans[0].ID
}
