// Package store is the client's in-memory view of a planning session.
//
// A Store is built explicitly and handed to whoever needs it. Mutations are
// serialized by a mutex, run to completion without I/O other than saving the
// encoded state, and swap the new state in as one step, so no caller ever sees
// a half-applied change. Mutations never fail: input is expected to be
// validated before it gets here.
package store

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/projection"
	"github.com/DoyleJ11/frc-plan-sync/internal/rank"
	"github.com/DoyleJ11/frc-plan-sync/internal/view"
)

type Store struct {
	mu        sync.Mutex
	state     State
	pending   map[string]int
	listeners []func(State)

	persister Persister
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	sorter    *view.Sorter
	timing    projection.Timing
}

type Option func(*Store)

func WithPersister(p Persister) Option { return func(s *Store) { s.persister = p } }
func WithLogger(l *zap.Logger) Option  { return func(s *Store) { s.log = l } }
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}
func WithIDs(newID func() string) Option { return func(s *Store) { s.newID = newID } }
func WithSorter(v *view.Sorter) Option   { return func(s *Store) { s.sorter = v } }
func WithTiming(t projection.Timing) Option {
	return func(s *Store) { s.timing = t }
}

// New returns an empty store. Use Open to restore persisted state.
func New(opts ...Option) *Store {
	s := &Store{
		state:     emptyState(),
		pending:   map[string]int{},
		persister: &MemoryPersister{},
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		sorter:    view.Default(),
		timing:    projection.DefaultTiming(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open restores the last saved state and makes sure a game plan exists.
func Open(opts ...Option) (*Store, error) {
	s := New(opts...)
	data, err := s.persister.Load()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		st, err := decodeState(data)
		if err != nil {
			return nil, err
		}
		s.state = st
	}
	s.EnsureDefaultGamePlan()
	return s, nil
}

// OnChange registers fn to receive a copy of the state after each mutation.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// mutate applies fn to a copy of the state and swaps it in. fn runs with s.mu
// held.
func (s *Store) mutate(fn func(st *State)) {
	s.mu.Lock()
	next := s.state.clone()
	fn(&next)
	s.state = next
	s.save(next)
	listeners := slices.Clone(s.listeners)
	snap := next.clone()
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) save(st State) {
	data, err := encodeState(st)
	if err != nil {
		s.log.Warn("encode local state", zap.Error(err))
		return
	}
	if err := s.persister.Save(data); err != nil {
		s.log.Warn("persist local state", zap.Error(err))
	}
}

func (s *Store) read() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// State returns a copy of everything in the store.
func (s *Store) State() State { return s.read() }

// Capabilities

func (s *Store) AddCapability(in model.CapabilityInput) model.Capability {
	var added model.Capability
	s.mutate(func(st *State) {
		now := s.now()
		c := model.Capability{
			ID:          s.newID(),
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		st.Capabilities, added = rank.Insert(st.Capabilities, c, model.Whole)
	})
	return added
}

func (s *Store) UpdateCapability(id string, p model.CapabilityPatch) (model.Capability, bool) {
	var (
		updated model.Capability
		found   bool
	)
	s.mutate(func(st *State) {
		i := slices.IndexFunc(st.Capabilities, func(c model.Capability) bool { return c.ID == id })
		if i == -1 {
			return
		}
		updated, found = p.Apply(st.Capabilities[i], s.now()), true
		st.Capabilities[i] = updated
	})
	return updated, found
}

// DeleteCapability removes id and returns the capabilities whose rank moved.
func (s *Store) DeleteCapability(id string) ([]model.Capability, bool) {
	var (
		shifted []model.Capability
		ok      bool
	)
	s.mutate(func(st *State) {
		st.Capabilities, shifted, ok = rank.Delete(st.Capabilities, id, model.Whole)
		delete(st.LocalOnly, id)
	})
	return shifted, ok
}

// ReorderCapabilities moves activeID to overID's position and returns the
// renumbered list.
func (s *Store) ReorderCapabilities(activeID, overID string) ([]model.Capability, bool) {
	var (
		part []model.Capability
		ok   bool
	)
	s.mutate(func(st *State) {
		st.Capabilities, part, ok = rank.Move(st.Capabilities, activeID, overID, model.Whole)
	})
	return part, ok
}

// ClearCapabilities removes every capability and returns what was removed.
func (s *Store) ClearCapabilities() []model.Capability {
	var removed []model.Capability
	s.mutate(func(st *State) {
		removed = st.Capabilities
		st.Capabilities = nil
		for _, c := range removed {
			delete(st.LocalOnly, c.ID)
		}
	})
	return removed
}

// SetCapabilities replaces the capability list, keeping local copies of items
// with a remote write still in flight.
func (s *Store) SetCapabilities(items []model.Capability) {
	s.mutate(func(st *State) {
		st.Capabilities = merge(st.Capabilities, items, s.pendingIDs(), st.LocalOnly, model.Whole)
	})
}

func (s *Store) Capabilities() []model.Capability {
	return rank.Partition(s.read().Capabilities, model.Whole, "")
}

func (s *Store) SortedCapabilities() []model.Capability {
	st := s.read()
	return s.sorter.Capabilities(st.Capabilities, st.CapabilitySort)
}

func (s *Store) SetCapabilitySort(st view.SortState) {
	s.mutate(func(x *State) { x.CapabilitySort = st })
}

// SortCapabilitiesBy toggles the display sort and returns the new setting.
func (s *Store) SortCapabilitiesBy(f view.Field) view.SortState {
	var out view.SortState
	s.mutate(func(x *State) {
		x.CapabilitySort = x.CapabilitySort.Toggle(f)
		out = x.CapabilitySort
	})
	return out
}

// Strategies

// AddStrategy appends to the selected game plan, creating the default plan
// first if there is none.
func (s *Store) AddStrategy(in model.StrategyInput) model.Strategy {
	var added model.Strategy
	s.mutate(func(st *State) {
		plan := s.ensureDefault(st)
		now := s.now()
		item := model.Strategy{
			ID:             s.newID(),
			GamePlanID:     plan.ID,
			Phase:          in.Phase,
			Title:          in.Title,
			Description:    in.Description,
			ExpectedPoints: in.ExpectedPoints,
			CycleTime:      in.CycleTime,
			CyclesPerMatch: in.CyclesPerMatch,
			IsDefensive:    in.IsDefensive,
			Notes:          in.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		st.Strategies, added = rank.Insert(st.Strategies, item, model.ByGamePlan)
	})
	return added
}

func (s *Store) UpdateStrategy(id string, p model.StrategyPatch) (model.Strategy, bool) {
	var (
		updated model.Strategy
		found   bool
	)
	s.mutate(func(st *State) {
		i := slices.IndexFunc(st.Strategies, func(x model.Strategy) bool { return x.ID == id })
		if i == -1 {
			return
		}
		updated, found = p.Apply(st.Strategies[i], s.now()), true
		st.Strategies[i] = updated
	})
	return updated, found
}

// DeleteStrategy removes id and re-compacts its game plan only.
func (s *Store) DeleteStrategy(id string) ([]model.Strategy, bool) {
	var (
		shifted []model.Strategy
		ok      bool
	)
	s.mutate(func(st *State) {
		st.Strategies, shifted, ok = rank.Delete(st.Strategies, id, model.ByGamePlan)
		delete(st.LocalOnly, id)
	})
	return shifted, ok
}

// ReorderStrategies moves within the selected game plan. Items outside it are
// never touched.
func (s *Store) ReorderStrategies(activeID, overID string) ([]model.Strategy, bool) {
	var (
		part []model.Strategy
		ok   bool
	)
	s.mutate(func(st *State) {
		i := slices.IndexFunc(st.Strategies, func(x model.Strategy) bool { return x.ID == activeID })
		if i == -1 || (st.SelectedGamePlanID != "" && st.Strategies[i].GamePlanID != st.SelectedGamePlanID) {
			return
		}
		st.Strategies, part, ok = rank.Move(st.Strategies, activeID, overID, model.ByGamePlan)
	})
	return part, ok
}

// ClearStrategies empties the selected game plan, or every plan when none is
// selected.
func (s *Store) ClearStrategies() []model.Strategy {
	var removed []model.Strategy
	s.mutate(func(st *State) {
		removed = clearStrategies(st)
	})
	return removed
}

func clearStrategies(st *State) []model.Strategy {
	var kept, removed []model.Strategy
	for _, x := range st.Strategies {
		if st.SelectedGamePlanID == "" || x.GamePlanID == st.SelectedGamePlanID {
			removed = append(removed, x)
			delete(st.LocalOnly, x.ID)
			continue
		}
		kept = append(kept, x)
	}
	st.Strategies = kept
	return removed
}

func (s *Store) SetStrategies(items []model.Strategy) {
	s.mutate(func(st *State) {
		st.Strategies = merge(st.Strategies, items, s.pendingIDs(), st.LocalOnly, model.ByGamePlan)
	})
}

// Strategies returns every strategy across all game plans.
func (s *Store) Strategies() []model.Strategy { return s.read().Strategies }

// PartitionStrategies returns one game plan's strategies in rank order.
func (s *Store) PartitionStrategies(planID string) []model.Strategy {
	return rank.Partition(s.read().Strategies, model.ByGamePlan, planID)
}

// SelectedStrategies returns the selected game plan's strategies in rank order.
func (s *Store) SelectedStrategies() []model.Strategy {
	st := s.read()
	return rank.Partition(st.Strategies, model.ByGamePlan, st.SelectedGamePlanID)
}

// SortedStrategies is the display order of the selected plan after the phase
// filter.
func (s *Store) SortedStrategies() []model.Strategy {
	st := s.read()
	part := rank.Partition(st.Strategies, model.ByGamePlan, st.SelectedGamePlanID)
	return s.sorter.Strategies(part, st.StrategySort, st.PhaseFilter)
}

func (s *Store) SetStrategySort(st view.SortState) {
	s.mutate(func(x *State) { x.StrategySort = st })
}

func (s *Store) SortStrategiesBy(f view.Field) view.SortState {
	var out view.SortState
	s.mutate(func(x *State) {
		x.StrategySort = x.StrategySort.Toggle(f)
		out = x.StrategySort
	})
	return out
}

func (s *Store) SetPhaseFilter(f view.PhaseFilter) {
	s.mutate(func(x *State) { x.PhaseFilter = f })
}

func (s *Store) ScoreProjection() projection.ScoreProjection {
	return projection.Score(s.SelectedStrategies())
}

func (s *Store) TimeProjection() projection.TimeProjection {
	return projection.TimeBudget(s.SelectedStrategies(), s.timing)
}

func (s *Store) Timing() projection.Timing { return s.timing }

// ClearAll empties capabilities and the selected plan's strategies in one step.
func (s *Store) ClearAll() ([]model.Capability, []model.Strategy) {
	var (
		caps   []model.Capability
		strats []model.Strategy
	)
	s.mutate(func(st *State) {
		caps = st.Capabilities
		st.Capabilities = nil
		for _, c := range caps {
			delete(st.LocalOnly, c.ID)
		}
		strats = clearStrategies(st)
	})
	return caps, strats
}

// ReplaceAll swaps in a complete dataset, as an import does. Pending markers
// are dropped: nothing in flight refers to the new data.
func (s *Store) ReplaceAll(caps []model.Capability, plans []model.GamePlan, strats []model.Strategy) {
	s.mutate(func(st *State) {
		clear(s.pending)
		st.Capabilities = rank.Normalize(slices.Clone(caps), model.Whole)
		st.GamePlans = slices.Clone(plans)
		st.Strategies = rank.Normalize(slices.Clone(strats), model.ByGamePlan)
		clear(st.LocalOnly)
		if _, i := st.gamePlan(st.SelectedGamePlanID); i == -1 {
			st.SelectedGamePlanID = firstPlanID(st.GamePlans)
		}
	})
}

// Pending writes

// MarkPending records a remote write in flight for id.
func (s *Store) MarkPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id]++
}

func (s *Store) ClearPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] <= 1 {
		delete(s.pending, id)
		return
	}
	s.pending[id]--
}

func (s *Store) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id] > 0
}

// pendingIDs must be called with s.mu held.
func (s *Store) pendingIDs() map[string]bool {
	out := make(map[string]bool, len(s.pending))
	for id, n := range s.pending {
		if n > 0 {
			out[id] = true
		}
	}
	return out
}

// MarkLocalOnly flags an item whose remote create failed.
func (s *Store) MarkLocalOnly(k Kind, id string) {
	s.mutate(func(st *State) { st.LocalOnly[id] = k })
}

func (s *Store) ClearLocalOnly(id string) {
	s.mutate(func(st *State) { delete(st.LocalOnly, id) })
}

func (s *Store) LocalOnly() map[string]Kind { return s.read().LocalOnly }

// merge builds the new list from a remote snapshot. Items with a write in
// flight keep their local version (or stay deleted), and local-only items are
// kept, then each partition is renumbered.
func merge[T rank.Item[T]](local, incoming []T, pending map[string]bool, localOnly map[string]Kind, key rank.Key[T]) []T {
	byID := make(map[string]T, len(local))
	for _, it := range local {
		byID[it.ItemID()] = it
	}
	seen := make(map[string]bool, len(incoming))
	out := make([]T, 0, len(incoming))
	for _, in := range incoming {
		id := in.ItemID()
		seen[id] = true
		if pending[id] {
			if l, ok := byID[id]; ok {
				out = append(out, l)
			}
			continue
		}
		out = append(out, in)
	}
	for _, l := range local {
		id := l.ItemID()
		if seen[id] {
			continue
		}
		if _, lo := localOnly[id]; pending[id] || lo {
			out = append(out, l)
		}
	}
	return rank.Normalize(out, key)
}
