package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/view"
)

// Kind names the collection an item lives in.
type Kind string

const (
	KindCapability Kind = "capability"
	KindGamePlan   Kind = "gamePlan"
	KindStrategy   Kind = "strategy"
)

// State is everything the local store holds and persists.
type State struct {
	Capabilities       []model.Capability `json:"capabilities"`
	GamePlans          []model.GamePlan   `json:"gamePlans"`
	Strategies         []model.Strategy   `json:"strategies"`
	SelectedGamePlanID string             `json:"selectedGamePlanId,omitempty"`
	CapabilitySort     view.SortState     `json:"capabilitySort"`
	StrategySort       view.SortState     `json:"strategySort"`
	PhaseFilter        view.PhaseFilter   `json:"phaseFilter"`
	// LocalOnly holds items whose remote create failed; they exist nowhere
	// but here until pushed again.
	LocalOnly map[string]Kind `json:"localOnly,omitempty"`
}

func emptyState() State {
	return State{
		CapabilitySort: view.DefaultSort(),
		StrategySort:   view.DefaultSort(),
		PhaseFilter:    view.PhaseAll,
		LocalOnly:      map[string]Kind{},
	}
}

func (s State) clone() State {
	s.Capabilities = slices.Clone(s.Capabilities)
	s.GamePlans = slices.Clone(s.GamePlans)
	s.Strategies = slices.Clone(s.Strategies)
	s.LocalOnly = maps.Clone(s.LocalOnly)
	if s.LocalOnly == nil {
		s.LocalOnly = map[string]Kind{}
	}
	return s
}

func (s State) gamePlan(id string) (model.GamePlan, int) {
	i := slices.IndexFunc(s.GamePlans, func(g model.GamePlan) bool { return g.ID == id })
	if i == -1 {
		return model.GamePlan{}, -1
	}
	return s.GamePlans[i], i
}

func encodeState(s State) ([]byte, error) {
	return json.Marshal(s)
}

func decodeState(data []byte) (State, error) {
	st := emptyState()
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode local state: %w", err)
	}
	if st.LocalOnly == nil {
		st.LocalOnly = map[string]Kind{}
	}
	if st.CapabilitySort.Field == "" {
		st.CapabilitySort = view.DefaultSort()
	}
	if st.StrategySort.Field == "" {
		st.StrategySort = view.DefaultSort()
	}
	if st.PhaseFilter == "" {
		st.PhaseFilter = view.PhaseAll
	}
	return st, nil
}
