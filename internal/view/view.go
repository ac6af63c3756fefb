// Package view computes display orderings. Nothing here writes rank: every
// function sorts a copy and the persisted order stays whatever rank says.
package view

import (
	"cmp"
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
)

type Field string

const (
	FieldRank           Field = "rank"
	FieldTitle          Field = "title"
	FieldPriority       Field = "priority"
	FieldExpectedPoints Field = "expectedPoints"
	FieldPhase          Field = "phase"
)

var (
	CapabilityFields = []Field{FieldRank, FieldTitle, FieldPriority}
	StrategyFields   = []Field{FieldRank, FieldTitle, FieldExpectedPoints, FieldPhase}
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type SortState struct {
	Field     Field     `json:"field"`
	Direction Direction `json:"direction"`
}

func DefaultSort() SortState { return SortState{Field: FieldRank, Direction: Asc} }

// Toggle picks field: the active field flips direction, a new field starts
// ascending.
func (s SortState) Toggle(field Field) SortState {
	if s.Field == field {
		if s.Direction == Asc {
			return SortState{Field: field, Direction: Desc}
		}
		return SortState{Field: field, Direction: Asc}
	}
	return SortState{Field: field, Direction: Asc}
}

// PhaseFilter is "all" or a single phase.
type PhaseFilter string

const PhaseAll PhaseFilter = "all"

func (f PhaseFilter) Match(p model.Phase) bool {
	return f == "" || f == PhaseAll || model.Phase(f) == p
}

// Sorter compares titles with locale-aware collation. A collator is not safe
// for concurrent use, so Sorter serializes access to it.
type Sorter struct {
	mu  sync.Mutex
	col *collate.Collator
}

func NewSorter(tag language.Tag) *Sorter {
	return &Sorter{col: collate.New(tag)}
}

var defaultSorter = NewSorter(language.English)

// Default returns the shared English sorter.
func Default() *Sorter { return defaultSorter }

func (s *Sorter) compareStrings(a, b string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col.CompareString(a, b)
}

func (s *Sorter) Capabilities(items []model.Capability, st SortState) []model.Capability {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b model.Capability) int {
		var c int
		switch st.Field {
		case FieldTitle:
			c = s.compareStrings(a.Title, b.Title)
		case FieldPriority:
			c = cmp.Compare(a.Priority.Weight(), b.Priority.Weight())
		default:
			c = cmp.Compare(a.Rank, b.Rank)
		}
		return directed(c, st.Direction)
	})
	return out
}

func (s *Sorter) Strategies(items []model.Strategy, st SortState, filter PhaseFilter) []model.Strategy {
	out := make([]model.Strategy, 0, len(items))
	for _, it := range items {
		if filter.Match(it.Phase) {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Strategy) int {
		var c int
		switch st.Field {
		case FieldTitle:
			c = s.compareStrings(a.Title, b.Title)
		case FieldExpectedPoints:
			c = cmp.Compare(a.ExpectedPoints, b.ExpectedPoints)
		case FieldPhase:
			c = cmp.Compare(a.Phase.Index(), b.Phase.Index())
		default:
			c = cmp.Compare(a.Rank, b.Rank)
		}
		return directed(c, st.Direction)
	})
	return out
}

func directed(c int, d Direction) int {
	if d == Desc {
		return -c
	}
	return c
}

func ValidCapabilityField(f Field) bool { return slices.Contains(CapabilityFields, f) }
func ValidStrategyField(f Field) bool   { return slices.Contains(StrategyFields, f) }
