package model

import (
	"time"
)

// Priority is the build priority of a capability.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityVeryLow  Priority = "very-low"
)

var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityVeryLow}

var priorityWeights = map[Priority]int{
	PriorityCritical: 5,
	PriorityHigh:     4,
	PriorityMedium:   3,
	PriorityLow:      2,
	PriorityVeryLow:  1,
}

var priorityLabels = map[Priority]string{
	PriorityCritical: "Critical",
	PriorityHigh:     "High",
	PriorityMedium:   "Medium",
	PriorityLow:      "Low",
	PriorityVeryLow:  "Very Low",
}

// Weight orders priorities for display sorting. Unknown values weigh as medium.
func (p Priority) Weight() int {
	if w, ok := priorityWeights[p]; ok {
		return w
	}
	return priorityWeights[PriorityMedium]
}

func (p Priority) Label() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return priorityLabels[PriorityMedium]
}

func (p Priority) Valid() bool {
	_, ok := priorityWeights[p]
	return ok
}

// ParsePriority falls back to medium for empty or unknown input, matching how
// stored documents without a priority are read.
func ParsePriority(s string) Priority {
	p := Priority(s)
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

type Phase string

const (
	PhaseAuto    Phase = "auto"
	PhaseTeleop  Phase = "teleop"
	PhaseEndgame Phase = "endgame"
)

var Phases = []Phase{PhaseAuto, PhaseTeleop, PhaseEndgame}

// Index is the fixed match order of a phase (auto=1, teleop=2, endgame=3).
func (p Phase) Index() int {
	switch p {
	case PhaseAuto:
		return 1
	case PhaseTeleop:
		return 2
	case PhaseEndgame:
		return 3
	default:
		return 0
	}
}

func (p Phase) Valid() bool { return p.Index() > 0 }

type Capability struct {
	ID          string    `json:"id"`
	Rank        int       `json:"rank"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Capability) ItemID() string            { return c.ID }
func (c Capability) ItemRank() int             { return c.Rank }
func (c Capability) Reranked(r int) Capability { c.Rank = r; return c }

const (
	DefaultGamePlanName        = "Default Plan"
	DefaultGamePlanDescription = "Your primary game strategy"
	// LegacyGamePlanID is assigned to stored strategies that predate game plans.
	LegacyGamePlanID = "default"
)

type GamePlan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Strategy belongs to exactly one game plan; its rank is dense within that plan.
// CycleTime and CyclesPerMatch use zero for "not set".
type Strategy struct {
	ID             string    `json:"id"`
	GamePlanID     string    `json:"gamePlanId"`
	Rank           int       `json:"rank"`
	Phase          Phase     `json:"phase"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ExpectedPoints float64   `json:"expectedPoints"`
	CycleTime      float64   `json:"cycleTime,omitempty"`
	CyclesPerMatch int       `json:"cyclesPerMatch,omitempty"`
	IsDefensive    bool      `json:"isDefensive"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (s Strategy) ItemID() string          { return s.ID }
func (s Strategy) ItemRank() int           { return s.Rank }
func (s Strategy) Reranked(r int) Strategy { s.Rank = r; return s }

// ByGamePlan is the strategy partition key.
func ByGamePlan(s Strategy) string { return s.GamePlanID }

// Whole puts every capability in one partition.
func Whole(Capability) string { return "" }
