package model

import "time"

// LegacyCapability is the first capability schema, which carried a numeric
// point value instead of a priority.
type LegacyCapability struct {
	ID          string    `json:"id"`
	Rank        int       `json:"rank"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      float64   `json:"points"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PriorityForPoints maps a legacy point value onto a priority band.
func PriorityForPoints(points float64) Priority {
	switch {
	case points >= 20:
		return PriorityCritical
	case points >= 10:
		return PriorityHigh
	case points >= 5:
		return PriorityMedium
	case points >= 1:
		return PriorityLow
	default:
		return PriorityVeryLow
	}
}

func MigrateLegacyCapability(c LegacyCapability) Capability {
	return Capability{
		ID:          c.ID,
		Rank:        c.Rank,
		Title:       c.Title,
		Description: c.Description,
		Priority:    PriorityForPoints(c.Points),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// AssignGamePlan moves flat strategies (the schema before game plans) into the
// given plan. Strategies that already name a plan are left alone.
func AssignGamePlan(strategies []Strategy, planID string) []Strategy {
	out := make([]Strategy, len(strategies))
	for i, s := range strategies {
		if s.GamePlanID == "" || s.GamePlanID == LegacyGamePlanID {
			s.GamePlanID = planID
		}
		out[i] = s
	}
	return out
}
