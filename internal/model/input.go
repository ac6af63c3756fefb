package model

import "time"

// Inputs arrive pre-validated; the validate tags are for whoever collects them.

type CapabilityInput struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority" validate:"required,oneof=critical high medium low very-low"`
}

type CapabilityPatch struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty" validate:"omitempty,oneof=critical high medium low very-low"`
}

func (p CapabilityPatch) Apply(c Capability, now time.Time) Capability {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	c.UpdatedAt = now
	return c
}

// Fields lists only the set fields, keyed by their stored names.
func (p CapabilityPatch) Fields(now time.Time) map[string]any {
	f := map[string]any{"updatedAt": now}
	if p.Title != nil {
		f["title"] = *p.Title
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.Priority != nil {
		f["priority"] = string(*p.Priority)
	}
	return f
}

type GamePlanInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

type GamePlanPatch struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
}

func (p GamePlanPatch) Apply(g GamePlan, now time.Time) GamePlan {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	g.UpdatedAt = now
	return g
}

func (p GamePlanPatch) Fields(now time.Time) map[string]any {
	f := map[string]any{"updatedAt": now}
	if p.Name != nil {
		f["name"] = *p.Name
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	return f
}

type StrategyInput struct {
	Phase          Phase   `json:"phase" validate:"required,oneof=auto teleop endgame"`
	Title          string  `json:"title" validate:"required"`
	Description    string  `json:"description"`
	ExpectedPoints float64 `json:"expectedPoints" validate:"gte=0"`
	CycleTime      float64 `json:"cycleTime,omitempty" validate:"omitempty,gt=0"`
	CyclesPerMatch int     `json:"cyclesPerMatch,omitempty" validate:"omitempty,gt=0"`
	IsDefensive    bool    `json:"isDefensive"`
	Notes          string  `json:"notes"`
}

type StrategyPatch struct {
	Phase          *Phase   `json:"phase,omitempty" validate:"omitempty,oneof=auto teleop endgame"`
	Title          *string  `json:"title,omitempty" validate:"omitempty,min=1"`
	Description    *string  `json:"description,omitempty"`
	ExpectedPoints *float64 `json:"expectedPoints,omitempty" validate:"omitempty,gte=0"`
	CycleTime      *float64 `json:"cycleTime,omitempty" validate:"omitempty,gte=0"`
	CyclesPerMatch *int     `json:"cyclesPerMatch,omitempty" validate:"omitempty,gte=0"`
	IsDefensive    *bool    `json:"isDefensive,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
}

func (p StrategyPatch) Apply(s Strategy, now time.Time) Strategy {
	if p.Phase != nil {
		s.Phase = *p.Phase
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.ExpectedPoints != nil {
		s.ExpectedPoints = *p.ExpectedPoints
	}
	if p.CycleTime != nil {
		s.CycleTime = *p.CycleTime
	}
	if p.CyclesPerMatch != nil {
		s.CyclesPerMatch = *p.CyclesPerMatch
	}
	if p.IsDefensive != nil {
		s.IsDefensive = *p.IsDefensive
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	s.UpdatedAt = now
	return s
}

func (p StrategyPatch) Fields(now time.Time) map[string]any {
	f := map[string]any{"updatedAt": now}
	if p.Phase != nil {
		f["phase"] = string(*p.Phase)
	}
	if p.Title != nil {
		f["title"] = *p.Title
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.ExpectedPoints != nil {
		f["expectedPoints"] = *p.ExpectedPoints
	}
	if p.CycleTime != nil {
		f["cycleTime"] = *p.CycleTime
	}
	if p.CyclesPerMatch != nil {
		f["cyclesPerMatch"] = *p.CyclesPerMatch
	}
	if p.IsDefensive != nil {
		f["isDefensive"] = *p.IsDefensive
	}
	if p.Notes != nil {
		f["notes"] = *p.Notes
	}
	return f
}
