package syncer

import (
	"time"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

// Documents written by other clients may lack fields; reads fill them the
// same way every client does so all of them agree on the result.

func capabilityFromDoc(d remote.Doc, now time.Time) (model.Capability, error) {
	var c model.Capability
	if err := remote.Decode(d, &c); err != nil {
		return c, err
	}
	c.Priority = model.ParsePriority(string(c.Priority))
	c.CreatedAt, c.UpdatedAt = orNow(c.CreatedAt, now), orNow(c.UpdatedAt, now)
	return c, nil
}

func gamePlanFromDoc(d remote.Doc, now time.Time) (model.GamePlan, error) {
	var g model.GamePlan
	if err := remote.Decode(d, &g); err != nil {
		return g, err
	}
	g.CreatedAt, g.UpdatedAt = orNow(g.CreatedAt, now), orNow(g.UpdatedAt, now)
	return g, nil
}

func strategyFromDoc(d remote.Doc, now time.Time) (model.Strategy, error) {
	var s model.Strategy
	if err := remote.Decode(d, &s); err != nil {
		return s, err
	}
	if s.GamePlanID == "" {
		s.GamePlanID = model.LegacyGamePlanID
	}
	s.CreatedAt, s.UpdatedAt = orNow(s.CreatedAt, now), orNow(s.UpdatedAt, now)
	return s, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// setOp builds a full-document write for any model value.
func setOp(c remote.Collection, id string, v any) (remote.Op, error) {
	fields, err := remote.Encode(v)
	if err != nil {
		return remote.Op{}, err
	}
	return remote.Op{Kind: remote.OpSet, Collection: c, ID: id, Fields: fields}, nil
}

func rankOp(c remote.Collection, id string, rank int, now time.Time) remote.Op {
	return remote.Op{
		Kind:       remote.OpUpdate,
		Collection: c,
		ID:         id,
		Fields:     map[string]any{"rank": rank, "updatedAt": now},
	}
}

func deleteOp(c remote.Collection, id string) remote.Op {
	return remote.Op{Kind: remote.OpDelete, Collection: c, ID: id}
}
