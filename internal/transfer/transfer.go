// Package transfer reads and writes the session export document.
//
// Version 1.1 carries game plans. Version 1.0 files predate them and may
// still hold point-valued capabilities; Parse upgrades both on the way in.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/store"
)

const (
	Version       = "1.1"
	LegacyVersion = "1.0"
)

var ErrInvalid = errors.New("invalid import file")

type Document struct {
	Version      string             `json:"version"`
	ExportedAt   time.Time          `json:"exportedAt"`
	SessionCode  string             `json:"sessionCode"`
	Capabilities []model.Capability `json:"capabilities"`
	GamePlans    []model.GamePlan   `json:"gamePlans"`
	Strategies   []model.Strategy   `json:"strategies"`
}

// Build snapshots st for export.
func Build(sessionCode string, st store.State, now time.Time) Document {
	return Document{
		Version:      Version,
		ExportedAt:   now.UTC(),
		SessionCode:  sessionCode,
		Capabilities: nonNil(st.Capabilities),
		GamePlans:    nonNil(st.GamePlans),
		Strategies:   nonNil(st.Strategies),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func Write(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// FileName is the conventional name for an export of code taken at now.
func FileName(code string, now time.Time) string {
	return fmt.Sprintf("frc-plan-%s-%d.json", code, now.UnixMilli())
}

type rawDocument struct {
	Version      string            `json:"version"`
	ExportedAt   string            `json:"exportedAt"`
	SessionCode  string            `json:"sessionCode"`
	Capabilities []json.RawMessage `json:"capabilities"`
	GamePlans    []json.RawMessage `json:"gamePlans"`
	Strategies   []json.RawMessage `json:"strategies"`
}

// Parse reads and validates a whole export document. Every problem found is
// reported together and nothing is returned unless the document is usable as
// a whole.
func Parse(r io.Reader) (Document, error) {
	var raw rawDocument
	var top map[string]json.RawMessage
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read import: %w", err)
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var errs error
	switch raw.Version {
	case Version, LegacyVersion:
	case "":
		errs = multierr.Append(errs, errors.New(`missing "version"`))
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported version %q", raw.Version))
	}
	for _, key := range []string{"capabilities", "strategies"} {
		if _, ok := top[key]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("missing %q", key))
		}
	}
	_, hasPlans := top["gamePlans"]
	if !hasPlans && raw.Version == Version {
		errs = multierr.Append(errs, errors.New(`missing "gamePlans"`))
	}

	now := time.Now().UTC()
	doc := Document{Version: Version, SessionCode: raw.SessionCode, ExportedAt: now}
	if raw.ExportedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, raw.ExportedAt)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("exportedAt: %w", err))
		}
		doc.ExportedAt = t
	}

	for i, m := range raw.Capabilities {
		c, err := parseCapability(m, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("capabilities[%d]: %w", i, err))
			continue
		}
		doc.Capabilities = append(doc.Capabilities, c)
	}
	plans := map[string]bool{}
	for i, m := range raw.GamePlans {
		g, err := parseGamePlan(m, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("gamePlans[%d]: %w", i, err))
			continue
		}
		plans[g.ID] = true
		doc.GamePlans = append(doc.GamePlans, g)
	}
	for i, m := range raw.Strategies {
		s, err := parseStrategy(m, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("strategies[%d]: %w", i, err))
			continue
		}
		if hasPlans && s.GamePlanID != "" && s.GamePlanID != model.LegacyGamePlanID && !plans[s.GamePlanID] {
			errs = multierr.Append(errs, fmt.Errorf("strategies[%d]: unknown game plan %q", i, s.GamePlanID))
			continue
		}
		doc.Strategies = append(doc.Strategies, s)
	}
	if errs != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalid, errs)
	}

	if len(doc.GamePlans) == 0 {
		doc.GamePlans = []model.GamePlan{{
			ID:          uuid.NewString(),
			Name:        model.DefaultGamePlanName,
			Description: model.DefaultGamePlanDescription,
			CreatedAt:   now,
			UpdatedAt:   now,
		}}
		// a document without plans has exactly one, whatever its strategies say
		for i := range doc.Strategies {
			doc.Strategies[i].GamePlanID = doc.GamePlans[0].ID
		}
	}
	doc.Strategies = model.AssignGamePlan(doc.Strategies, doc.GamePlans[0].ID)
	doc.Capabilities = nonNil(doc.Capabilities)
	doc.Strategies = nonNil(doc.Strategies)
	return doc, nil
}

// fields decodes one entry and checks the keys every schema requires.
func fields(m json.RawMessage, required ...string) (map[string]any, error) {
	var f map[string]any
	if err := json.Unmarshal(m, &f); err != nil {
		return nil, err
	}
	var errs error
	for _, k := range required {
		if v, ok := f[k]; !ok || v == nil || v == "" {
			errs = multierr.Append(errs, fmt.Errorf("missing %q", k))
		}
	}
	return f, errs
}

func parseCapability(m json.RawMessage, now time.Time) (model.Capability, error) {
	f, err := fields(m, "id", "title", "rank")
	if err != nil {
		return model.Capability{}, err
	}
	_, hasPriority := f["priority"]
	if _, hasPoints := f["points"]; hasPoints && !hasPriority {
		var legacy model.LegacyCapability
		if err := json.Unmarshal(m, &legacy); err != nil {
			return model.Capability{}, err
		}
		c := model.MigrateLegacyCapability(legacy)
		c.CreatedAt, c.UpdatedAt = orNow(c.CreatedAt, now), orNow(c.UpdatedAt, now)
		return c, nil
	}

	var c model.Capability
	if err := json.Unmarshal(m, &c); err != nil {
		return c, err
	}
	if hasPriority && !c.Priority.Valid() {
		return c, fmt.Errorf("unknown priority %q", c.Priority)
	}
	c.Priority = model.ParsePriority(string(c.Priority))
	c.CreatedAt, c.UpdatedAt = orNow(c.CreatedAt, now), orNow(c.UpdatedAt, now)
	return c, nil
}

func parseGamePlan(m json.RawMessage, now time.Time) (model.GamePlan, error) {
	if _, err := fields(m, "id", "name"); err != nil {
		return model.GamePlan{}, err
	}
	var g model.GamePlan
	if err := json.Unmarshal(m, &g); err != nil {
		return g, err
	}
	g.CreatedAt, g.UpdatedAt = orNow(g.CreatedAt, now), orNow(g.UpdatedAt, now)
	return g, nil
}

func parseStrategy(m json.RawMessage, now time.Time) (model.Strategy, error) {
	if _, err := fields(m, "id", "title", "rank", "phase"); err != nil {
		return model.Strategy{}, err
	}
	var s model.Strategy
	if err := json.Unmarshal(m, &s); err != nil {
		return s, err
	}
	if !s.Phase.Valid() {
		return s, fmt.Errorf("unknown phase %q", s.Phase)
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
