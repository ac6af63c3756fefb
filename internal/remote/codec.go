package remote

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Encode turns a value into document fields. The id key is dropped since it
// travels as the document id.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// Decode fills out from a document, id included.
func Decode(doc Doc, out any) error {
	fields := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields["id"] = doc.ID
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}

// NormalizeFields reduces fields to plain JSON values so every store keeps
// the same shapes a network client would see.
func NormalizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("normalize fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize fields: %w", err)
	}
	delete(out, "id")
	return out, nil
}

// Merge applies a partial update on top of existing fields.
func Merge(existing, partial map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(partial))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// SortDocs orders a collection the way clients expect to receive it: ranked
// collections by rank, game plans by creation time.
func SortDocs(c Collection, docs []Doc) {
	if c == GamePlans {
		sort.SliceStable(docs, func(i, j int) bool {
			a, b := when(docs[i].Fields["createdAt"]), when(docs[j].Fields["createdAt"])
			if !a.Equal(b) {
				return a.Before(b)
			}
			return docs[i].ID < docs[j].ID
		})
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := num(docs[i].Fields["rank"]), num(docs[j].Fields["rank"])
		if a != b {
			return a < b
		}
		return docs[i].ID < docs[j].ID
	})
}

// when reads a stored timestamp. Anything unreadable sorts first.
func when(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
