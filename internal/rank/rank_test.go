package rank

import (
	"fmt"
	"math/rand"
	"testing"
)

type item struct {
	id   string
	part string
	rank int
}

func (i item) ItemID() string      { return i.id }
func (i item) ItemRank() int       { return i.rank }
func (i item) Reranked(r int) item { i.rank = r; return i }
func byPart(i item) string         { return i.part }

func seq(part string, ids ...string) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{id: id, part: part, rank: i + 1}
	}
	return out
}

// order returns "id:rank" pairs of partition p in rank order.
func order(items []item, p string) []string {
	var out []string
	for _, it := range Partition(items, byPart, p) {
		out = append(out, fmt.Sprintf("%s:%d", it.id, it.rank))
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMove_SpliceSemantics(t *testing.T) {
	cases := []struct {
		name   string
		active string
		over   string
		want   []string
		moved  bool
	}{
		{"forward lands after neighbours", "A", "C", []string{"B:1", "C:2", "A:3", "D:4"}, true},
		{"backward lands before target", "D", "A", []string{"D:1", "A:2", "B:3", "C:4"}, true},
		{"adjacent swap", "B", "C", []string{"A:1", "C:2", "B:3", "D:4"}, true},
		{"same id is a no-op", "B", "B", []string{"A:1", "B:2", "C:3", "D:4"}, false},
		{"unknown active is a no-op", "Z", "A", []string{"A:1", "B:2", "C:3", "D:4"}, false},
		{"unknown over is a no-op", "A", "Z", []string{"A:1", "B:2", "C:3", "D:4"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := seq("", "A", "B", "C", "D")
			out, _, ok := Move(in, tc.active, tc.over, byPart)
			if ok != tc.moved {
				t.Fatalf("moved: got %v, want %v", ok, tc.moved)
			}
			if got := order(out, ""); !equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if got := order(in, ""); !equal(got, []string{"A:1", "B:2", "C:3", "D:4"}) {
				t.Fatalf("input mutated: %v", got)
			}
		})
	}
}

func TestMove_OnlyItemIsNoop(t *testing.T) {
	in := seq("", "A")
	_, _, ok := Move(in, "A", "A", byPart)
	if ok {
		t.Fatalf("moving the only item should be a no-op")
	}
}

func TestMove_ReturnsChangedPartitionOnly(t *testing.T) {
	in := append(seq("x", "A", "B", "C"), seq("y", "P", "Q")...)
	_, part, ok := Move(in, "C", "A", byPart)
	if !ok {
		t.Fatalf("expected move")
	}
	if len(part) != 3 {
		t.Fatalf("want 3 items in changed partition, got %d", len(part))
	}
	for _, it := range part {
		if it.part != "x" {
			t.Fatalf("changed partition leaked item %+v", it)
		}
	}
}

func TestMove_AcrossPartitionsIsNoop(t *testing.T) {
	in := append(seq("x", "A", "B"), seq("y", "P", "Q")...)
	_, _, ok := Move(in, "A", "Q", byPart)
	if ok {
		t.Fatalf("cross-partition move must be a no-op")
	}
}

func TestDelete_Recompacts(t *testing.T) {
	in := seq("", "X", "Y", "Z")
	out, shifted, ok := Delete(in, "Y", byPart)
	if !ok {
		t.Fatalf("expected delete")
	}
	if got := order(out, ""); !equal(got, []string{"X:1", "Z:2"}) {
		t.Fatalf("got %v", got)
	}
	if len(shifted) != 1 || shifted[0].id != "Z" || shifted[0].rank != 2 {
		t.Fatalf("shifted: %+v", shifted)
	}
}

func TestDelete_LastItemLeavesEmptyPartition(t *testing.T) {
	out, _, ok := Delete(seq("", "A"), "A", byPart)
	if !ok || len(out) != 0 {
		t.Fatalf("want empty partition, got %+v", out)
	}
}

func TestPartitionIsolation(t *testing.T) {
	in := append(seq("x", "A", "B", "C"), seq("y", "P", "Q", "R")...)
	wantY := order(in, "y")

	out, _, _ := Move(in, "A", "C", byPart)
	out, _, _ = Delete(out, "B", byPart)
	out, _ = Insert(out, item{id: "D", part: "x"}, byPart)

	if got := order(out, "y"); !equal(got, wantY) {
		t.Fatalf("partition y changed: got %v, want %v", got, wantY)
	}
}

func TestInsert_AppendsAtPartitionEnd(t *testing.T) {
	in := append(seq("x", "A", "B"), seq("y", "P")...)
	_, got := Insert(in, item{id: "C", part: "x"}, byPart)
	if got.rank != 3 {
		t.Fatalf("want rank 3, got %d", got.rank)
	}
	_, got = Insert(in, item{id: "N", part: "new"}, byPart)
	if got.rank != 1 {
		t.Fatalf("want rank 1 in empty partition, got %d", got.rank)
	}
}

func TestNormalize(t *testing.T) {
	in := []item{
		{id: "A", part: "x", rank: 7},
		{id: "P", part: "y", rank: 2},
		{id: "B", part: "x", rank: 3},
		{id: "Q", part: "y", rank: 2},
	}
	out := Normalize(in, byPart)
	if got := order(out, "x"); !equal(got, []string{"B:1", "A:2"}) {
		t.Fatalf("x: %v", got)
	}
	if got := order(out, "y"); !equal(got, []string{"P:1", "Q:2"}) {
		t.Fatalf("y: %v", got)
	}
	if !Dense(out, byPart) {
		t.Fatalf("normalized items not dense")
	}
}

func TestDenseInvariant_RandomOps(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	parts := []string{"x", "y", "z"}
	var items []item
	next := 0

	for step := 0; step < 2000; step++ {
		switch op := r.Intn(3); {
		case op == 0 || len(items) < 2:
			next++
			items, _ = Insert(items, item{id: fmt.Sprint(next), part: parts[r.Intn(len(parts))]}, byPart)
		case op == 1:
			items, _, _ = Delete(items, items[r.Intn(len(items))].id, byPart)
		default:
			a := items[r.Intn(len(items))].id
			b := items[r.Intn(len(items))].id
			items, _, _ = Move(items, a, b, byPart)
		}
		if !Dense(items, byPart) {
			t.Fatalf("step %d: ranks not dense: %+v", step, items)
		}
	}
}
