// Package rank keeps items in dense, 1-based rank order within partitions.
//
// Every function is pure: it returns a new slice and never mutates its input.
// Within a partition of n items the ranks after any call are exactly 1..n.
//
// Two clients moving items in the same partition at once are not reconciled
// here. Each client writes the full rank sequence it computed and the later
// write wins per document, which can briefly leave an order neither client
// asked for until the next move.
package rank

import (
	"cmp"
	"slices"
)

// Item is anything ordered by rank. Reranked returns a copy with the new rank.
type Item[T any] interface {
	ItemID() string
	ItemRank() int
	Reranked(rank int) T
}

// Key names the partition an item belongs to.
type Key[T any] func(T) string

// Insert appends item as the last entry of its partition.
func Insert[T Item[T]](items []T, item T, key Key[T]) ([]T, T) {
	k := key(item)
	n := 0
	for _, it := range items {
		if key(it) == k {
			n++
		}
	}
	item = item.Reranked(n + 1)
	out := append(slices.Clone(items), item)
	return out, item
}

// Delete removes id and re-compacts the rest of its partition, keeping their
// relative order. shifted holds the items whose rank changed.
func Delete[T Item[T]](items []T, id string, key Key[T]) (out []T, shifted []T, ok bool) {
	idx := indexOf(items, id)
	if idx == -1 {
		return items, nil, false
	}
	k := key(items[idx])
	rest := slices.Delete(slices.Clone(items), idx, idx+1)

	slots, members := collect(rest, key, k)
	before := ranks(members)
	renumber(members)
	for i, m := range members {
		if before[i] != m.ItemRank() {
			shifted = append(shifted, m)
		}
	}
	return place(rest, slots, members), shifted, true
}

// Move takes activeID out of its partition's rank sequence and re-inserts it
// at the index overID held, then renumbers the partition. It is a no-op when
// either id is missing, they are equal, or they sit in different partitions.
// partition is the renumbered sequence in its new order.
func Move[T Item[T]](items []T, activeID, overID string, key Key[T]) (out []T, partition []T, ok bool) {
	if activeID == overID {
		return items, nil, false
	}
	ai, oi := indexOf(items, activeID), indexOf(items, overID)
	if ai == -1 || oi == -1 {
		return items, nil, false
	}
	k := key(items[ai])
	if key(items[oi]) != k {
		return items, nil, false
	}

	slots, members := collect(items, key, k)
	from, to := indexOf(members, activeID), indexOf(members, overID)
	moving := members[from]
	members = slices.Delete(members, from, from+1)
	members = slices.Insert(members, to, moving)
	renumber(members)

	return place(items, slots, members), slices.Clone(members), true
}

// Normalize sorts every partition by its current rank (ties keep slice order)
// and renumbers it 1..n.
func Normalize[T Item[T]](items []T, key Key[T]) []T {
	out := slices.Clone(items)
	seen := map[string]bool{}
	for _, it := range items {
		k := key(it)
		if seen[k] {
			continue
		}
		seen[k] = true
		slots, members := collect(out, key, k)
		renumber(members)
		out = place(out, slots, members)
	}
	return out
}

// Partition returns the items of partition k in rank order.
func Partition[T Item[T]](items []T, key Key[T], k string) []T {
	_, members := collect(items, key, k)
	return members
}

// Dense reports whether every partition holds exactly the ranks 1..n.
func Dense[T Item[T]](items []T, key Key[T]) bool {
	byKey := map[string][]int{}
	for _, it := range items {
		byKey[key(it)] = append(byKey[key(it)], it.ItemRank())
	}
	for _, rs := range byKey {
		slices.Sort(rs)
		for i, r := range rs {
			if r != i+1 {
				return false
			}
		}
	}
	return true
}

// collect returns the slice positions of partition k and its members sorted
// by rank.
func collect[T Item[T]](items []T, key Key[T], k string) ([]int, []T) {
	var slots []int
	var members []T
	for i, it := range items {
		if key(it) == k {
			slots = append(slots, i)
			members = append(members, it)
		}
	}
	slices.SortStableFunc(members, func(a, b T) int {
		return cmp.Compare(a.ItemRank(), b.ItemRank())
	})
	return slots, members
}

func place[T Item[T]](items []T, slots []int, members []T) []T {
	out := slices.Clone(items)
	for i, idx := range slots {
		out[idx] = members[i]
	}
	return out
}

func renumber[T Item[T]](members []T) {
	for i := range members {
		members[i] = members[i].Reranked(i + 1)
	}
}

func ranks[T Item[T]](members []T) []int {
	rs := make([]int, len(members))
	for i, m := range members {
		rs[i] = m.ItemRank()
	}
	return rs
}

func indexOf[T Item[T]](items []T, id string) int {
	return slices.IndexFunc(items, func(it T) bool { return it.ItemID() == id })
}
