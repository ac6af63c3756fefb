package syncer

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/store"
)

// runJob performs one write and, when it lands, bumps the session version.
func (c *Coordinator) runJob(j job) {
	ctx, cancel := context.WithTimeout(c.writer.ctx, c.writeTimeout)
	defer cancel()
	defer func() {
		for _, id := range j.ids {
			c.local.ClearPending(id)
		}
	}()

	if err := j.run(ctx); err != nil {
		c.log.Debug("remote write failed", zap.String("op", j.what), zap.Error(err))
		c.notify.Notify(fmt.Errorf("%s: %w", j.what, err))
		if j.onFail != nil {
			j.onFail(err)
		}
		return
	}
	if j.onSuccess != nil {
		j.onSuccess()
	}

	gen, tracked := c.beginBump(j.code)
	v, err := c.remote.IncrementVersion(ctx, j.code)
	c.endBump(gen, tracked, v, err == nil)
	if err != nil {
		c.notify.Notify(fmt.Errorf("%s: increment version: %w", j.what, err))
	}
}

// beginBump registers a version bump of ours against the live connection, if
// the job belongs to it.
func (c *Coordinator) beginBump(code string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if code != c.code || c.versions.self == nil {
		return c.gen, false
	}
	c.versions.bumping++
	return c.gen, true
}

func (c *Coordinator) endBump(gen int, tracked bool, version int64, ok bool) {
	if !tracked {
		return
	}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.versions.bumping--
	if ok {
		c.versions.self[version] = true
	}
	foreign := c.versions.settle()
	seen := c.versions.seen
	fns := slices.Clone(c.onUpdate)
	c.mu.Unlock()

	if foreign {
		for _, fn := range fns {
			fn(seen)
		}
	}
}

// syncing reports the session writes should go to, or "" for local-only use.
func (c *Coordinator) syncing() string {
	if c.remote == nil {
		return ""
	}
	return c.Session()
}

func (c *Coordinator) send(code, what string, ops []remote.Op, onFail func(error)) {
	c.queue(code, what, ops, onFail, nil)
}

// queue sends ops as one batch. Ops on items that only exist locally are
// dropped: the remote has nothing to update or delete.
func (c *Coordinator) queue(code, what string, ops []remote.Op, onFail func(error), onSuccess func()) {
	localOnly := c.local.LocalOnly()
	kept := ops[:0:0]
	for _, op := range ops {
		if _, lo := localOnly[op.ID]; lo && op.Kind != remote.OpSet {
			continue
		}
		kept = append(kept, op)
	}
	if len(kept) == 0 {
		return
	}
	ids := make([]string, 0, len(kept))
	for _, op := range kept {
		ids = append(ids, op.ID)
	}
	for _, id := range ids {
		c.local.MarkPending(id)
	}
	c.writer.push(job{
		code:      code,
		what:      what,
		ids:       ids,
		onFail:    onFail,
		onSuccess: onSuccess,
		run: func(ctx context.Context) error {
			if len(kept) == 1 {
				op := kept[0]
				switch op.Kind {
				case remote.OpSet:
					return c.remote.SetDoc(ctx, code, op.Collection, op.ID, op.Fields)
				case remote.OpUpdate:
					return c.remote.UpdateDoc(ctx, code, op.Collection, op.ID, op.Fields)
				case remote.OpDelete:
					return c.remote.DeleteDoc(ctx, code, op.Collection, op.ID)
				}
			}
			return c.remote.BatchWrite(ctx, code, kept)
		},
	})
}

// sendAdd pushes a newly created item. If the create fails the item is kept
// as local-only so it survives later snapshots and can be pushed again.
func (c *Coordinator) sendAdd(code, what string, kind store.Kind, ops []remote.Op) {
	c.send(code, what, ops, func(error) {
		for _, op := range ops {
			c.local.MarkLocalOnly(kind, op.ID)
		}
	})
}

func (c *Coordinator) encodeFailed(what string, err error) {
	c.notify.Notify(fmt.Errorf("%s: %w", what, err))
}

// Capabilities

func (c *Coordinator) AddCapability(in model.CapabilityInput) model.Capability {
	added := c.local.AddCapability(in)
	if code := c.syncing(); code != "" {
		op, err := setOp(remote.Capabilities, added.ID, added)
		if err != nil {
			c.encodeFailed("add capability", err)
			c.local.MarkLocalOnly(store.KindCapability, added.ID)
			return added
		}
		c.sendAdd(code, "add capability", store.KindCapability, []remote.Op{op})
	}
	return added
}

func (c *Coordinator) UpdateCapability(id string, p model.CapabilityPatch) (model.Capability, bool) {
	updated, ok := c.local.UpdateCapability(id, p)
	if code := c.syncing(); ok && code != "" {
		c.send(code, "update capability", []remote.Op{{
			Kind: remote.OpUpdate, Collection: remote.Capabilities, ID: id, Fields: p.Fields(updated.UpdatedAt),
		}}, nil)
	}
	return updated, ok
}

// DeleteCapability also rewrites the ranks of the items that moved up.
func (c *Coordinator) DeleteCapability(id string) bool {
	shifted, ok := c.local.DeleteCapability(id)
	if code := c.syncing(); ok && code != "" {
		now := c.now()
		ops := []remote.Op{deleteOp(remote.Capabilities, id)}
		for _, x := range shifted {
			ops = append(ops, rankOp(remote.Capabilities, x.ID, x.Rank, now))
		}
		c.send(code, "delete capability", ops, nil)
	}
	return ok
}

// ReorderCapabilities moves activeID to overID's position and writes the new
// ranks in one batch.
func (c *Coordinator) ReorderCapabilities(activeID, overID string) bool {
	part, ok := c.local.ReorderCapabilities(activeID, overID)
	if code := c.syncing(); ok && code != "" {
		now := c.now()
		ops := make([]remote.Op, 0, len(part))
		for _, x := range part {
			ops = append(ops, rankOp(remote.Capabilities, x.ID, x.Rank, now))
		}
		c.send(code, "reorder capabilities", ops, nil)
	}
	return ok
}

func (c *Coordinator) ClearCapabilities() int {
	removed := c.local.ClearCapabilities()
	if code := c.syncing(); code != "" {
		ops := make([]remote.Op, 0, len(removed))
		for _, x := range removed {
			ops = append(ops, deleteOp(remote.Capabilities, x.ID))
		}
		c.send(code, "clear capabilities", ops, nil)
	}
	return len(removed)
}

// Game plans

func (c *Coordinator) AddGamePlan(in model.GamePlanInput) model.GamePlan {
	added := c.local.AddGamePlan(in)
	c.pushPlan(added, "add game plan")
	return added
}

func (c *Coordinator) pushPlan(g model.GamePlan, what string) {
	code := c.syncing()
	if code == "" {
		return
	}
	op, err := setOp(remote.GamePlans, g.ID, g)
	if err != nil {
		c.encodeFailed(what, err)
		c.local.MarkLocalOnly(store.KindGamePlan, g.ID)
		return
	}
	c.sendAdd(code, what, store.KindGamePlan, []remote.Op{op})
}

// ensurePlan creates and pushes the default plan when none exists.
func (c *Coordinator) ensurePlan() model.GamePlan {
	plan, created := c.local.EnsureDefaultGamePlan()
	if created {
		c.pushPlan(plan, "create default game plan")
	}
	return plan
}

func (c *Coordinator) UpdateGamePlan(id string, p model.GamePlanPatch) (model.GamePlan, bool) {
	updated, ok := c.local.UpdateGamePlan(id, p)
	if code := c.syncing(); ok && code != "" {
		c.send(code, "update game plan", []remote.Op{{
			Kind: remote.OpUpdate, Collection: remote.GamePlans, ID: id, Fields: p.Fields(updated.UpdatedAt),
		}}, nil)
	}
	return updated, ok
}

// DeleteGamePlan removes the plan and its strategies in one batch. When it
// was the last plan the replacement default plan is pushed right after.
func (c *Coordinator) DeleteGamePlan(id string) (store.GamePlanDeletion, bool) {
	del, ok := c.local.DeleteGamePlan(id)
	code := c.syncing()
	if !ok || code == "" {
		return del, ok
	}
	ops := []remote.Op{deleteOp(remote.GamePlans, id)}
	for _, x := range del.Strategies {
		ops = append(ops, deleteOp(remote.Strategies, x.ID))
	}
	c.send(code, "delete game plan", ops, nil)
	if del.Default != nil {
		c.pushPlan(*del.Default, "create default game plan")
	}
	return del, ok
}

func (c *Coordinator) DuplicateGamePlan(sourceID, name string) (model.GamePlan, bool) {
	plan, copies, ok := c.local.DuplicateGamePlan(sourceID, name)
	code := c.syncing()
	if !ok || code == "" {
		return plan, ok
	}
	op, err := setOp(remote.GamePlans, plan.ID, plan)
	if err != nil {
		c.encodeFailed("duplicate game plan", err)
		return plan, ok
	}
	ops := []remote.Op{op}
	for _, x := range copies {
		op, err := setOp(remote.Strategies, x.ID, x)
		if err != nil {
			c.encodeFailed("duplicate game plan", err)
			return plan, ok
		}
		ops = append(ops, op)
	}
	c.send(code, "duplicate game plan", ops, func(error) {
		c.local.MarkLocalOnly(store.KindGamePlan, plan.ID)
		for _, x := range copies {
			c.local.MarkLocalOnly(store.KindStrategy, x.ID)
		}
	})
	return plan, ok
}

// Strategies

// AddStrategy appends to the selected game plan, creating the default plan
// first when there is none.
func (c *Coordinator) AddStrategy(in model.StrategyInput) model.Strategy {
	c.ensurePlan()
	added := c.local.AddStrategy(in)
	if code := c.syncing(); code != "" {
		op, err := setOp(remote.Strategies, added.ID, added)
		if err != nil {
			c.encodeFailed("add strategy", err)
			c.local.MarkLocalOnly(store.KindStrategy, added.ID)
			return added
		}
		c.sendAdd(code, "add strategy", store.KindStrategy, []remote.Op{op})
	}
	return added
}

func (c *Coordinator) UpdateStrategy(id string, p model.StrategyPatch) (model.Strategy, bool) {
	updated, ok := c.local.UpdateStrategy(id, p)
	if code := c.syncing(); ok && code != "" {
		c.send(code, "update strategy", []remote.Op{{
			Kind: remote.OpUpdate, Collection: remote.Strategies, ID: id, Fields: p.Fields(updated.UpdatedAt),
		}}, nil)
	}
	return updated, ok
}

func (c *Coordinator) DeleteStrategy(id string) bool {
	shifted, ok := c.local.DeleteStrategy(id)
	if code := c.syncing(); ok && code != "" {
		now := c.now()
		ops := []remote.Op{deleteOp(remote.Strategies, id)}
		for _, x := range shifted {
			ops = append(ops, rankOp(remote.Strategies, x.ID, x.Rank, now))
		}
		c.send(code, "delete strategy", ops, nil)
	}
	return ok
}

// ReorderStrategies writes ranks for the selected game plan only.
func (c *Coordinator) ReorderStrategies(activeID, overID string) bool {
	part, ok := c.local.ReorderStrategies(activeID, overID)
	if code := c.syncing(); ok && code != "" {
		now := c.now()
		ops := make([]remote.Op, 0, len(part))
		for _, x := range part {
			ops = append(ops, rankOp(remote.Strategies, x.ID, x.Rank, now))
		}
		c.send(code, "reorder strategies", ops, nil)
	}
	return ok
}

func (c *Coordinator) ClearStrategies() int {
	removed := c.local.ClearStrategies()
	if code := c.syncing(); code != "" {
		ops := make([]remote.Op, 0, len(removed))
		for _, x := range removed {
			ops = append(ops, deleteOp(remote.Strategies, x.ID))
		}
		c.send(code, "clear strategies", ops, nil)
	}
	return len(removed)
}

// ClearAll empties capabilities and the selected plan's strategies with one
// remote batch.
func (c *Coordinator) ClearAll() (caps, strats int) {
	removedCaps, removedStrats := c.local.ClearAll()
	if code := c.syncing(); code != "" {
		ops := make([]remote.Op, 0, len(removedCaps)+len(removedStrats))
		for _, x := range removedCaps {
			ops = append(ops, deleteOp(remote.Capabilities, x.ID))
		}
		for _, x := range removedStrats {
			ops = append(ops, deleteOp(remote.Strategies, x.ID))
		}
		c.send(code, "clear all", ops, nil)
	}
	return len(removedCaps), len(removedStrats)
}

// PushLocalOnly re-sends every item whose create never reached the remote.
// Items that land lose their local-only mark. It returns how many were queued.
func (c *Coordinator) PushLocalOnly() int {
	code := c.syncing()
	if code == "" {
		return 0
	}
	st := c.local.State()
	if len(st.LocalOnly) == 0 {
		return 0
	}

	var ops []remote.Op
	add := func(coll remote.Collection, id string, v any) {
		op, err := setOp(coll, id, v)
		if err != nil {
			c.encodeFailed("push local items", err)
			return
		}
		ops = append(ops, op)
	}
	// plans first so strategies never reference a missing plan
	for _, g := range st.GamePlans {
		if _, ok := st.LocalOnly[g.ID]; ok {
			add(remote.GamePlans, g.ID, g)
		}
	}
	for _, x := range st.Capabilities {
		if _, ok := st.LocalOnly[x.ID]; ok {
			add(remote.Capabilities, x.ID, x)
		}
	}
	for _, x := range st.Strategies {
		if _, ok := st.LocalOnly[x.ID]; ok {
			add(remote.Strategies, x.ID, x)
		}
	}
	if len(ops) == 0 {
		return 0
	}

	c.queue(code, "push local items", ops, nil, func() {
		for _, op := range ops {
			c.local.ClearLocalOnly(op.ID)
		}
	})
	return len(ops)
}
