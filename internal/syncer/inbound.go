package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/frc-plan-sync/internal/model"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/store"
)

// streams are opened on every connect. The session stream only carries the
// version.
var streams = []remote.Collection{remote.SessionDoc, remote.Capabilities, remote.GamePlans, remote.Strategies}

// Create makes a new remote session and connects to it. An empty code asks
// the remote to pick one where it can.
func (c *Coordinator) Create(ctx context.Context, code string) (string, error) {
	if c.remote == nil {
		return "", ErrNoRemote
	}
	sess, err := c.remote.CreateSession(ctx, remote.NormalizeCode(code))
	if err != nil {
		return "", err
	}
	return sess.Code, c.Connect(ctx, sess.Code)
}

// Connect joins an existing session. A missing session leaves the status at
// not-found and is not retried.
func (c *Coordinator) Connect(ctx context.Context, code string) error {
	if c.remote == nil {
		return ErrNoRemote
	}
	code = remote.NormalizeCode(code)
	if code == "" {
		return ErrNoSession
	}
	c.Disconnect()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.code = code
	c.mu.Unlock()
	c.setStatus(gen, StatusConnecting)
	log := c.log.With(zap.String("session", code))

	sess, err := c.remote.GetSession(ctx, code)
	if err != nil {
		return c.connectFailed(gen, err)
	}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.versions.reset(sess.Version)
	c.mu.Unlock()

	subs := make([]*remote.Subscription, len(streams))
	g, gctx := errgroup.WithContext(ctx)
	for i, coll := range streams {
		g.Go(func() error {
			sub, err := c.remote.Subscribe(gctx, code, coll)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", coll, err)
			}
			subs[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(subs)
		return c.connectFailed(gen, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		closeAll(subs)
		return ErrSuperseded
	}
	c.subs = subs
	c.waiting = make(map[remote.Collection]bool, len(streams))
	for _, coll := range streams {
		c.waiting[coll] = true
	}
	c.ready = make(chan struct{})
	c.mu.Unlock()

	log.Info("subscribed", zap.Int64("version", sess.Version))
	for i, sub := range subs {
		go c.consume(gen, streams[i], sub)
	}
	return nil
}

func closeAll(subs []*remote.Subscription) {
	for _, s := range subs {
		if s != nil {
			s.Close()
		}
	}
}

func (c *Coordinator) connectFailed(gen int, err error) error {
	if errors.Is(err, remote.ErrSessionNotFound) {
		c.setStatus(gen, StatusNotFound)
		c.mu.Lock()
		if gen == c.gen {
			c.code = ""
			c.versions = versionTracker{}
		}
		c.mu.Unlock()
		return err
	}
	c.setStatus(gen, StatusDisconnected)
	return err
}

// Disconnect stops inbound delivery and leaves the session. Writes already
// queued still go out.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	subs := c.subs
	c.subs = nil
	c.code = ""
	c.gotPlans = false
	c.waiting, c.ready = nil, nil
	c.versions = versionTracker{}
	c.mu.Unlock()

	closeAll(subs)
	c.setStatus(gen, StatusDisconnected)
}

func (c *Coordinator) current(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Coordinator) consume(gen int, coll remote.Collection, sub *remote.Subscription) {
	for snap := range sub.C {
		if !c.current(gen) {
			continue
		}
		c.apply(gen, snap)
	}
	if err := sub.Err(); err != nil && c.current(gen) {
		c.log.Warn("subscription ended", zap.String("collection", string(coll)), zap.Error(err))
		c.notify.Notify(fmt.Errorf("%s stream: %w", coll, err))
		c.setStatus(gen, StatusDisconnected)
	}
}

func (c *Coordinator) apply(gen int, snap remote.Snapshot) {
	now := c.now()
	switch snap.Collection {
	case remote.SessionDoc:
		c.observeVersion(gen, snap.Version)
		c.markSynced(gen, snap.Collection)
		return

	case remote.Capabilities:
		c.local.SetCapabilities(decodeAll(c.log, snap.Docs, now, capabilityFromDoc))

	case remote.GamePlans:
		c.local.SetGamePlans(decodeAll(c.log, snap.Docs, now, gamePlanFromDoc))
		c.mu.Lock()
		first := !c.gotPlans && gen == c.gen
		c.gotPlans = true
		c.mu.Unlock()
		// a brand-new session starts with the default plan
		if first && len(c.local.GamePlans()) == 0 {
			c.ensurePlan()
		}

	case remote.Strategies:
		c.local.SetStrategies(decodeAll(c.log, snap.Docs, now, strategyFromDoc))

	default:
		return
	}
	c.setStatus(gen, StatusConnected)
	c.markSynced(gen, snap.Collection)
}

func (c *Coordinator) markSynced(gen int, coll remote.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.waiting[coll] {
		return
	}
	delete(c.waiting, coll)
	if len(c.waiting) == 0 {
		close(c.ready)
	}
}

// WaitSynced blocks until every stream of the current connection has
// delivered its first snapshot.
func (c *Coordinator) WaitSynced(ctx context.Context) error {
	c.mu.Lock()
	ch := c.ready
	c.mu.Unlock()
	if ch == nil {
		return ErrNoSession
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) observeVersion(gen int, version int64) {
	c.mu.Lock()
	if gen != c.gen || c.versions.self == nil {
		c.mu.Unlock()
		return
	}
	if version > c.versions.seen {
		c.versions.seen = version
	}
	foreign := c.versions.settle()
	seen := c.versions.seen
	fns := slices.Clone(c.onUpdate)
	c.mu.Unlock()

	if foreign {
		c.log.Debug("remote update available", zap.Int64("version", seen))
		for _, fn := range fns {
			fn(seen)
		}
	}
}

func decodeAll[T any](log *zap.Logger, docs []remote.Doc, now time.Time, dec func(remote.Doc, time.Time) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := dec(d, now)
		if err != nil {
			log.Warn("skipping unreadable document", zap.String("id", d.ID), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}

// Import replaces everything locally, then makes the remote match with one
// batch: imported items are written and every other document is deleted.
func (c *Coordinator) Import(caps []model.Capability, plans []model.GamePlan, strats []model.Strategy) {
	before := c.local.State()
	c.local.ReplaceAll(caps, plans, strats)
	code := c.syncing()
	if code == "" {
		return
	}

	st := c.local.State()
	var sets []remote.Op
	for _, g := range st.GamePlans {
		if op, err := setOp(remote.GamePlans, g.ID, g); err == nil {
			sets = append(sets, op)
		}
	}
	for _, x := range st.Capabilities {
		if op, err := setOp(remote.Capabilities, x.ID, x); err == nil {
			sets = append(sets, op)
		}
	}
	for _, x := range st.Strategies {
		if op, err := setOp(remote.Strategies, x.ID, x); err == nil {
			sets = append(sets, op)
		}
	}
	keep := make(map[string]bool, len(sets))
	ids := make([]string, 0, len(sets))
	for _, op := range sets {
		keep[op.ID] = true
		ids = append(ids, op.ID)
	}
	// replaced items stay gone locally until the batch lands
	for _, id := range itemIDs(before) {
		if !keep[id] {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		c.local.MarkPending(id)
	}

	c.writer.push(job{
		code: code,
		what: "import",
		ids:  ids,
		run: func(ctx context.Context) error {
			ops := append([]remote.Op(nil), sets...)
			for _, coll := range remote.DataCollections {
				docs, err := c.remote.ListDocs(ctx, code, coll)
				if err != nil {
					return err
				}
				for _, d := range docs {
					if !keep[d.ID] {
						ops = append(ops, deleteOp(coll, d.ID))
					}
				}
			}
			return c.remote.BatchWrite(ctx, code, ops)
		},
	})
}

func itemIDs(st store.State) []string {
	ids := make([]string, 0, len(st.Capabilities)+len(st.GamePlans)+len(st.Strategies))
	for _, x := range st.Capabilities {
		ids = append(ids, x.ID)
	}
	for _, g := range st.GamePlans {
		ids = append(ids, g.ID)
	}
	for _, x := range st.Strategies {
		ids = append(ids, x.ID)
	}
	return ids
}
