// Package syncer ties local store mutations to a remote store and back.
//
// Local edits are applied first and never wait on the network. The matching
// remote writes leave one at a time, in the order they were made, from a
// single writer goroutine; a failure is reported to the Notifier and the local
// edit stays. Inbound snapshots replace whole collections, except for items
// with a write still in flight.
package syncer

import (
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/store"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	// StatusNotFound is terminal for the attempted code; pick another one.
	StatusNotFound Status = "not-found"
)

var (
	ErrNoRemote  = errors.New("no remote store configured")
	ErrNoSession = errors.New("no session code")
	// ErrSuperseded is returned by a Connect that lost to a later Connect or
	// Disconnect.
	ErrSuperseded = errors.New("connection attempt superseded")
)

// Notifier receives non-fatal sync failures.
type Notifier interface {
	Notify(err error)
}

type NotifierFunc func(error)

func (f NotifierFunc) Notify(err error) { f(err) }

// Recorder keeps every notification.
type Recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *Recorder) Notify(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type Coordinator struct {
	local  *store.Store
	remote remote.Store
	log    *zap.Logger
	notify Notifier
	now    func() time.Time

	writeTimeout time.Duration

	mu       sync.Mutex
	code     string
	status   Status
	gen      int
	subs     []*remote.Subscription
	gotPlans bool
	waiting  map[remote.Collection]bool
	ready    chan struct{}
	versions versionTracker
	onStatus []func(Status)
	onUpdate []func(int64)

	writer
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option       { return func(c *Coordinator) { c.log = l } }
func WithNotifier(n Notifier) Option        { return func(c *Coordinator) { c.notify = n } }
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// WithWriteTimeout bounds each remote write, version bump included.
func WithWriteTimeout(d time.Duration) Option { return func(c *Coordinator) { c.writeTimeout = d } }

// New starts a coordinator. rem may be nil, in which case every operation is
// local only. Close stops the writer.
func New(local *store.Store, rem remote.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		local:        local,
		remote:       rem,
		log:          zap.NewNop(),
		now:          time.Now,
		writeTimeout: 30 * time.Second,
		status:       StatusDisconnected,
	}
	for _, o := range opts {
		o(c)
	}
	if c.notify == nil {
		c.notify = NotifierFunc(func(err error) { c.log.Warn("sync failed", zap.Error(err)) })
	}
	c.writer.start(c.runJob)
	return c
}

// Local is the store the coordinator writes through. Reads and display-only
// settings (sort, filter, selection) go straight to it.
func (c *Coordinator) Local() *store.Store { return c.local }

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session is the active normalized session code, or "".
func (c *Coordinator) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// OnStatus registers fn for status changes. fn must not call back into the
// coordinator's connection methods.
func (c *Coordinator) OnStatus(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

// OnRemoteUpdate registers fn to hear about versions written by someone else.
func (c *Coordinator) OnRemoteUpdate(fn func(version int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = append(c.onUpdate, fn)
}

// RemoteUpdateAvailable reports whether another client has written since the
// last connect or AckRemoteUpdate.
func (c *Coordinator) RemoteUpdateAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions.flagged
}

func (c *Coordinator) AckRemoteUpdate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions.flagged = false
}

// setStatus must be called without c.mu held.
func (c *Coordinator) setStatus(gen int, s Status) {
	c.mu.Lock()
	if gen != c.gen || c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	fns := slices.Clone(c.onStatus)
	c.mu.Unlock()

	c.log.Debug("sync status", zap.String("status", string(s)))
	for _, fn := range fns {
		fn(s)
	}
}

// Close disconnects and stops the writer. Queued writes that have not
// started are dropped; call Flush first to wait for them.
func (c *Coordinator) Close() {
	c.Disconnect()
	c.writer.stop()
}

// versionTracker separates version bumps this client caused from everyone
// else's. Versions come from one counter, so every step between the last
// accounted version and the newest one seen is either ours or foreign.
type versionTracker struct {
	observed int64
	seen     int64
	bumping  int
	self     map[int64]bool
	flagged  bool
}

func (v *versionTracker) reset(version int64) {
	*v = versionTracker{observed: version, seen: version, self: map[int64]bool{}}
}

// settle reports whether versions in (observed, seen] include a foreign one.
// It waits while bumps of ours are in flight since one of them may account
// for what was seen.
func (v *versionTracker) settle() (foreign bool) {
	if v.bumping > 0 || v.seen <= v.observed {
		return false
	}
	mine := int64(0)
	for ver := range v.self {
		if ver <= v.seen {
			if ver > v.observed {
				mine++
			}
			delete(v.self, ver)
		}
	}
	foreign = v.seen-v.observed > mine
	v.observed = v.seen
	if foreign {
		v.flagged = true
	}
	return foreign
}
