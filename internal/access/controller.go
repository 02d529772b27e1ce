// Package access is the façade clients use to read, take and release
// testbench locks.
//
// A Controller binds at most one lock store and a set of resources loaded
// from a topology. Reads are served from a local cache that is refreshed
// from the store in one batched query once it is older than the refresh
// threshold. Sessions launched through the Controller are tracked by
// process id, and their locks are released automatically once the process
// has exited.
//
// A Controller is not safe for concurrent use.
package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/launcher"
	"github.com/testbench-tools/taco/internal/liveness"
	"github.com/testbench-tools/taco/internal/lockcache"
	"github.com/testbench-tools/taco/internal/lockstore"
	"github.com/testbench-tools/taco/internal/logging"
	"github.com/testbench-tools/taco/internal/topology"
)

var (
	// ErrNoStore is returned by writes while no lock store is bound.
	ErrNoStore = errors.New("no lock store configured")

	// ErrUnknownResource is returned for ids that are not in the topology.
	ErrUnknownResource = errors.New("unknown testbench")
)

// LockStore is the subset of *lockstore.Store the Controller uses.
type LockStore interface {
	EnsureResource(ctx context.Context, address string) error
	GetLocks(ctx context.Context, addresses []string) (map[string]lockstore.Record, error)
	SetLock(ctx context.Context, address, holder string) error
	Location() string
	Close() error
}

// Opener binds the store at location.
type Opener func(ctx context.Context, location string) (LockStore, error)

// StoreOpener returns an Opener for lockstore.Open.
func StoreOpener(c clock.Clock, l *logging.Logger) Opener {
	return func(ctx context.Context, location string) (LockStore, error) {
		s, err := lockstore.Open(ctx, location, lockstore.WithClock(c), lockstore.WithLogger(l))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Options configures a Controller. Only User is required.
type Options struct {
	// User is written as the holder when this client takes a lock.
	User string
	// RefreshThreshold bounds cache staleness (default 10s).
	RefreshThreshold time.Duration
	// Open binds stores for ConfigureStore (default StoreOpener).
	Open     Opener
	Launcher launcher.Launcher
	// Prober checks launched sessions (default liveness.OS()).
	Prober liveness.Prober
	Clock  clock.Clock
	Logger *logging.Logger
}

// Result reports the outcome of an operation that degrades instead of
// failing, such as binding a store or loading a topology.
type Result struct {
	OK      bool
	Message string
}

func success(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// launchRecord tracks a session this client started.
type launchRecord struct {
	pid     int
	address string
}

// Status is the lock state of one resource.
type Status struct {
	Resource topology.Resource
	Record   lockstore.Record
	// Known is false when no record has been fetched for the resource.
	Known bool
	// PID is the tracked session process, or 0.
	PID int
}

// Controller coordinates lock access for one user.
type Controller struct {
	user     string
	open     Opener
	launcher launcher.Launcher
	prober   liveness.Prober
	clock    clock.Clock
	logger   *logging.Logger

	store LockStore
	cache *lockcache.Cache

	topo      *topology.Topology
	resources []topology.Resource
	byID      map[string]topology.Resource

	launched map[string]launchRecord
}

// New returns a Controller with no store and no resources.
func New(opts Options) *Controller {
	c := &Controller{
		user:     opts.User,
		open:     opts.Open,
		launcher: opts.Launcher,
		prober:   opts.Prober,
		clock:    opts.Clock,
		logger:   opts.Logger,
		topo:     &topology.Topology{},
		byID:     make(map[string]topology.Resource),
		launched: make(map[string]launchRecord),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.WithComponent("access").WithUser(c.user)
	if c.open == nil {
		c.open = StoreOpener(c.clock, c.logger)
	}
	if c.prober == nil {
		c.prober = liveness.OS()
	}
	c.cache = lockcache.New(c.clock, opts.RefreshThreshold)
	return c
}

// ConfigureStore binds the store at location and registers every known
// resource in it. The previous store stays bound if this fails. An empty
// location unbinds the store, after which every resource reads as free.
func (c *Controller) ConfigureStore(ctx context.Context, location string) Result {
	if location == "" {
		c.closeStore()
		c.cache.Reset()
		c.logger.Info("lock store unbound")
		return success("no lock store configured")
	}

	s, err := c.open(ctx, location)
	if err != nil {
		c.logger.Warn("failed to bind lock store", "location", location, "error", err)
		return failure("failed to open lock store %s: %v", location, err)
	}
	if err := ensureAll(ctx, s, c.resources); err != nil {
		s.Close()
		c.logger.Warn("failed to register testbenches", "location", location, "error", err)
		return failure("failed to load lock store %s: %v", location, err)
	}

	c.closeStore()
	c.store = s
	c.cache.Reset()
	c.logger.Info("lock store bound", "location", s.Location(), "resources", len(c.resources))
	return success("using lock store %s", s.Location())
}

func (c *Controller) closeStore() {
	if c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		c.logger.Warn("failed to close lock store", "location", c.store.Location(), "error", err)
	}
	c.store = nil
}

func ensureAll(ctx context.Context, s LockStore, resources []topology.Resource) error {
	for _, r := range resources {
		if err := s.EnsureResource(ctx, r.Address); err != nil {
			return err
		}
	}
	return nil
}

// LoadResources replaces the resource set with the contents of t and
// registers each address in the bound store.
func (c *Controller) LoadResources(ctx context.Context, t *topology.Topology) Result {
	if t == nil {
		t = &topology.Topology{}
	}
	c.topo = t
	c.resources = t.Resources()
	c.byID = make(map[string]topology.Resource, len(c.resources))
	for _, r := range c.resources {
		c.byID[r.ID] = r
	}
	c.cache.Reset()
	c.logger.Info("testbenches loaded", "count", len(c.resources))

	if c.store == nil {
		return success("loaded %d testbenches", len(c.resources))
	}
	if err := ensureAll(ctx, c.store, c.resources); err != nil {
		c.logger.Warn("failed to register testbenches", "error", err)
		return failure("loaded %d testbenches but could not register them: %v", len(c.resources), err)
	}
	return success("loaded %d testbenches", len(c.resources))
}

// LoadTopologyFile loads the topology at path. A missing or invalid file
// leaves the Controller with no resources.
func (c *Controller) LoadTopologyFile(ctx context.Context, path string) Result {
	t, err := topology.LoadFile(path)
	if err != nil {
		c.LoadResources(ctx, nil)
		c.logger.Warn("failed to load topology", "path", path, "error", err)
		return failure("failed to load testbench topology: %v", err)
	}
	return c.LoadResources(ctx, t)
}

// Resource returns the resource with the given id.
func (c *Controller) Resource(id string) (topology.Resource, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Resources returns every resource in topology order.
func (c *Controller) Resources() []topology.Resource {
	return slices.Clone(c.resources)
}

// Topology returns the loaded topology, for grouped display.
func (c *Controller) Topology() *topology.Topology { return c.topo }

// User returns the name written as lock holder.
func (c *Controller) User() string { return c.user }

// StoreLocation returns the bound store's location, or "" without a store.
func (c *Controller) StoreLocation() string {
	if c.store == nil {
		return ""
	}
	return c.store.Location()
}

// Launched returns the process id of the session tracked for id.
func (c *Controller) Launched(id string) (int, bool) {
	rec, ok := c.launched[id]
	return rec.pid, ok
}

// Close unbinds the store.
func (c *Controller) Close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

func (c *Controller) resolve(id string) (topology.Resource, error) {
	r, ok := c.byID[id]
	if !ok {
		return topology.Resource{}, fmt.Errorf("%w %q", ErrUnknownResource, id)
	}
	return r, nil
}

// GetLock returns the lock record for id, refreshing the cache first when
// force is set or the cache is stale. Without a store every resource is
// free as of now.
func (c *Controller) GetLock(ctx context.Context, id string, force bool) (lockstore.Record, error) {
	r, err := c.resolve(id)
	if err != nil {
		return lockstore.Record{}, err
	}
	if c.store == nil {
		return lockstore.Record{HeldSince: c.clock.Now()}, nil
	}
	if force || c.cache.Stale() {
		if err := c.Refresh(ctx); err != nil {
			return lockstore.Record{}, err
		}
	}
	rec, ok := c.cache.Get(r.ID)
	if !ok {
		return lockstore.Record{}, &lockstore.NotFoundError{Addresses: []string{r.Address}, Location: c.store.Location()}
	}
	return rec, nil
}

// IsLocked reports whether anyone holds the lock for id.
func (c *Controller) IsLocked(ctx context.Context, id string, force bool) (bool, error) {
	rec, err := c.GetLock(ctx, id, force)
	if err != nil {
		return false, err
	}
	return !rec.Free(), nil
}

// SetLock records holder as the owner of id, or frees it when holder is
// empty. The write goes to the store and then to the cache. There is no
// check for an existing holder.
func (c *Controller) SetLock(ctx context.Context, id, holder string) error {
	r, err := c.resolve(id)
	if err != nil {
		return err
	}
	if c.store == nil {
		return ErrNoStore
	}
	if err := c.store.SetLock(ctx, r.Address, holder); err != nil {
		return fmt.Errorf("set lock on %s: %w", id, err)
	}
	c.putAddress(r.Address, lockstore.Record{Holder: holder, HeldSince: c.clock.Now()})
	c.logger.WithResource(id).Info("lock written", "holder", holder)
	return nil
}

// Acquire takes the lock on id for the current user.
func (c *Controller) Acquire(ctx context.Context, id string) error {
	return c.SetLock(ctx, id, c.user)
}

// UnsetLock frees the lock on id.
func (c *Controller) UnsetLock(ctx context.Context, id string) error {
	return c.SetLock(ctx, id, "")
}

// putAddress updates every cached id that shares address.
func (c *Controller) putAddress(address string, rec lockstore.Record) {
	for _, r := range c.resources {
		if r.Address == address {
			c.cache.Put(r.ID, rec)
		}
	}
}

// Statuses returns every resource in topology order with its lock record,
// refreshing at most once.
func (c *Controller) Statuses(ctx context.Context, force bool) ([]Status, error) {
	out := make([]Status, 0, len(c.resources))
	if c.store == nil {
		now := c.clock.Now()
		for _, r := range c.resources {
			out = append(out, Status{Resource: r, Record: lockstore.Record{HeldSince: now}, Known: true})
		}
		return out, nil
	}

	var err error
	if force || c.cache.Stale() {
		err = c.Refresh(ctx)
	}
	for _, r := range c.resources {
		rec, ok := c.cache.Get(r.ID)
		out = append(out, Status{Resource: r, Record: rec, Known: ok, PID: c.launched[r.ID].pid})
	}
	return out, err
}

// CacheAge returns the time since the last refresh.
func (c *Controller) CacheAge() time.Duration { return c.cache.Age() }

// LaunchSession takes the lock on id and starts a remote desktop session to
// it. The lock is released again if the session cannot be started, and
// released automatically by a later refresh once the session exits.
// Without a store the session is started untracked and no lock is taken.
func (c *Controller) LaunchSession(ctx context.Context, id string) (int, error) {
	r, err := c.resolve(id)
	if err != nil {
		return 0, err
	}
	if c.launcher == nil {
		return 0, errors.New("no session launcher configured")
	}
	log := c.logger.WithResource(id)

	if c.store == nil {
		pid, err := c.launcher.Launch(ctx, r)
		if err != nil {
			launchTotal.WithLabelValues("error").Inc()
			return 0, fmt.Errorf("launch session to %s: %w", id, err)
		}
		launchTotal.WithLabelValues("untracked").Inc()
		log.Info("session launched without a lock store", "pid", pid)
		return pid, nil
	}

	if rec, ok := c.launched[id]; ok && c.prober.IsRunning(rec.pid) {
		return 0, fmt.Errorf("a session to %s is already running (pid %d)", id, rec.pid)
	}
	if err := c.Acquire(ctx, id); err != nil {
		launchTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	pid, err := c.launcher.Launch(ctx, r)
	if err != nil {
		launchTotal.WithLabelValues("error").Inc()
		if uerr := c.UnsetLock(ctx, id); uerr != nil {
			log.Error("failed to release lock after launch failure", "error", uerr)
		}
		return 0, fmt.Errorf("launch session to %s: %w", id, err)
	}
	c.launched[id] = launchRecord{pid: pid, address: r.Address}
	launchTotal.WithLabelValues("ok").Inc()
	log.Info("session launched", "pid", pid)
	return pid, nil
}
