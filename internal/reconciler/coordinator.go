package reconciler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"mcpstudio/internal/aggregator"
	"mcpstudio/internal/api"
	"mcpstudio/internal/store"
	"mcpstudio/pkg/logging"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Coordinator decides which servers should be connected and asks the
// ConnectionManager to make it so. Globals are connected once per process;
// user servers are reconciled against the store on demand.
type Coordinator struct {
	opts    Options
	manager *aggregator.ConnectionManager

	globalOnce sync.Once
	globalDone chan struct{}
	retrying   atomic.Bool

	users singleflight.Group

	mu       sync.Mutex
	failures map[string]failure

	now func() time.Time
}

// New creates a Coordinator. opts.Manager is required.
func New(opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		opts:       opts,
		manager:    opts.Manager,
		globalDone: make(chan struct{}),
		failures:   make(map[string]failure),
		now:        time.Now,
	}
}

// Globals returns the configured global descriptors.
func (c *Coordinator) Globals() []api.ServerDescriptor {
	return slices.Clone(c.opts.Globals)
}

// EnsureGlobalServers connects every global server. The first call starts
// the work and every caller, concurrent or later, waits for that same
// attempt. A caller whose ctx ends stops waiting without cancelling it.
//
// Once the first attempt has finished, globals that are not connected are
// retried in the background, at most once per retry interval each.
func (c *Coordinator) EnsureGlobalServers(ctx context.Context) error {
	c.globalOnce.Do(func() {
		go func() {
			defer close(c.globalDone)
			connected, failed := c.connectAll(context.Background(), c.opts.Globals, "")
			logging.Info("Coordinator", "Global servers: %d connected, %d failed", len(connected), len(failed))
		}()
	})

	select {
	case <-c.globalDone:
	case <-ctx.Done():
		return fmt.Errorf("waiting for global servers: %w", ctx.Err())
	}

	c.retryGlobals()
	return nil
}

func (c *Coordinator) retryGlobals() {
	var due []api.ServerDescriptor
	for _, desc := range c.opts.Globals {
		if !c.manager.IsConnected(desc.Name) && c.due(desc) {
			due = append(due, desc)
		}
	}
	if len(due) == 0 || !c.retrying.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.retrying.Store(false)
		logging.Debug("Coordinator", "Retrying %d global servers", len(due))
		c.connectAll(context.Background(), due, "")
	}()
}

// ReconcileUser brings the user's connections in line with the store:
// enabled servers are connected, servers that disappeared are disconnected.
// A server that fails is logged and skipped. Concurrent calls for the same
// user share one reconciliation.
//
// When the store cannot be read nothing is disconnected.
func (c *Coordinator) ReconcileUser(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, errors.New("user id is required")
	}
	if c.opts.Store == nil {
		return Result{UserID: userID}, nil
	}

	ch := c.users.DoChan(userID, func() (interface{}, error) {
		return c.reconcileUser(context.WithoutCancel(ctx), userID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for reconciliation of user %s: %w", userID, ctx.Err())
	}
}

func (c *Coordinator) reconcileUser(ctx context.Context, userID string) (Result, error) {
	rows, err := c.opts.Store.ListEnabledServers(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load servers for user %s: %w", userID, err)
	}

	result := Result{UserID: userID}
	var (
		current   []string
		toConnect []api.ServerDescriptor
	)
	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		desc, err := store.ToDescriptor(userID, row)
		if err != nil {
			logging.Warn("Coordinator", "Skipping server %s of user %s: %v", row.Name, userID, err)
			result.Invalid = append(result.Invalid, row.Name)
			continue
		}

		current = append(current, desc.Name)
		c.manager.TrackUserServer(userID, desc.Name)

		if !c.manager.IsConnected(desc.Name) && !c.due(desc) {
			result.Failed = append(result.Failed, desc.Name)
			continue
		}
		toConnect = append(toConnect, desc)
	}

	connected, failed := c.connectAll(ctx, toConnect, userID)
	result.Connected = connected
	result.Failed = append(result.Failed, failed...)

	result.Removed = c.manager.CleanupUserServers(userID, current)
	c.forget(result.Removed...)

	slices.Sort(result.Failed)
	slices.Sort(result.Invalid)

	logging.Debug("Coordinator", "Reconciled user %s: %d connected, %d failed, %d removed",
		userID, len(result.Connected), len(result.Failed), len(result.Removed))
	return result, nil
}

// EnsureForRequest prepares the connections a request needs: the globals
// and, for an identified user, that user's servers. Individual server
// failures never fail the request; only an ended ctx does.
func (c *Coordinator) EnsureForRequest(ctx context.Context, userID string) error {
	if err := c.EnsureGlobalServers(ctx); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}

	if _, err := c.ReconcileUser(ctx, userID); err != nil {
		if ctx.Err() != nil {
			return err
		}
		logging.Error("Coordinator", err, "Failed to reconcile servers of user %s", userID)
	}
	return nil
}

// ResolveServerName maps the name a user refers to onto a registry name. The
// user's own server wins over a global of the same name. Servers owned by
// another user are reported as not connected.
func (c *Coordinator) ResolveServerName(userID, name string) (string, error) {
	registry := c.manager.Registry()

	if userID != "" {
		own := store.UserServerName(userID, name)
		if registry.Get(own) != nil {
			return own, nil
		}
	}

	if conn := registry.Get(name); conn != nil && conn.OwnerUserID != "" && conn.OwnerUserID != userID {
		return "", api.NewNotConnectedError(name)
	}
	return name, nil
}

// connectAll connects descs with bounded parallelism and returns the sorted
// names that connected and failed.
func (c *Coordinator) connectAll(ctx context.Context, descs []api.ServerDescriptor, owner string) (connected, failed []string) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.opts.MaxParallel)

	for _, desc := range descs {
		g.Go(func() error {
			var opts []aggregator.ConnectOption
			if owner != "" {
				opts = append(opts, aggregator.WithOwner(owner))
			}

			_, err := c.manager.ConnectToServer(ctx, desc, opts...)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Warn("Coordinator", "Server %s unavailable: %v", desc.Name, err)
				c.recordFailure(desc)
				failed = append(failed, desc.Name)
				return nil
			}
			c.forget(desc.Name)
			connected = append(connected, desc.Name)
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(connected)
	slices.Sort(failed)
	return connected, failed
}

// due reports whether desc may be attempted now. A changed descriptor is
// always due.
func (c *Coordinator) due(desc api.ServerDescriptor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.failures[desc.Name]
	if !ok || !f.desc.Equal(desc) {
		return true
	}
	return c.now().Sub(f.at) >= c.opts.RetryInterval
}

func (c *Coordinator) recordFailure(desc api.ServerDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[desc.Name] = failure{at: c.now(), desc: desc}
}

func (c *Coordinator) forget(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		delete(c.failures, name)
	}
}
