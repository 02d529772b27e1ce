package access

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/testbench-tools/taco/internal/lockstore"
)

// Refresh reconciles launched sessions and then reloads every known lock
// record from the store in one query. The staleness window restarts even
// if the refresh fails, so a broken store is not hammered on every read.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.cache.MarkRefreshed()

	if err := c.reconcile(ctx); err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		return err
	}

	if len(c.resources) == 0 {
		refreshTotal.WithLabelValues("ok").Inc()
		return nil
	}
	addrs := c.addresses()
	recs, err := c.store.GetLocks(ctx, addrs)
	var nf *lockstore.NotFoundError
	if errors.As(err, &nf) {
		// Another client's store, or rows removed behind our back: register
		// the missing testbenches as free and fetch once more.
		c.logger.Info("registering missing testbenches", "addresses", nf.Addresses)
		for _, a := range nf.Addresses {
			if err := c.store.EnsureResource(ctx, a); err != nil {
				refreshTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("refresh locks: %w", err)
			}
		}
		recs, err = c.store.GetLocks(ctx, addrs)
	}
	if err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		c.logger.Warn("refresh failed", "error", err)
		return fmt.Errorf("refresh locks: %w", err)
	}

	byID := make(map[string]lockstore.Record, len(c.resources))
	for _, r := range c.resources {
		if rec, ok := recs[r.Address]; ok {
			byID[r.ID] = rec
		}
	}
	c.cache.Merge(byID)
	refreshTotal.WithLabelValues("ok").Inc()
	return nil
}

// addresses returns the distinct addresses of the known resources.
func (c *Controller) addresses() []string {
	seen := make(map[string]bool, len(c.resources))
	out := make([]string, 0, len(c.resources))
	for _, r := range c.resources {
		if !seen[r.Address] {
			seen[r.Address] = true
			out = append(out, r.Address)
		}
	}
	return out
}

// reconcile drops the records of sessions whose process has exited, first
// releasing the lock if this user still holds it. A failed release aborts
// and keeps the record for the next refresh.
func (c *Controller) reconcile(ctx context.Context) error {
	for _, id := range slices.Sorted(maps.Keys(c.launched)) {
		rec := c.launched[id]
		if c.prober.IsRunning(rec.pid) {
			continue
		}
		log := c.logger.WithResource(id)

		holder, err := c.holderAt(ctx, rec.address)
		if err != nil {
			return fmt.Errorf("auto-release %s: %w", id, err)
		}
		if holder == c.user {
			if err := c.store.SetLock(ctx, rec.address, ""); err != nil {
				log.Warn("auto-release failed", "pid", rec.pid, "error", err)
				return fmt.Errorf("auto-release %s: %w", id, err)
			}
			c.putAddress(rec.address, lockstore.Record{HeldSince: c.clock.Now()})
			autoReleaseTotal.Inc()
			log.Info("session exited, lock released", "pid", rec.pid)
		} else {
			log.Info("session exited, lock no longer ours", "pid", rec.pid, "holder", holder)
		}
		delete(c.launched, id)
	}
	return nil
}

// holderAt returns the cached holder of address. When nothing is cached
// for it, as after a topology reload, the store is asked directly.
func (c *Controller) holderAt(ctx context.Context, address string) (string, error) {
	for _, r := range c.resources {
		if r.Address != address {
			continue
		}
		if rec, ok := c.cache.Get(r.ID); ok {
			return rec.Holder, nil
		}
	}
	recs, err := c.store.GetLocks(ctx, []string{address})
	if errors.Is(err, lockstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return recs[address].Holder, nil
}
