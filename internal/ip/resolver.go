package ip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/metrics"
)

// Resolver returns the host's current public address for a family.
// Implementations consult their cache first and only go to the network on a miss.
// Failures are returned as is; retrying is up to the caller.
type Resolver interface {
	Resolve(ctx context.Context, f Family) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, f Family) (netip.Addr, error)

// Resolve implements Resolver.
func (fn ResolverFunc) Resolve(ctx context.Context, f Family) (netip.Addr, error) {
	return fn(ctx, f)
}

var (
	// ErrUnexpectedStatus is returned when a lookup service answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status from IP lookup service")

	// ErrNoAnswer is returned when a lookup service answers without an address.
	ErrNoAnswer = errors.New("IP lookup returned no address")
)

// FamilyMismatchError is returned when a lookup yields an address of the wrong family.
type FamilyMismatchError struct {
	Want Family
	Got  netip.Addr
}

func (e *FamilyMismatchError) Error() string {
	return fmt.Sprintf("expected an %s address, got %s", e.Want, e.Got)
}

// lookupFunc performs one uncached network lookup.
type lookupFunc func(ctx context.Context, f Family) (netip.Addr, error)

// cachedResolve serves f from cache or performs lookup and stores the result.
func cachedResolve(ctx context.Context, cache *Cache, strategy Strategy, f Family, logger *slog.Logger, lookup lookupFunc) (netip.Addr, error) {
	if cache != nil {
		if addr, ok := cache.Get(f); ok {
			metrics.IPResolutionsTotal.WithLabelValues(strategy.String(), f.String(), metrics.SourceCache, metrics.ResultSuccess).Inc()
			logger.Debug("public address served from cache",
				slog.String("family", f.String()),
				slog.String("address", addr.String()),
			)
			return addr, nil
		}
	}

	addr, err := lookup(ctx, f)
	metrics.IPResolutionsTotal.WithLabelValues(strategy.String(), f.String(), metrics.SourceRemote, metrics.Result(err)).Inc()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolving public %s address via %s: %w", f, strategy, err)
	}

	if cache != nil {
		cache.Set(f, addr)
	}

	logger.Debug("resolved public address",
		slog.String("strategy", strategy.String()),
		slog.String("family", f.String()),
		slog.String("address", addr.String()),
	)
	return addr, nil
}
