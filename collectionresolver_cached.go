package gonimbusx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type collectionsFastCacheEntry struct {
	CollectionID uint32
	ManifestRev  uint64
}

type collectionsFastManifest struct {
	collections map[string]collectionsFastCacheEntry
}

type collectionCacheEntry struct {
	ResolveErr   error
	CollectionID uint32
	ManifestRev  uint64

	// PendingCh is closed once the in-flight resolution completes, with
	// either a success or a failure recorded in the entry.
	PendingCh chan struct{}
}

type CollectionResolverCachedOptions struct {
	Logger   *zap.Logger
	Resolver CollectionResolver
}

// CollectionResolverCached caches resolved collection ids.  Hits are served
// from an atomically swapped read-only map with no locking; misses coalesce
// into a single in-flight lookup per (scope, collection) pair, so concurrent
// resolutions never issue duplicate wire requests.
type CollectionResolverCached struct {
	logger   *zap.Logger
	resolver CollectionResolver

	fastCache atomic.Pointer[collectionsFastManifest]

	slowLock sync.Mutex
	slowMap  map[string]*collectionCacheEntry
}

var _ CollectionResolver = (*CollectionResolverCached)(nil)

func NewCollectionResolverCached(opts *CollectionResolverCachedOptions) (*CollectionResolverCached, error) {
	if opts == nil {
		return nil, errors.New("options must be specified")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver must be non-nil")
	}

	return &CollectionResolverCached{
		logger:   loggerOrNop(opts.Logger),
		resolver: opts.Resolver,
		slowMap:  make(map[string]*collectionCacheEntry),
	}, nil
}

func (cr *CollectionResolverCached) rebuildFastCacheLocked() {
	manifest := &collectionsFastManifest{
		collections: make(map[string]collectionsFastCacheEntry),
	}

	for fullKeyPath, entry := range cr.slowMap {
		if entry.PendingCh == nil && entry.ResolveErr == nil {
			manifest.collections[fullKeyPath] = collectionsFastCacheEntry{
				CollectionID: entry.CollectionID,
				ManifestRev:  entry.ManifestRev,
			}
		}
	}

	cr.fastCache.Store(manifest)
}

func (cr *CollectionResolverCached) ResolveCollectionID(
	ctx context.Context, scopeName, collectionName string,
) (uint32, uint64, error) {
	fullKeyPath := scopeName + "." + collectionName

	fastCache := cr.fastCache.Load()
	if fastCache != nil {
		entry, wasFound := fastCache.collections[fullKeyPath]
		if wasFound {
			return entry.CollectionID, entry.ManifestRev, nil
		}
	}

	return cr.resolveCollectionIDSlow(ctx, scopeName, collectionName)
}

func (cr *CollectionResolverCached) resolveCollectionIDSlow(
	ctx context.Context, scopeName, collectionName string,
) (uint32, uint64, error) {
	fullKeyPath := scopeName + "." + collectionName

	cr.slowLock.Lock()

	entry, hasEntry := cr.slowMap[fullKeyPath]
	if !hasEntry {
		entry = &collectionCacheEntry{
			PendingCh: make(chan struct{}),
		}
		cr.slowMap[fullKeyPath] = entry

		go cr.resolveCollectionThread(entry, fullKeyPath, scopeName, collectionName)
	}

	pendingCh := entry.PendingCh
	cr.slowLock.Unlock()

	if pendingCh != nil {
		select {
		case <-pendingCh:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}

	cr.slowLock.Lock()
	defer cr.slowLock.Unlock()

	if entry.ResolveErr != nil {
		return 0, 0, entry.ResolveErr
	}

	return entry.CollectionID, entry.ManifestRev, nil
}

func (cr *CollectionResolverCached) resolveCollectionThread(
	entry *collectionCacheEntry,
	fullKeyPath, scopeName, collectionName string,
) {
	collectionID, manifestRev, err := cr.resolver.ResolveCollectionID(
		context.Background(), scopeName, collectionName)

	cr.slowLock.Lock()

	pendingCh := entry.PendingCh
	entry.PendingCh = nil

	if err != nil {
		entry.ResolveErr = err

		// failed lookups are not cached; the next resolution retries.
		if cr.slowMap[fullKeyPath] == entry {
			delete(cr.slowMap, fullKeyPath)
		}
	} else {
		entry.CollectionID = collectionID
		entry.ManifestRev = manifestRev
		cr.rebuildFastCacheLocked()
	}

	cr.slowLock.Unlock()

	if pendingCh != nil {
		close(pendingCh)
	}
}

// Clear drops every settled cache entry.  In-flight resolutions are left to
// finish; their waiters still observe a single completion.
func (cr *CollectionResolverCached) Clear() {
	cr.slowLock.Lock()
	defer cr.slowLock.Unlock()

	for fullKeyPath, entry := range cr.slowMap {
		if entry.PendingCh == nil {
			delete(cr.slowMap, fullKeyPath)
		}
	}

	cr.rebuildFastCacheLocked()
}

// InvalidateCollectionID drops a cached mapping whose manifest revision is at
// or below the invalidating revision.  This is driven by an external signal
// (the server reporting a manifest mismatch).
func (cr *CollectionResolverCached) InvalidateCollectionID(
	ctx context.Context, scopeName, collectionName string, invalidatingManifestRev uint64,
) {
	fullKeyPath := scopeName + "." + collectionName

	cr.slowLock.Lock()

	entry, wasFound := cr.slowMap[fullKeyPath]
	if !wasFound || entry.PendingCh != nil {
		// nothing cached, or a refetch is already in flight
		cr.slowLock.Unlock()
		return
	}

	if entry.ManifestRev > invalidatingManifestRev {
		// our entry is newer than what is being invalidated
		cr.slowLock.Unlock()
		return
	}

	delete(cr.slowMap, fullKeyPath)
	cr.rebuildFastCacheLocked()
	cr.slowLock.Unlock()

	cr.logger.Debug("invalidated cached collection id",
		zap.String("scope", scopeName),
		zap.String("collection", collectionName),
		zap.Uint64("manifestRev", invalidatingManifestRev))

	cr.resolver.InvalidateCollectionID(ctx, scopeName, collectionName, invalidatingManifestRev)
}
