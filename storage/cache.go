package storage

import (
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/golang/snappy"

	"github.com/wsiserve/wsiserve/wsi"
)

// maxCacheErrors is the number of consecutive cache write failures allowed
// before the cache disables itself.  Oversized tiles or a saturated cache
// should not keep burning cycles on every request.
const maxCacheErrors = 10

// TileCache caches snappy-compressed tile bytes in a fixed-size in-memory
// cache.  Entries are evicted LRU-style by freecache when the segment fills.
type TileCache struct {
	cache    *freecache.Cache
	disabled int32
	errors   int32

	hits     uint64
	misses   uint64
	puts     uint64
	putBytes uint64
}

// NewTileCache allocates a tile byte cache with the given capacity in bytes.
func NewTileCache(capacity int) *TileCache {
	return &TileCache{cache: freecache.NewCache(capacity)}
}

// Get returns the cached tile bytes for the key, decompressed, and whether
// the key was present.
func (tc *TileCache) Get(key string) ([]byte, bool) {
	if tc == nil || atomic.LoadInt32(&tc.disabled) != 0 {
		return nil, false
	}
	compressed, err := tc.cache.Get([]byte(key))
	if err != nil {
		if err != freecache.ErrNotFound {
			wsi.Errorf("tile cache get %q: %v\n", key, err)
		}
		atomic.AddUint64(&tc.misses, 1)
		return nil, false
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		wsi.Errorf("tile cache had corrupt entry %q: %v\n", key, err)
		tc.cache.Del([]byte(key))
		atomic.AddUint64(&tc.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&tc.hits, 1)
	return data, true
}

// Put stores tile bytes under the key, compressed.  Failures are logged and
// counted; after maxCacheErrors consecutive failures the cache turns itself
// off.
func (tc *TileCache) Put(key string, data []byte) {
	if tc == nil || atomic.LoadInt32(&tc.disabled) != 0 {
		return
	}
	compressed := snappy.Encode(nil, data)
	if err := tc.cache.Set([]byte(key), compressed, 0); err != nil {
		wsi.Errorf("tile cache set %q (%d bytes): %v\n", key, len(compressed), err)
		if atomic.AddInt32(&tc.errors, 1) >= maxCacheErrors {
			atomic.StoreInt32(&tc.disabled, 1)
			wsi.Errorf("tile cache disabled after %d consecutive errors\n", maxCacheErrors)
		}
		return
	}
	atomic.StoreInt32(&tc.errors, 0)
	atomic.AddUint64(&tc.puts, 1)
	atomic.AddUint64(&tc.putBytes, uint64(len(compressed)))
}

// Stats returns hit/miss/put counters since startup.
func (tc *TileCache) Stats() (hits, misses, puts, putBytes uint64) {
	return atomic.LoadUint64(&tc.hits), atomic.LoadUint64(&tc.misses),
		atomic.LoadUint64(&tc.puts), atomic.LoadUint64(&tc.putBytes)
}

// PermissionCache caches authorization decisions for a short TTL so each
// tile of a viewport does not repeat the permission lookup.
type PermissionCache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// DefaultPermissionTTL bounds how stale a cached permission decision can be.
const DefaultPermissionTTL = 300 * time.Second

// NewPermissionCache allocates a permission cache with the given capacity in
// bytes and entry TTL.  A zero ttl uses DefaultPermissionTTL.
func NewPermissionCache(capacity int, ttl time.Duration) *PermissionCache {
	if ttl == 0 {
		ttl = DefaultPermissionTTL
	}
	return &PermissionCache{cache: freecache.NewCache(capacity), ttl: ttl}
}

func permKey(subject, imageID string) []byte {
	return []byte(subject + "|" + imageID)
}

// Get returns the cached decision for (subject, image) and whether one was
// present and unexpired.
func (pc *PermissionCache) Get(subject, imageID string) (allowed, found bool) {
	if pc == nil {
		return false, false
	}
	v, err := pc.cache.Get(permKey(subject, imageID))
	if err != nil || len(v) != 1 {
		return false, false
	}
	return v[0] == 1, true
}

// Put records a decision for (subject, image).
func (pc *PermissionCache) Put(subject, imageID string, allowed bool) {
	if pc == nil {
		return
	}
	v := []byte{0}
	if allowed {
		v[0] = 1
	}
	if err := pc.cache.Set(permKey(subject, imageID), v, int(pc.ttl/time.Second)); err != nil {
		wsi.Errorf("permission cache set for %q: %v\n", subject, err)
	}
}
