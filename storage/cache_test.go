package storage

import (
	"bytes"
	"math/rand"
	"testing"
	"time"
)

func TestTileCacheRoundTrip(t *testing.T) {
	cache := NewTileCache(1 << 20)
	key := "img/C0-T0-Z0-L0-Y0-X0.tif"
	data := bytes.Repeat([]byte{7, 8, 9}, 1000)

	if _, found := cache.Get(key); found {
		t.Fatalf("unexpected hit on empty cache")
	}
	cache.Put(key, data)
	got, found := cache.Get(key)
	if !found {
		t.Fatalf("expected hit after put")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("cached bytes differ after compression round trip")
	}
}

func TestTileCacheSelfDisable(t *testing.T) {
	// freecache rejects entries larger than 1/1024 of the cache size; enough
	// consecutive failures turn the cache off instead of burning cycles.
	cache := NewTileCache(512 * 1024)
	rng := rand.New(rand.NewSource(42))
	big := make([]byte, 64*1024)
	rng.Read(big) // incompressible, stays oversized after snappy
	for i := 0; i < maxCacheErrors; i++ {
		cache.Put("big", big)
	}
	cache.Put("small", []byte("x"))
	if _, found := cache.Get("small"); found {
		t.Errorf("expected disabled cache to drop writes")
	}
}

func TestTileCacheNilSafe(t *testing.T) {
	var cache *TileCache
	cache.Put("k", []byte("v"))
	if _, found := cache.Get("k"); found {
		t.Errorf("nil cache should never hit")
	}
}

func TestPermissionCache(t *testing.T) {
	pc := NewPermissionCache(1<<20, time.Minute)
	if _, found := pc.Get("alice", "img-1"); found {
		t.Fatalf("unexpected hit on empty cache")
	}
	pc.Put("alice", "img-1", true)
	pc.Put("bob", "img-1", false)

	allowed, found := pc.Get("alice", "img-1")
	if !found || !allowed {
		t.Errorf("alice = (%v, %v), want allowed hit", allowed, found)
	}
	allowed, found = pc.Get("bob", "img-1")
	if !found || allowed {
		t.Errorf("bob = (%v, %v), want denied hit", allowed, found)
	}
	if _, found := pc.Get("alice", "img-2"); found {
		t.Errorf("unexpected hit for unchecked image")
	}
}
