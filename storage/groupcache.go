package storage

import (
	"context"

	"github.com/golang/groupcache"

	"github.com/wsiserve/wsiserve/wsi"
)

// RenderedTileRenderer produces the encoded bytes for a prerendered tile key
// on a cache miss.  The bytes must be deterministic for a given key: rendered
// tiles are addressed by channel group ID, and saved channel groups are
// immutable, so entries never need invalidation.
type RenderedTileRenderer interface {
	RenderTileBytes(ctx context.Context, key string) ([]byte, error)
}

// RenderedTileCache is a get-through cache of encoded prerendered tiles.
// Misses invoke the renderer; hits serve bytes without touching raw tile
// storage or compositing.
type RenderedTileCache struct {
	group *groupcache.Group
}

// RenderedTileCacheConfig configures the rendered tile cache.  Host is this
// server's base URL for the groupcache HTTP pool, e.g. "http://localhost:8000".
type RenderedTileCacheConfig struct {
	GB   int    `toml:"gb"`
	Host string `toml:"host"`
}

// NewRenderedTileCache initializes the groupcache pool and group.  Returns
// nil when the configured size is zero.
func NewRenderedTileCache(config RenderedTileCacheConfig, renderer RenderedTileRenderer) *RenderedTileCache {
	if config.GB == 0 {
		return nil
	}
	cacheBytes := int64(config.GB) << 30

	groupcache.NewHTTPPool(config.Host)
	wsi.Infof("Initializing rendered tile cache with %d GB at %s...\n", config.GB, config.Host)
	group := groupcache.NewGroup("rendered", cacheBytes, groupcache.GetterFunc(
		func(ctx context.Context, key string, dest groupcache.Sink) error {
			data, err := renderer.RenderTileBytes(ctx, key)
			if err != nil {
				return err
			}
			return dest.SetBytes(data)
		}))
	return &RenderedTileCache{group: group}
}

// Get returns the encoded bytes for the rendered tile key, rendering on miss.
func (rc *RenderedTileCache) Get(ctx context.Context, key string) ([]byte, error) {
	timedLog := wsi.NewTimeLog()
	var data []byte
	err := rc.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data))
	if err != nil {
		return nil, err
	}
	timedLog.Debugf("rendered tile cache get %q (%d bytes)", key, len(data))
	return data, nil
}
