package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// FileTileSource reads raw channel tiles from a local directory tree laid
// out with the same keys used in object stores.  Useful for development and
// tests without bucket credentials.
type FileTileSource struct {
	root    string
	ext     string
	cache   *TileCache
	missing MissingTileHandler
}

// NewFileTileSource returns a tile source rooted at the given directory.
// An empty ext defaults to DefaultTileExtension; a nil handler defaults to
// BoundsErrorHandler.
func NewFileTileSource(root, ext string, cache *TileCache, missing MissingTileHandler) *FileTileSource {
	if ext == "" {
		ext = DefaultTileExtension
	}
	if missing == nil {
		missing = BoundsErrorHandler{}
	}
	return &FileTileSource{
		root:    root,
		ext:     ext,
		cache:   cache,
		missing: missing,
	}
}

// GetTile implements render.TileSource.
func (s *FileTileSource) GetTile(ctx context.Context, addr wsi.TileAddress) (*render.Image, error) {
	key := addr.StorageKey(s.ext)
	if s.cache != nil {
		if data, found := s.cache.Get(key); found {
			return DecodeTile(data, s.ext)
		}
	}

	path := filepath.Join(s.root, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.missing.HandleMissingTile(addr)
		}
		return nil, wsi.StorageError{Op: "read", Key: key, Err: err}
	}

	if s.cache != nil {
		s.cache.Put(key, data)
	}
	return DecodeTile(data, s.ext)
}
