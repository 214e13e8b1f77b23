package wsi

import "fmt"

// DefaultTileSize is the edge length in pixels of stored raw tiles.
const DefaultTileSize = 1024

// TileAddress uniquely identifies one raw single-channel tile object in
// storage.  It is an immutable value type.
type TileAddress struct {
	ImageID string
	X       int
	Y       int
	Z       int
	T       int
	Channel int
	Level   int
}

// StorageKey returns the deterministic object key for this tile.  The format
// is load-bearing: converters, providers, and caches must agree on it
// byte-for-byte to interoperate.
func (a TileAddress) StorageKey(ext string) string {
	return fmt.Sprintf("%s/C%d-T%d-Z%d-L%d-Y%d-X%d.%s",
		a.ImageID, a.Channel, a.T, a.Z, a.Level, a.Y, a.X, ext)
}

func (a TileAddress) String() string {
	return fmt.Sprintf("uuid=%s c=%d x=%d y=%d z=%d t=%d level=%d",
		a.ImageID, a.Channel, a.X, a.Y, a.Z, a.T, a.Level)
}

// RenderedTileKey returns the cache key for a tile rendered with a persisted
// channel group, e.g. "{image_id}/T{t}-Z{z}-L{level}-Y{y}-X{x}/{channel_group_id}".
func RenderedTileKey(imageID string, x, y, z, t, level int, channelGroupID string) string {
	return fmt.Sprintf("%s/T%d-Z%d-L%d-Y%d-X%d/%s", imageID, t, z, level, y, x, channelGroupID)
}
