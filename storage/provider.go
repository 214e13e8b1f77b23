/*
Package storage provides tile providers over object stores and local
filesystems, plus the caches consulted in front of them.  Raw tiles are
addressed by a deterministic key shared with the ingestion pipeline; any
component that fetches tiles depends only on the render.TileSource contract,
not a concrete storage technology.
*/
package storage

import (
	"bytes"
	"image"
	"strings"

	// Generic codecs for tiles stored in formats other than TIFF.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/tiff"

	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// DefaultTileExtension is the extension of stored raw tiles; it selects the
// decode path as well as the storage key suffix.
const DefaultTileExtension = "tif"

// MissingTileHandler resolves a tile that does not exist in the store.
// Implementations may raise a tile-bounds error with the offending
// coordinates, or resolve a fallback image.
type MissingTileHandler interface {
	HandleMissingTile(addr wsi.TileAddress) (*render.Image, error)
}

// BoundsErrorHandler is the default MissingTileHandler: it uniformly raises
// a TileBoundsError naming the full tile address.
type BoundsErrorHandler struct{}

func (BoundsErrorHandler) HandleMissingTile(addr wsi.TileAddress) (*render.Image, error) {
	return nil, wsi.TileBoundsf("requested tile not found %s", addr)
}

// BlankTileHandler substitutes a zero tile for missing objects.  This is the
// policy for sparse regions inside declared image bounds: the composite
// degrades to a dark area instead of failing the whole request.
type BlankTileHandler struct {
	TileSize int
	BitDepth uint8
}

func (h BlankTileHandler) HandleMissingTile(addr wsi.TileAddress) (*render.Image, error) {
	size := h.TileSize
	if size == 0 {
		size = wsi.DefaultTileSize
	}
	bits := h.BitDepth
	if bits == 0 {
		bits = 16
	}
	return render.NewImage(size, size, bits), nil
}

// DecodeTile decodes raw tile bytes according to the stored format.
func DecodeTile(data []byte, ext string) (*render.Image, error) {
	var img image.Image
	var err error
	switch strings.ToLower(ext) {
	case "tif", "tiff":
		img, err = tiff.Decode(bytes.NewReader(data))
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	return render.FromGoImage(img), nil
}
