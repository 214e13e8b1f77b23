package render

import (
	"math"

	"github.com/wsiserve/wsiserve/wsi"
)

// compositeInto rescales one channel's samples so Min maps to 0 and Max to 1,
// clips, applies 1/gamma, multiplies by the channel color, and accumulates
// additively into dst at the given pixel offset.  A window with Max <= Min
// degenerates to constant-zero contribution.
//
// dstX/dstY place the tile's origin inside dst; pixels falling outside dst
// are clipped, which handles partial edge tiles during region assembly.
func compositeInto(dst *Raster, im *Image, color [3]float32, min, max, gamma float32, dstX, dstY int) {
	if im == nil {
		return
	}
	var scale float32
	if max > min {
		scale = 1 / (max - min)
	}
	invMax := 1 / im.MaxValue()
	exponent := float64(1)
	if gamma > 0 && gamma != 1 {
		exponent = 1 / float64(gamma)
	}

	for y := 0; y < im.Height; y++ {
		ty := dstY + y
		if ty < 0 || ty >= dst.Height {
			continue
		}
		for x := 0; x < im.Width; x++ {
			tx := dstX + x
			if tx < 0 || tx >= dst.Width {
				continue
			}
			v := (float32(im.Pix[y*im.Width+x])*invMax - min) * scale
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			if exponent != 1 {
				v = float32(math.Pow(float64(v), exponent))
			}
			i := (ty*dst.Width + tx) * 3
			dst.Pix[i] += v * color[0]
			dst.Pix[i+1] += v * color[1]
			dst.Pix[i+2] += v * color[2]
		}
	}
}

// CompositeChannels blends one or more single-channel tiles into one color
// raster.  All input tiles must share dimensions; mismatched shapes are a
// caller error.  gamma <= 0 leaves each channel's own gamma in effect.
// The result stays in [0, 1] floats; scaling to 8-bit happens only at the
// encode boundary.
func CompositeChannels(channels []*Channel, gamma float32) (*Raster, error) {
	if len(channels) == 0 {
		return nil, wsi.Invalidf("no channels to composite")
	}
	first := channels[0].Image
	if first == nil {
		return nil, wsi.Invalidf("channel %d has no pixel data attached", channels[0].Index)
	}
	for _, ch := range channels[1:] {
		if ch.Image == nil {
			return nil, wsi.Invalidf("channel %d has no pixel data attached", ch.Index)
		}
		if ch.Image.Width != first.Width || ch.Image.Height != first.Height {
			return nil, wsi.Invalidf("channel %d tile is %dx%d, want %dx%d",
				ch.Index, ch.Image.Width, ch.Image.Height, first.Width, first.Height)
		}
	}

	out := NewRaster(first.Width, first.Height)
	for _, ch := range channels {
		g := ch.Gamma
		if gamma > 0 {
			g = gamma
		}
		compositeInto(out, ch.Image, ch.Color, ch.Min, ch.Max, g, 0, 0)
	}
	out.Clip()
	return out, nil
}

// Subtile is one fetched tile placed within a larger target raster during
// region assembly.
type Subtile struct {
	Cell  GridCell
	Color [3]float32
	Min   float32
	Max   float32

	// Image is attached after fetch; nil means the tile contributed nothing
	// (skipped or substituted per missing-tile policy).
	Image *Image
}

// CompositeSubtiles blends a list of possibly-overlapping tile placements
// into one raster of size extentWidth x extentHeight.  Each tile's pixel data
// is additively blended into its (row,col)*tileShape - origin offset region,
// clipped at the output boundary for partial edge tiles.
func CompositeSubtiles(tiles []Subtile, tileWidth, tileHeight, originX, originY, extentWidth, extentHeight int) (*Raster, error) {
	if extentWidth <= 0 || extentHeight <= 0 {
		return nil, wsi.Invalidf("degenerate region extent %dx%d", extentWidth, extentHeight)
	}
	out := NewRaster(extentWidth, extentHeight)
	for _, tile := range tiles {
		dstX := tile.Cell.Col*tileWidth - originX
		dstY := tile.Cell.Row*tileHeight - originY
		compositeInto(out, tile.Image, tile.Color, tile.Min, tile.Max, 1, dstX, dstY)
	}
	out.Clip()
	return out, nil
}
