// Package render implements the tile compositing and region-assembly engine:
// parsing channel rendering parameters, mapping viewport coordinates onto the
// tile pyramid, blending single-channel grayscale tiles into one color raster
// under per-channel intensity windows, and stitching tiled regions into an
// arbitrary output resolution.
package render

import (
	"image"
	"image/color"
)

// Image is a single-channel tile of raw unsigned samples.  Samples are held
// widened to uint16 regardless of the stored bit depth; BitDepth records the
// native depth so intensity normalization uses the right full-scale value.
type Image struct {
	Width    int
	Height   int
	BitDepth uint8
	Pix      []uint16 // row-major, len = Width*Height
}

// NewImage returns a zeroed single-channel image.
func NewImage(width, height int, bitDepth uint8) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		BitDepth: bitDepth,
		Pix:      make([]uint16, width*height),
	}
}

// MaxValue is the full-scale sample value for the image's native bit depth.
func (im *Image) MaxValue() float32 {
	return float32(uint32(1)<<im.BitDepth - 1)
}

// At returns the sample at (x, y) without bounds checking.
func (im *Image) At(x, y int) uint16 {
	return im.Pix[y*im.Width+x]
}

// FromGoImage converts a decoded tile into a single-channel Image.  Gray16
// keeps its native 16-bit depth; anything else is converted through the
// 8-bit gray model.
func FromGoImage(src image.Image) *Image {
	b := src.Bounds()
	switch img := src.(type) {
	case *image.Gray16:
		out := NewImage(b.Dx(), b.Dy(), 16)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				i := (y+b.Min.Y)*img.Stride + (x+b.Min.X)*2
				out.Pix[y*out.Width+x] = uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1])
			}
		}
		return out
	case *image.Gray:
		out := NewImage(b.Dx(), b.Dy(), 8)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				out.Pix[y*out.Width+x] = uint16(img.Pix[(y+b.Min.Y)*img.Stride+x+b.Min.X])
			}
		}
		return out
	default:
		out := NewImage(b.Dx(), b.Dy(), 8)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.GrayModel.Convert(src.At(x+b.Min.X, y+b.Min.Y)).(color.Gray)
				out.Pix[y*out.Width+x] = uint16(g.Y)
			}
		}
		return out
	}
}

// GoImage returns the raw samples as a grayscale image at native bit depth,
// used by the raw-tile endpoint.
func (im *Image) GoImage() image.Image {
	if im.BitDepth > 8 {
		out := image.NewGray16(image.Rect(0, 0, im.Width, im.Height))
		for i, s := range im.Pix {
			out.Pix[i*2] = uint8(s >> 8)
			out.Pix[i*2+1] = uint8(s)
		}
		return out
	}
	out := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	for i, s := range im.Pix {
		out.Pix[i] = uint8(s)
	}
	return out
}

// Raster is a 3-channel float32 image with per-channel values in [0, 1],
// RGB ordering.  It stays in floating point until the encode boundary so
// composites remain composable during region assembly.
type Raster struct {
	Width  int
	Height int
	Pix    []float32 // row-major, 3 floats per pixel, len = 3*Width*Height
}

// NewRaster returns a zeroed color raster.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]float32, 3*width*height),
	}
}

// Clip bounds every component to [0, 1].  Accumulated colors may combine
// beyond range; clipping, not normalization, is the policy, so two
// full-intensity channels of complementary color saturate rather than rescale.
func (r *Raster) Clip() {
	for i, v := range r.Pix {
		if v > 1 {
			r.Pix[i] = 1
		} else if v < 0 {
			r.Pix[i] = 0
		}
	}
}

// RGBA scales the raster by 255 into an 8-bit RGBA image.  This is the only
// place float composites become integer pixels.
func (r *Raster) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for p := 0; p < r.Width*r.Height; p++ {
		for c := 0; c < 3; c++ {
			v := r.Pix[p*3+c]
			if v > 1 {
				v = 1
			} else if v < 0 {
				v = 0
			}
			out.Pix[p*4+c] = uint8(v*255 + 0.5)
		}
		out.Pix[p*4+3] = 0xff
	}
	return out
}
