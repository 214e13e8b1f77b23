package render

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wsiserve/wsiserve/wsi"
)

// TileSource fetches one raw single-channel tile.  Providers (object store,
// filesystem, caches) implement this contract; the assembler depends on
// nothing else.
type TileSource interface {
	GetTile(ctx context.Context, addr wsi.TileAddress) (*Image, error)
}

// DefaultFetchConcurrency bounds the per-request tile fetch pool.  Tile
// fetches are the I/O-dominant suspension points, so the pool is the main
// latency hider.
const DefaultFetchConcurrency = 6

// Assembler stitches same-level tiles into a raster covering an arbitrary
// rectangular region, then resamples to a requested output size.
type Assembler struct {
	Source      TileSource
	TileSize    int
	Concurrency int
}

// NewAssembler returns an assembler with default tile size and fetch pool.
func NewAssembler(source TileSource) *Assembler {
	return &Assembler{
		Source:      source,
		TileSize:    wsi.DefaultTileSize,
		Concurrency: DefaultFetchConcurrency,
	}
}

// RegionRequest describes one region render.  Coordinates and extents are in
// level-0 pixels; output dimensions of 0 mean "unset".
type RegionRequest struct {
	ImageID      string
	X, Y         int
	Width        int
	Height       int
	Z, T         int
	Channels     []*Channel
	OutputWidth  int
	OutputHeight int
	PreferHigherResolution bool

	// Pyramid metadata for the image.
	FullWidth  int
	FullHeight int
	LevelCount int
}

// RenderRegion renders the region to an encode-ready 8-bit image:
// pick the pyramid level, transform to level-local coordinates, fetch every
// required (grid cell, channel) tile in parallel, stitch, blend, and resample
// with nearest-neighbor interpolation to the output size.  Nearest-neighbor
// is chosen for speed over quality.
func (a *Assembler) RenderRegion(ctx context.Context, req RegionRequest) (image.Image, error) {
	if len(req.Channels) == 0 {
		return nil, wsi.Invalidf("no channels specified for region render")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, wsi.Invalidf("region extent %dx%d is not positive", req.Width, req.Height)
	}

	targetMax := req.OutputWidth
	if req.OutputHeight > targetMax {
		targetMax = req.OutputHeight
	}
	level := 0
	if targetMax > 0 {
		var err error
		level, err = SelectLevel(req.FullWidth, req.FullHeight, req.LevelCount, targetMax, req.PreferHigherResolution)
		if err != nil {
			level = 0
		}
	}

	originX := ToLevelOrigin(req.X, level)
	originY := ToLevelOrigin(req.Y, level)
	extentW := ToLevelExtent(req.Width, level)
	extentH := ToLevelExtent(req.Height, level)

	scaleX, scaleY := scaleFactors(extentW, extentH, req.OutputWidth, req.OutputHeight)

	// Build the full (channel x grid cell) fetch list.  Negative grid
	// indices lie outside the image and are skipped: no fetch, no
	// contribution.
	var tiles []Subtile
	var addrs []wsi.TileAddress
	for _, ch := range req.Channels {
		for _, cell := range SelectGrids(a.TileSize, a.TileSize, originX, originY, extentW, extentH) {
			if cell.Row < 0 || cell.Col < 0 {
				continue
			}
			tiles = append(tiles, Subtile{
				Cell:  cell,
				Color: ch.Color,
				Min:   ch.Min,
				Max:   ch.Max,
			})
			addrs = append(addrs, wsi.TileAddress{
				ImageID: req.ImageID,
				X:       cell.Col,
				Y:       cell.Row,
				Z:       req.Z,
				T:       req.T,
				Channel: ch.Index,
				Level:   level,
			})
		}
	}

	if err := a.fetchSubtiles(ctx, tiles, addrs); err != nil {
		return nil, err
	}

	composite, err := CompositeSubtiles(tiles, a.TileSize, a.TileSize, originX, originY, extentW, extentH)
	if err != nil {
		return nil, err
	}

	rgba := composite.RGBA()
	if scaleX == 1 && scaleY == 1 {
		return rgba, nil
	}
	outW := int(math.Ceil(float64(extentW) * scaleX))
	outH := int(math.Ceil(float64(extentH) * scaleY))
	return imaging.Resize(rgba, outW, outH, imaging.NearestNeighbor), nil
}

// fetchSubtiles attaches pixel data to every subtile, fanning fetches out
// over a bounded worker pool.  Errors raised inside the pool are captured and
// re-raised here; the group wait also guarantees no fetch goroutine outlives
// the request.
func (a *Assembler) fetchSubtiles(ctx context.Context, tiles []Subtile, addrs []wsi.TileAddress) error {
	concurrency := a.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	g, ctx := errgroup.WithContext(ctx)
	for i := range tiles {
		i := i
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			img, err := a.Source.GetTile(ctx, addrs[i])
			if err != nil {
				return err
			}
			tiles[i].Image = img
			return nil
		})
	}
	return g.Wait()
}

// scaleFactors computes resample factors: both outputs given gives two
// independent per-axis factors, one output gives a uniform factor from that
// axis, neither gives 1 (no resampling).
func scaleFactors(extentW, extentH, outputW, outputH int) (float64, float64) {
	switch {
	case outputW > 0 && outputH > 0:
		return float64(outputW) / float64(extentW), float64(outputH) / float64(extentH)
	case outputW > 0:
		f := float64(outputW) / float64(extentW)
		return f, f
	case outputH > 0:
		f := float64(outputH) / float64(extentH)
		return f, f
	default:
		return 1, 1
	}
}
