package render

import (
	"fmt"
	"math"
)

// Pyramid geometry for images downsampled 2x per level.  Level 0 is full
// resolution; level L has each dimension ceil(dim / 2^L).

// LevelDims returns the pixel dimensions of the image at the given level.
func LevelDims(fullWidth, fullHeight, level int) (int, int) {
	scale := 1 << level
	return (fullWidth + scale - 1) / scale, (fullHeight + scale - 1) / scale
}

// SelectLevel chooses the pyramid level whose longest side best serves a
// target output dimension.  With preferHigher false the coarser level meeting
// the target is chosen (fewer pixels to fetch); with preferHigher true the
// finer one.  An error is returned for degenerate inputs or a target larger
// than the full image, in which case callers default to level 0 rather than
// failing the whole request.
func SelectLevel(fullWidth, fullHeight, levelCount, targetMaxDim int, preferHigher bool) (int, error) {
	if fullWidth <= 0 || fullHeight <= 0 || levelCount < 1 {
		return 0, fmt.Errorf("degenerate pyramid %dx%d with %d levels", fullWidth, fullHeight, levelCount)
	}
	if targetMaxDim <= 0 {
		return 0, fmt.Errorf("target dimension %d is not positive", targetMaxDim)
	}
	longest := fullWidth
	if fullHeight > longest {
		longest = fullHeight
	}
	if targetMaxDim > longest {
		return 0, fmt.Errorf("target dimension %d exceeds full image extent %d", targetMaxDim, longest)
	}
	ratioLog := math.Log2(float64(longest) / float64(targetMaxDim))
	var level int
	if preferHigher {
		level = int(math.Floor(ratioLog))
	} else {
		level = int(math.Ceil(ratioLog))
	}
	if level < 0 {
		level = 0
	}
	if level > levelCount-1 {
		level = levelCount - 1
	}
	return level, nil
}

// LevelCount returns how many pyramid levels a 2x-downsampling build
// produces before the longest dimension fits in one tile.
func LevelCount(fullWidth, fullHeight, tileSize int) int {
	longest := fullWidth
	if fullHeight > longest {
		longest = fullHeight
	}
	levels := 1
	for longest > tileSize {
		longest = ceilDiv(longest, 2)
		levels++
	}
	return levels
}

// ToLevelOrigin scales a full-resolution origin coordinate down to the given
// level.  Origins round down so the transformed region never shifts past the
// requested one.
func ToLevelOrigin(coord, level int) int {
	return int(math.Floor(float64(coord) / float64(int(1)<<level)))
}

// ToLevelExtent scales a full-resolution extent down to the given level.
// Extents round up so the computed tile grid always fully covers the
// requested area, never under-covers it.
func ToLevelExtent(extent, level int) int {
	return int(math.Ceil(float64(extent) / float64(int(1)<<level)))
}

// GridCell addresses one tile in the level's tile grid.
type GridCell struct {
	Row int // y tile index
	Col int // x tile index
}

// SelectGrids returns the minimal rectangular set of grid cells whose union
// covers [origin, origin+extent) in both axes, in row-major order.  Cells may
// have negative indices when the region extends past the image origin;
// callers skip those.
func SelectGrids(tileWidth, tileHeight, originX, originY, extentWidth, extentHeight int) []GridCell {
	if extentWidth <= 0 || extentHeight <= 0 {
		return nil
	}
	row0 := floorDiv(originY, tileHeight)
	row1 := ceilDiv(originY+extentHeight, tileHeight)
	col0 := floorDiv(originX, tileWidth)
	col1 := ceilDiv(originX+extentWidth, tileWidth)

	cells := make([]GridCell, 0, (row1-row0)*(col1-col0))
	for row := row0; row < row1; row++ {
		for col := col0; col < col1; col++ {
			cells = append(cells, GridCell{Row: row, Col: col})
		}
	}
	return cells
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
