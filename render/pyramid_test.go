package render

import (
	"testing"
)

func TestLevelDims(t *testing.T) {
	tests := []struct {
		w, h, level  int
		wantW, wantH int
	}{
		{4096, 4096, 0, 4096, 4096},
		{4096, 4096, 1, 2048, 2048},
		{4097, 4095, 1, 2049, 2048},
		{3000, 2000, 2, 750, 500},
		{1, 1, 3, 1, 1},
		{1025, 1025, 1, 513, 513},
	}
	for _, tc := range tests {
		gotW, gotH := LevelDims(tc.w, tc.h, tc.level)
		if gotW != tc.wantW || gotH != tc.wantH {
			t.Errorf("LevelDims(%d, %d, %d) = %d, %d; want %d, %d",
				tc.w, tc.h, tc.level, gotW, gotH, tc.wantW, tc.wantH)
		}
	}
}

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		name         string
		w, h, levels int
		target       int
		preferHigher bool
		want         int
	}{
		{"exact power of two", 4096, 4096, 4, 1024, false, 2},
		{"exact power of two prefer higher", 4096, 4096, 4, 1024, true, 2},
		{"non-power ratio rounds coarser", 3000, 3000, 4, 1024, false, 2},
		{"non-power ratio prefers finer", 3000, 3000, 4, 1024, true, 1},
		{"target equals longest", 4096, 4096, 4, 4096, false, 0},
		{"clamped to top level", 65536, 65536, 3, 64, false, 2},
		{"longest side governs", 4096, 512, 4, 1024, false, 2},
	}
	for _, tc := range tests {
		got, err := SelectLevel(tc.w, tc.h, tc.levels, tc.target, tc.preferHigher)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: SelectLevel = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestSelectLevelErrors(t *testing.T) {
	if _, err := SelectLevel(0, 4096, 4, 1024, false); err == nil {
		t.Errorf("expected error for zero width")
	}
	if _, err := SelectLevel(4096, 4096, 0, 1024, false); err == nil {
		t.Errorf("expected error for zero level count")
	}
	if _, err := SelectLevel(4096, 4096, 4, 0, false); err == nil {
		t.Errorf("expected error for non-positive target")
	}
	if _, err := SelectLevel(4096, 4096, 4, 8192, false); err == nil {
		t.Errorf("expected error for target larger than image")
	}
}

func TestLevelCount(t *testing.T) {
	tests := []struct {
		w, h, tile int
		want       int
	}{
		{1024, 1024, 1024, 1},
		{1025, 1024, 1024, 2},
		{4096, 4096, 1024, 3},
		{100000, 80000, 1024, 8},
	}
	for _, tc := range tests {
		if got := LevelCount(tc.w, tc.h, tc.tile); got != tc.want {
			t.Errorf("LevelCount(%d, %d, %d) = %d, want %d", tc.w, tc.h, tc.tile, got, tc.want)
		}
	}
}

func TestLevelCoordinateRounding(t *testing.T) {
	// Origins round down, extents round up, so the transformed region always
	// covers the requested one.
	if got := ToLevelOrigin(1025, 1); got != 512 {
		t.Errorf("ToLevelOrigin(1025, 1) = %d, want 512", got)
	}
	if got := ToLevelExtent(1025, 1); got != 513 {
		t.Errorf("ToLevelExtent(1025, 1) = %d, want 513", got)
	}
	if got := ToLevelOrigin(0, 5); got != 0 {
		t.Errorf("ToLevelOrigin(0, 5) = %d, want 0", got)
	}
}

func TestSelectGrids(t *testing.T) {
	// A 2048x2048 region at origin (512, 512) with 1024 tiles touches a 2x2
	// block offset by one partial tile: columns 0-2, rows 0-2.
	cells := SelectGrids(1024, 1024, 512, 512, 2048, 2048)
	if len(cells) != 9 {
		t.Fatalf("expected 9 grid cells, got %d: %v", len(cells), cells)
	}
	// Row-major ordering.
	want := []GridCell{
		{0, 0}, {0, 1}, {0, 2},
		{1, 0}, {1, 1}, {1, 2},
		{2, 0}, {2, 1}, {2, 2},
	}
	for i, cell := range cells {
		if cell != want[i] {
			t.Errorf("cell %d = %v, want %v", i, cell, want[i])
		}
	}
}

func TestSelectGridsSingleTile(t *testing.T) {
	cells := SelectGrids(1024, 1024, 0, 0, 1024, 1024)
	if len(cells) != 1 || cells[0] != (GridCell{0, 0}) {
		t.Errorf("expected single cell {0 0}, got %v", cells)
	}
}

func TestSelectGridsNegativeOrigin(t *testing.T) {
	// A region reaching past the image origin yields negative indices, which
	// callers skip without fetching.
	cells := SelectGrids(1024, 1024, -512, -512, 1024, 1024)
	if len(cells) != 4 {
		t.Fatalf("expected 4 grid cells, got %d: %v", len(cells), cells)
	}
	sawNegative := false
	for _, cell := range cells {
		if cell.Row < 0 || cell.Col < 0 {
			sawNegative = true
		}
	}
	if !sawNegative {
		t.Errorf("expected negative grid indices in %v", cells)
	}
	if cells[len(cells)-1] != (GridCell{0, 0}) {
		t.Errorf("expected {0 0} as last cell, got %v", cells[len(cells)-1])
	}
}

func TestSelectGridsEmptyExtent(t *testing.T) {
	if cells := SelectGrids(1024, 1024, 0, 0, 0, 100); len(cells) != 0 {
		t.Errorf("expected no cells for zero extent, got %v", cells)
	}
}
