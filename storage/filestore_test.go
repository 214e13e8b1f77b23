package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/wsi"
)

// writeTestTile writes a 16-bit TIFF tile into the store layout.
func writeTestTile(t *testing.T, root string, addr wsi.TileAddress, value uint16, size int) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 2 {
		img.Pix[i] = uint8(value >> 8)
		img.Pix[i+1] = uint8(value)
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatalf("unable to encode test tile: %v", err)
	}
	path := filepath.Join(root, filepath.FromSlash(addr.StorageKey("tif")))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("unable to create tile directory: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("unable to write test tile: %v", err)
	}
}

func TestFileTileSource(t *testing.T) {
	root := t.TempDir()
	addr := wsi.TileAddress{ImageID: "img-1", X: 1, Y: 2, Z: 0, T: 0, Channel: 3, Level: 1}
	writeTestTile(t, root, addr, 12345, 16)

	source := NewFileTileSource(root, "", nil, nil)
	im, err := source.GetTile(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if im.Width != 16 || im.Height != 16 {
		t.Errorf("tile dims = %dx%d, want 16x16", im.Width, im.Height)
	}
	if im.BitDepth != 16 {
		t.Errorf("bit depth = %d, want 16", im.BitDepth)
	}
	if im.At(0, 0) != 12345 {
		t.Errorf("sample = %d, want 12345", im.At(0, 0))
	}
}

func TestFileTileSourceConfiguredExtension(t *testing.T) {
	root := t.TempDir()
	addr := wsi.TileAddress{ImageID: "img-1", X: 0, Y: 0, Channel: 0, Level: 0}

	img := image.NewGray16(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 2 {
		img.Pix[i] = uint8(4242 >> 8)
		img.Pix[i+1] = uint8(4242 & 0xff)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("unable to encode png tile: %v", err)
	}
	path := filepath.Join(root, filepath.FromSlash(addr.StorageKey("png")))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("unable to create tile directory: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("unable to write png tile: %v", err)
	}

	// The source must look tiles up under its configured extension, not the
	// default.
	source := NewFileTileSource(root, "png", nil, nil)
	im, err := source.GetTile(context.Background(), addr)
	if err != nil {
		t.Fatalf("fetch with png extension failed: %v", err)
	}
	if im.At(0, 0) != 4242 {
		t.Errorf("sample = %d, want 4242", im.At(0, 0))
	}
}

func TestFileTileSourceMissing(t *testing.T) {
	source := NewFileTileSource(t.TempDir(), "", nil, nil)
	addr := wsi.TileAddress{ImageID: "img-1", X: 9, Y: 9, Channel: 0, Level: 0}
	_, err := source.GetTile(context.Background(), addr)
	var bounds wsi.TileBoundsError
	if !errors.As(err, &bounds) {
		t.Fatalf("error = %v, want tile bounds error", err)
	}
}

func TestFileTileSourceBlankPolicy(t *testing.T) {
	source := NewFileTileSource(t.TempDir(), "", nil, BlankTileHandler{TileSize: 8, BitDepth: 16})
	addr := wsi.TileAddress{ImageID: "img-1", X: 0, Y: 0, Channel: 0, Level: 0}
	im, err := source.GetTile(context.Background(), addr)
	if err != nil {
		t.Fatalf("blank policy returned error: %v", err)
	}
	if im.Width != 8 || im.Height != 8 {
		t.Errorf("blank tile dims = %dx%d, want 8x8", im.Width, im.Height)
	}
	for _, s := range im.Pix {
		if s != 0 {
			t.Fatalf("blank tile has nonzero sample")
		}
	}
}

func TestFileTileSourceCacheReadThrough(t *testing.T) {
	root := t.TempDir()
	addr := wsi.TileAddress{ImageID: "img-1", X: 0, Y: 0, Channel: 0, Level: 0}
	writeTestTile(t, root, addr, 777, 8)

	cache := NewTileCache(1 << 20)
	source := NewFileTileSource(root, "", cache, nil)
	if _, err := source.GetTile(context.Background(), addr); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	// Remove the backing file: the cached bytes must now serve the tile.
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(addr.StorageKey("tif")))); err != nil {
		t.Fatalf("unable to remove tile file: %v", err)
	}
	im, err := source.GetTile(context.Background(), addr)
	if err != nil {
		t.Fatalf("cached fetch failed: %v", err)
	}
	if im.At(0, 0) != 777 {
		t.Errorf("cached sample = %d, want 777", im.At(0, 0))
	}
	hits, _, puts, _ := cache.Stats()
	if hits != 1 || puts != 1 {
		t.Errorf("cache stats hits=%d puts=%d, want 1 and 1", hits, puts)
	}
}

func TestDecodeTileUnknownFormat(t *testing.T) {
	if _, err := DecodeTile([]byte("not an image"), "tif"); err == nil {
		t.Errorf("expected decode error for garbage TIFF")
	}
	if _, err := DecodeTile([]byte("not an image"), "png"); err == nil {
		t.Errorf("expected decode error for garbage PNG")
	}
}

func TestBoundsErrorHandlerMessage(t *testing.T) {
	addr := wsi.TileAddress{ImageID: "img-1", X: 5, Y: 2, Channel: 1, Level: 0}
	_, err := BoundsErrorHandler{}.HandleMissingTile(addr)
	if err == nil {
		t.Fatalf("expected error from bounds handler")
	}
	var bounds wsi.TileBoundsError
	if !errors.As(err, &bounds) {
		t.Fatalf("error = %T, want TileBoundsError", err)
	}
}

var _ render.TileSource = (*FileTileSource)(nil)
var _ render.TileSource = (*BucketTileSource)(nil)
