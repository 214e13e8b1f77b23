package wsi

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestNegotiateImageFormat(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", "jpg"},
		{"*/*", "jpg"},
		{"image/jpeg", "jpg"},
		{"image/png", "png"},
		{"image/webp", "webp"},
		{"text/html, image/png;q=0.9, */*", "png"},
		{"application/json", "jpg"},
	}
	for _, tc := range tests {
		if got := NegotiateImageFormat(tc.accept); got != tc.want {
			t.Errorf("NegotiateImageFormat(%q) = %q, want %q", tc.accept, got, tc.want)
		}
	}
}

func TestEncodeImagePNGRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 200
		img.Pix[i+3] = 255
	}
	data, contentType, err := EncodeImage(img, "png", 0)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if contentType != "image/png" {
		t.Errorf("content type = %q, want image/png", contentType)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 4 {
		t.Errorf("decoded width = %d, want 4", decoded.Bounds().Dx())
	}
}

func TestEncodeImageBadFormat(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if _, _, err := EncodeImage(img, "gif", 0); err == nil {
		t.Errorf("expected error for unsupported format")
	}
}
