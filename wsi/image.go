package wsi

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/webp"
)

// DefaultJPEGQuality is the quality of JPEG encoding if not specified.
const DefaultJPEGQuality = 85

// NegotiateImageFormat picks an encoding from an Accept header among the
// supported image formats.  JPEG is the default when the header is absent or
// only lists wildcards.  Error bodies are always JSON regardless of Accept.
func NegotiateImageFormat(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "image/png":
			return "png"
		case "image/webp":
			return "webp"
		case "image/jpeg":
			return "jpg"
		}
	}
	return "jpg"
}

// EncodeImage encodes img in the given format ("jpg", "png", or "webp") and
// returns the bytes with the corresponding Content-Type.  Pixel data reaches
// this encode boundary already scaled to 8-bit; encoders receive RGB ordering.
func EncodeImage(img image.Image, format string, quality int) ([]byte, string, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	switch format {
	case "", "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "webp":
		opts := webp.Options{Lossless: false, Quality: quality}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/webp", nil
	}
	return nil, "", fmt.Errorf("illegal image format requested: %s", format)
}

// WriteImageHTTP encodes img per the request's Accept header and writes it
// with appropriate Content-Type set.
func WriteImageHTTP(w http.ResponseWriter, r *http.Request, img image.Image) error {
	format := NegotiateImageFormat(r.Header.Get("Accept"))
	data, contentType, err := EncodeImage(img, format, DefaultJPEGQuality)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	_, err = w.Write(data)
	return err
}
