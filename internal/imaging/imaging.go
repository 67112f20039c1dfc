// Package imaging normalises uploaded item photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// PhotoSize bounds the stored photo's longer side.
	PhotoSize = 1024
	// ThumbnailSize bounds the thumbnail's longer side.
	ThumbnailSize = 256
	// MaxUploadBytes caps the accepted upload.
	MaxUploadBytes = 10 << 20

	jpegQuality = 85
)

var (
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image too large")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is an item photo ready to store. Both renditions are JPEG.
type Photo struct {
	Image     []byte
	Thumbnail []byte
	MIME      string
}

// Prepare validates an upload by sniffing its bytes, flattens it onto a
// white background, and produces the stored photo and its thumbnail. Images
// are only ever scaled down.
func Prepare(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	if detected := http.DetectContentType(data); !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	photo, err := encode(fit(src, PhotoSize))
	if err != nil {
		return nil, err
	}
	thumb, err := encode(fit(src, ThumbnailSize))
	if err != nil {
		return nil, err
	}

	return &Photo{Image: photo, Thumbnail: thumb, MIME: "image/jpeg"}, nil
}

// fit returns src scaled to fit within a limit x limit box, preserving the
// aspect ratio, drawn over white.
func fit(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy(), limit)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func scaledSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
