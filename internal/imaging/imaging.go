// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging sniffs uploaded images and renders JPEG thumbnails.
// Decoding is pure Go: jpeg, png and gif from the standard library and
// webp from golang.org/x/image.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	// ThumbMaxWidth is the widest a thumbnail gets.
	ThumbMaxWidth = 400

	thumbQuality = 80

	// maxImagePixels caps decoded size; 10000x10000 RGBA is ~400 MB.
	maxImagePixels = 100_000_000
)

// ErrTooManyPixels is returned for images whose dimensions exceed the
// decode budget.
var ErrTooManyPixels = errors.New("imaging: image dimensions too large")

// extensions maps the accepted content types to file extensions.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// thumbable types get a thumbnail. GIF is skipped to keep animation.
var thumbable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Detect sniffs the content type of data. ok is false for anything that
// is not jpeg, png, gif or webp.
func Detect(data []byte) (contentType, ext string, ok bool) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	contentType = http.DetectContentType(head)
	ext, ok = extensions[contentType]
	return contentType, ext, ok
}

// Thumbnailable reports whether Thumbnail supports contentType.
func Thumbnailable(contentType string) bool {
	return thumbable[contentType]
}

// Thumbnail scales the image down to at most maxWidth pixels wide,
// preserving aspect ratio, and encodes it as JPEG. Narrower images are
// re-encoded at their own size. Transparent areas become white.
func Thumbnail(data []byte, maxWidth int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > maxWidth {
		height = max(1, height*maxWidth/width)
		width = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
