// Package media validates uploaded post images and stores them.
//
// An upload goes through ImageProcessor.Prepare first (format and size
// checks, downscaling) and is then written to a Store under a fresh key.
// The key, relative to the media root, is what Post.Image holds.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/sakif/yatube/internal/apperror"
)

const (
	DefaultMaxSize      = 5 * 1024 * 1024 // 5MB
	DefaultMaxDimension = 1200
)

// Image is a validated upload ready for a Store.
type Image struct {
	Data        []byte
	Ext         string // "jpg", "png" or "gif"
	ContentType string
}

// ImageProcessor accepts jpeg, png and gif uploads up to MaxSize bytes and
// shrinks anything wider or taller than MaxDimension.
type ImageProcessor struct {
	MaxSize      int64
	MaxDimension int
}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{MaxSize: DefaultMaxSize, MaxDimension: DefaultMaxDimension}
}

var formats = map[string]struct {
	ext         string
	contentType string
	encoding    imaging.Format
}{
	"jpeg": {ext: "jpg", contentType: "image/jpeg", encoding: imaging.JPEG},
	"png":  {ext: "png", contentType: "image/png", encoding: imaging.PNG},
	"gif":  {ext: "gif", contentType: "image/gif", encoding: imaging.GIF},
}

// Validate checks size and format without decoding the pixels. Failures
// are field errors on "image" so the post form can show them.
func (p *ImageProcessor) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperror.ValidationFailed("image", "The submitted file is empty.")
	}
	if int64(len(data)) > p.MaxSize {
		return "", apperror.ValidationFailed("image",
			fmt.Sprintf("Image exceeds %dMB.", p.MaxSize/(1024*1024)))
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", apperror.ValidationFailed("image",
			"Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if _, ok := formats[format]; !ok {
		return "", apperror.ValidationFailed("image", fmt.Sprintf("Image format %s is not allowed.", format))
	}
	return format, nil
}

// Prepare validates data and downsizes it when needed. Images already within
// bounds are stored byte for byte, which keeps animated gifs animated.
func (p *ImageProcessor) Prepare(data []byte) (*Image, error) {
	format, err := p.Validate(data)
	if err != nil {
		return nil, err
	}
	f := formats[format]

	out := &Image{Data: data, Ext: f.ext, ContentType: f.contentType}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.ValidationFailed("image", "Upload a valid image.")
	}
	if cfg.Width <= p.MaxDimension && cfg.Height <= p.MaxDimension {
		return out, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperror.ValidationFailed("image", "Upload a valid image.")
	}
	resized := imaging.Fit(img, p.MaxDimension, p.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, f.encoding, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("media: encoding %s: %w", format, err)
	}
	out.Data = buf.Bytes()
	return out, nil
}
