package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	thumbnailSize    = 256
	thumbnailQuality = 85
)

// MakeThumbnail resizes the original to fit 256x256 preserving aspect
// ratio, flattens any alpha channel onto white and re-encodes as JPEG at a
// fixed quality.
func MakeThumbnail(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	fitted := imaging.Fit(src, thumbnailSize, thumbnailSize, imaging.Lanczos)

	flattened := imaging.New(fitted.Bounds().Dx(), fitted.Bounds().Dy(), color.White)
	flattened = imaging.Overlay(flattened, fitted, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flattened, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
