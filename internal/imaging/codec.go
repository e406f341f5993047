// ABOUTME: Image compression for message attachments
// ABOUTME: Re-encodes decodable images as JPEG, passing everything else through

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

// Codec compresses an attachment payload before persistence.
type Codec interface {
	Compress(data []byte) ([]byte, error)
}

// JPEGCodec re-encodes images as JPEG at a fixed quality. Payloads
// that do not decode as an image, or that the re-encode fails to
// shrink, pass through unchanged.
type JPEGCodec struct {
	Quality int
}

// NewJPEGCodec creates a codec at the default quality.
func NewJPEGCodec() *JPEGCodec {
	return &JPEGCodec{Quality: DefaultQuality}
}

// Compress implements Codec.
func (c *JPEGCodec) Compress(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Not a decodable image; store as-is
		return data, nil
	}

	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}
