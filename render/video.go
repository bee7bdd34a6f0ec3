package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/icza/mjpeg"
)

// VideoWriter appends frames to an MJPEG AVI file.
type VideoWriter struct {
	aw      mjpeg.AviWriter
	buf     bytes.Buffer
	options jpeg.Options
	frames  int
}

// NewVideoWriter creates an AVI at path. fps and quality fall back to 24
// and 90 when not positive.
func NewVideoWriter(path string, width, height, fps, quality int) (*VideoWriter, error) {
	if fps <= 0 {
		fps = 24
	}
	if quality <= 0 {
		quality = 90
	}
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, fmt.Errorf("creating video %s: %w", path, err)
	}
	return &VideoWriter{aw: aw, options: jpeg.Options{Quality: quality}}, nil
}

// Add encodes img as JPEG and appends it.
func (v *VideoWriter) Add(img image.Image) error {
	v.buf.Reset()
	if err := jpeg.Encode(&v.buf, img, &v.options); err != nil {
		return fmt.Errorf("encoding video frame: %w", err)
	}
	if err := v.aw.AddFrame(v.buf.Bytes()); err != nil {
		return fmt.Errorf("adding video frame: %w", err)
	}
	v.frames++
	return nil
}

// Frames returns the number of frames added.
func (v *VideoWriter) Frames() int {
	return v.frames
}

// Close finalises the AVI index.
func (v *VideoWriter) Close() error {
	if err := v.aw.Close(); err != nil {
		return fmt.Errorf("closing video: %w", err)
	}
	return nil
}
