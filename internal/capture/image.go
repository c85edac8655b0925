package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	// still image formats
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageScreen serves a still image as the screen, scaled to the monitor
// size. Frames are paced at Interval so a render loop does not spin.
type ImageScreen struct {
	img      image.Image
	interval time.Duration

	mu     sync.Mutex
	width  int
	height int
	frame  []byte
	last   time.Time
}

// LoadImage decodes an image file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// NewImageScreen creates a screen showing img at width x height.
func NewImageScreen(img image.Image, width, height int, interval time.Duration) *ImageScreen {
	s := &ImageScreen{img: img, interval: interval}
	s.SetSize(width, height)
	return s
}

// SetSize rescales the image for a new monitor size.
func (s *ImageScreen) SetSize(width, height int) {
	frame := ImageToBGRA(s.img, width, height)
	s.mu.Lock()
	s.width, s.height, s.frame = width, height, frame
	s.mu.Unlock()
}

// CaptureFrame returns a copy of the scaled image.
func (s *ImageScreen) CaptureFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	wait := s.interval - time.Since(s.last)
	s.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = time.Now()
	return append([]byte(nil), s.frame...), nil
}
