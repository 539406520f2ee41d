package mjpeg

import "sync"

// TestPattern is a deterministic synthetic FrameSource: a moving vertical
// color bar over a fixed-size canvas. It exists so the agent is a complete,
// runnable binary without a real display-capture backend, and so tests can
// exercise the capture/format/data pipeline without a guest windowing
// surface (spec.md §1 names frame-capture providers as out of scope).
type TestPattern struct {
	mu     sync.Mutex
	width  int
	height int
	frame  int
	closed bool
}

// NewTestPattern builds a generator for a width x height canvas.
func NewTestPattern(width, height int) *TestPattern {
	return &TestPattern{width: width, height: height}
}

// NextFrame never blocks and never fails; it always returns the next frame
// in the deterministic sequence.
func (t *TestPattern) NextFrame() (FrameImage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, t.width*t.height*4)
	barX := (t.frame * 4) % t.width
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			i := (y*t.width + x) * 4
			if x == barX {
				buf[i], buf[i+1], buf[i+2], buf[i+3] = 255, 255, 255, 255
				continue
			}
			buf[i] = uint8(x * 255 / maxInt(t.width-1, 1))
			buf[i+1] = uint8(y * 255 / maxInt(t.height-1, 1))
			buf[i+2] = uint8(t.frame % 256)
			buf[i+3] = 255
		}
	}
	t.frame++

	return FrameImage{Width: t.width, Height: t.height, RGBA: buf}, nil
}

// Close is a no-op; the generator holds no external resources.
func (t *TestPattern) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
