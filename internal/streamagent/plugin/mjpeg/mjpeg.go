// Package mjpeg implements the built-in capture plugin: it encodes frames
// from a FrameSource as baseline JPEG using the standard library's
// image/jpeg encoder, matching spec.md §4.4's requirement that at least one
// plugin always be registered regardless of what's discoverable on disk.
package mjpeg

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/streamagent/plugin"
)

// VideoCodec is the wire codec id this plugin produces (spec.md §6).
const VideoCodec uint8 = 1

const defaultRank = 10
const defaultQuality = 80

// FrameSource produces successive raw frames for the capture plugin to
// encode. A real pixel-grabbing backend (out of scope per spec.md §1) would
// implement this against the guest's display surface; testpattern.go
// supplies the only concrete implementation shipped here.
type FrameSource interface {
	// NextFrame blocks until a frame is available and returns its pixels
	// plus dimensions. It returns an error only on unrecoverable failure.
	NextFrame() (img FrameImage, err error)
	Close() error
}

// FrameImage is a minimal raw-frame representation decoupled from
// image.Image so FrameSource implementations don't need to build a full
// color model just to hand back pixels.
type FrameImage struct {
	Width  int
	Height int
	// RGBA is width*height*4 bytes, row-major, 8-bit RGBA per pixel.
	RGBA []byte
}

// Plugin is the built-in MJPEG capture provider.
type Plugin struct {
	source  FrameSource
	quality int
	rank    int
}

// New builds the MJPEG plugin over the given frame source.
func New(source FrameSource) *Plugin {
	return &Plugin{source: source, quality: defaultQuality, rank: defaultRank}
}

func (p *Plugin) Name() string          { return "mjpeg" }
func (p *Plugin) VideoCodecType() uint8 { return VideoCodec }
func (p *Plugin) Rank() int             { return p.rank }

// ApplyOption recognizes "mjpeg.quality" (1-100) and "mjpeg.rank" (any
// int). Anything else is reported as unrecognized so the registry can try
// it against other plugins without failing startup.
func (p *Plugin) ApplyOption(key, value string) error {
	switch key {
	case "mjpeg.quality":
		var q int
		if _, err := fmt.Sscanf(value, "%d", &q); err != nil || q < 1 || q > 100 {
			return ioerr.NewConfigError("mjpeg.quality", fmt.Errorf("invalid quality %q", value))
		}
		p.quality = q
		return nil
	case "mjpeg.rank":
		var r int
		if _, err := fmt.Sscanf(value, "%d", &r); err != nil {
			return ioerr.NewConfigError("mjpeg.rank", fmt.Errorf("invalid rank %q", value))
		}
		p.rank = r
		return nil
	default:
		return plugin.ErrUnknownOption
	}
}

// CreateCapture opens a capture session against the configured source. It
// never returns (nil, nil): the built-in plugin is always available once
// constructed with a source.
func (p *Plugin) CreateCapture() (plugin.FrameCapture, error) {
	return &capture{source: p.source, quality: p.quality, first: true}, nil
}

type capture struct {
	source  FrameSource
	quality int
	first   bool
}

// CaptureFrame pulls one raw frame and JPEG-encodes it. StreamStart is true
// exactly once, on the first frame of the capture session, per spec.md
// §4.5 step 2.
func (c *capture) CaptureFrame() (plugin.FrameInfo, error) {
	img, err := c.source.NextFrame()
	if err != nil {
		return plugin.FrameInfo{}, ioerr.NewCaptureError("capture_frame", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, &rgbaImage{img}, &jpeg.Options{Quality: c.quality}); err != nil {
		return plugin.FrameInfo{}, ioerr.NewCaptureError("jpeg_encode", err)
	}

	info := plugin.FrameInfo{
		Width:       uint32(img.Width),
		Height:      uint32(img.Height),
		Codec:       VideoCodec,
		Buffer:      buf.Bytes(),
		StreamStart: c.first,
	}
	c.first = false
	return info, nil
}

func (c *capture) Close() error { return c.source.Close() }
