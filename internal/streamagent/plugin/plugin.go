// Package plugin implements the capture-provider registry (spec.md §4.4):
// registration, per-session codec-ranked selection, and operator option
// propagation. Concrete capture backends (the built-in MJPEG plugin, or
// anything loaded from a plugins directory) implement the Plugin interface.
package plugin

// FrameInfo is one captured frame, ready for the wire codec.
type FrameInfo struct {
	Width       uint32
	Height      uint32
	Codec       uint8
	Buffer      []byte
	StreamStart bool // true if a Format message must precede this frame's Data
}

// FrameCapture is an open capture session produced by a Plugin. CaptureFrame
// may block; the capture loop enforces no timeout of its own (spec.md §4.5).
type FrameCapture interface {
	CaptureFrame() (FrameInfo, error)
	Close() error
}

// Plugin is a registered capture provider.
type Plugin interface {
	// Name identifies the plugin in logs and error messages.
	Name() string
	// VideoCodecType is the wire codec id (spec.md §6) this plugin produces.
	VideoCodecType() uint8
	// Rank breaks ties between plugins that all accept the same codec;
	// higher wins. Equal ranks are broken by registration order.
	Rank() int
	// ApplyOption sets an operator-supplied option. It returns
	// ErrUnknownOption for a key the plugin doesn't recognize (silently
	// ignored by the registry) and a ConfigError for a recognized key with
	// an invalid value (fatal at startup).
	ApplyOption(key, value string) error
	// CreateCapture opens a capture session, or returns nil (not an error)
	// if the provider can't currently serve one — the registry moves on to
	// the next-highest-ranked candidate in that case.
	CreateCapture() (FrameCapture, error)
}
