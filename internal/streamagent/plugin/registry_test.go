package plugin

import (
	"testing"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct{ name string }

func (f *fakeCapture) CaptureFrame() (FrameInfo, error) { return FrameInfo{}, nil }
func (f *fakeCapture) Close() error                     { return nil }

type fakePlugin struct {
	name           string
	codec          uint8
	rank           int
	declineCapture bool
	captureErr     error
	options        map[string]string
}

func (p *fakePlugin) Name() string          { return p.name }
func (p *fakePlugin) VideoCodecType() uint8 { return p.codec }
func (p *fakePlugin) Rank() int             { return p.rank }

func (p *fakePlugin) ApplyOption(key, value string) error {
	if p.options == nil {
		p.options = map[string]string{}
	}
	if key == "unknown" {
		return ErrUnknownOption
	}
	if key == "bad" {
		return ioerr.NewConfigError("apply_option", assertErr{"invalid value"})
	}
	p.options[key] = value
	return nil
}

func (p *fakePlugin) CreateCapture() (FrameCapture, error) {
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	if p.declineCapture {
		return nil, nil
	}
	return &fakeCapture{name: p.name}, nil
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestSelectFiltersByAcceptedCodec(t *testing.T) {
	r := NewRegistry()
	low := &fakePlugin{name: "low", codec: 1, rank: 1}
	other := &fakePlugin{name: "other", codec: 2, rank: 100}
	r.Register(low)
	r.Register(other)

	cap, p, err := r.Select([]uint8{1})
	require.NoError(t, err)
	assert.Equal(t, "low", p.Name())
	assert.NotNil(t, cap)
}

func TestSelectPrefersHighestRank(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{name: "a", codec: 1, rank: 1})
	r.Register(&fakePlugin{name: "b", codec: 1, rank: 5})
	r.Register(&fakePlugin{name: "c", codec: 1, rank: 3})

	_, p, err := r.Select([]uint8{1})
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name())
}

func TestSelectBreaksTiesByRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{name: "first", codec: 1, rank: 5})
	r.Register(&fakePlugin{name: "second", codec: 1, rank: 5})

	_, p, err := r.Select([]uint8{1})
	require.NoError(t, err)
	assert.Equal(t, "first", p.Name())
}

func TestSelectRetriesNextRankWhenCreateCaptureDeclines(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{name: "declines", codec: 1, rank: 10, declineCapture: true})
	r.Register(&fakePlugin{name: "works", codec: 1, rank: 5})

	_, p, err := r.Select([]uint8{1})
	require.NoError(t, err)
	assert.Equal(t, "works", p.Name())
}

func TestSelectFailsWithNoCaptureAvailable(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{name: "declines", codec: 1, rank: 10, declineCapture: true})

	_, _, err := r.Select([]uint8{1})
	require.Error(t, err)
	assert.True(t, ioerr.IsNoCaptureAvailable(err))
}

func TestApplyOptionsIgnoresUnknownPropagatesConfigError(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "p", codec: 1, rank: 1}
	r.Register(p)

	err := r.ApplyOptions(map[string]string{"unknown": "x"})
	require.NoError(t, err)

	err = r.ApplyOptions(map[string]string{"bad": "x"})
	require.Error(t, err)
	assert.True(t, ioerr.IsConfigError(err))
}
