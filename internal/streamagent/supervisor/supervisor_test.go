package supervisor

import (
	"testing"
	"time"

	"github.com/spice-space/stream-agent/internal/streamagent/cursor"
	"github.com/spice-space/stream-agent/internal/streamagent/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsFrameDimensionsAndRegisterer(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, 1920, cfg.FrameWidth)
	assert.Equal(t, 1080, cfg.FrameHeight)
	assert.NotNil(t, cfg.MetricsRegisterer)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{FrameWidth: 640, FrameHeight: 480}
	cfg.applyDefaults()
	assert.Equal(t, 640, cfg.FrameWidth)
	assert.Equal(t, 480, cfg.FrameHeight)
}

func TestNoCursorSourceReturnsSourceQuitOnceQuitRequested(t *testing.T) {
	st := session.New()
	src := &noCursorSource{state: st}

	done := make(chan error, 1)
	go func() {
		_, err := src.NextChange()
		done <- err
	}()

	time.Sleep(2 * noCursorSourcePollInterval)
	st.RequestQuit()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, cursor.ErrSourceQuit)
	case <-time.After(time.Second):
		t.Fatal("NextChange did not observe quit_requested in time")
	}
}
