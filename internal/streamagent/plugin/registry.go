package plugin

import (
	"errors"
	"sort"
	"sync"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/logger"
)

// ErrUnknownOption is returned by a Plugin's ApplyOption for a key it
// doesn't recognize. The registry treats this as non-fatal and moves on to
// the next plugin; any other error from ApplyOption is fatal.
var ErrUnknownOption = errors.New("plugin: unrecognized option")

// Registry holds registered plugins in registration order and implements
// the selection algorithm of spec.md §4.4.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds p. Registration order is preserved and used to break rank
// ties during selection.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// ApplyOptions sets every (key, value) pair in opts on every registered
// plugin that recognizes it. A recognized key with an invalid value
// (ConfigError) aborts immediately and is returned to the caller, who
// should treat it as fatal at startup.
func (r *Registry) ApplyOptions(opts map[string]string) error {
	r.mu.RLock()
	plugins := append([]Plugin(nil), r.plugins...)
	r.mu.RUnlock()

	for _, p := range plugins {
		for k, v := range opts {
			err := p.ApplyOption(k, v)
			if err == nil || errors.Is(err, ErrUnknownOption) {
				continue
			}
			return err
		}
	}
	return nil
}

// candidate pairs a plugin with its original registration index, so a
// stable sort can break rank ties by registration order.
type candidate struct {
	plugin Plugin
	index  int
}

// Select filters registered plugins to those accepting a codec in
// clientCodecs, orders them by descending rank (ties by registration
// order), and returns the capture from the first one whose CreateCapture
// succeeds. If every candidate's CreateCapture returns nil, Select fails
// with NoCaptureAvailable.
func (r *Registry) Select(clientCodecs []uint8) (FrameCapture, Plugin, error) {
	accepted := make(map[uint8]struct{}, len(clientCodecs))
	for _, c := range clientCodecs {
		accepted[c] = struct{}{}
	}

	r.mu.RLock()
	var candidates []candidate
	for i, p := range r.plugins {
		if _, ok := accepted[p.VideoCodecType()]; ok {
			candidates = append(candidates, candidate{plugin: p, index: i})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].plugin.Rank(), candidates[j].plugin.Rank()
		if ri != rj {
			return ri > rj
		}
		return candidates[i].index < candidates[j].index
	})

	for _, c := range candidates {
		cap, err := c.plugin.CreateCapture()
		if err != nil {
			return nil, nil, err
		}
		if cap == nil {
			logger.Warn("plugin declined capture", "plugin", c.plugin.Name())
			continue
		}
		return cap, c.plugin, nil
	}
	return nil, nil, ioerr.NewNoCaptureAvailable(clientCodecs)
}
