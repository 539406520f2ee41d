// Package session holds the single shared session-state record described in
// spec.md §3/§9: a supervisor-owned record passed by reference to the
// control reader and the capture loop. There is exactly one instance per
// process, because there is exactly one stream device per process.
package session

import "sync"

// State is the shared, mutated-in-place session record. streaming_requested
// and client_codecs are written only by the control reader and read only by
// the capture loop — both run on the same goroutine in this design, but the
// mutex is kept anyway because the cursor updater also reads QuitRequested
// concurrently and a single lock is simpler to reason about than mixing a
// mutex with a bare atomic.
type State struct {
	mu sync.Mutex

	streamingRequested bool
	clientCodecs       map[uint8]struct{}
	quitRequested      bool
}

// New returns a fresh State with streaming and quit both false.
func New() *State {
	return &State{clientCodecs: make(map[uint8]struct{})}
}

// ApplyStartStop is the only way streaming_requested and client_codecs
// change. It implements spec.md §3's StartStop side effects: client_codecs
// is cleared then repopulated from codecs (duplicates coalesced by the set),
// and streaming_requested becomes true iff codecs is non-empty.
func (s *State) ApplyStartStop(codecs []uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCodecs = make(map[uint8]struct{}, len(codecs))
	for _, c := range codecs {
		s.clientCodecs[c] = struct{}{}
	}
	s.streamingRequested = len(codecs) != 0
}

// StreamingRequested reports the current streaming_requested flag.
func (s *State) StreamingRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingRequested
}

// ClientCodecs returns a snapshot of the accepted codec set.
func (s *State) ClientCodecs() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint8, 0, len(s.clientCodecs))
	for c := range s.clientCodecs {
		out = append(out, c)
	}
	return out
}

// AcceptsCodec reports whether codec is in the current client-accepted set.
func (s *State) AcceptsCodec(codec uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clientCodecs[codec]
	return ok
}

// RequestQuit sets quit_requested. It is monotonic: once true, it is never
// reset. Safe to call from a signal handler.
func (s *State) RequestQuit() {
	s.mu.Lock()
	s.quitRequested = true
	s.mu.Unlock()
}

// QuitRequested reports the current quit_requested flag.
func (s *State) QuitRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quitRequested
}
