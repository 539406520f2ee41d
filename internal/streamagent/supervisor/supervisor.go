// Package supervisor implements the session supervisor (spec.md §4.7): the
// top-level lifecycle that wires together every other component and runs
// the session from startup through signal-driven teardown.
package supervisor

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spice-space/stream-agent/internal/logger"
	"github.com/spice-space/stream-agent/internal/streamagent/capture"
	"github.com/spice-space/stream-agent/internal/streamagent/control"
	"github.com/spice-space/stream-agent/internal/streamagent/cursor"
	"github.com/spice-space/stream-agent/internal/streamagent/framelog"
	"github.com/spice-space/stream-agent/internal/streamagent/metrics"
	"github.com/spice-space/stream-agent/internal/streamagent/plugin"
	"github.com/spice-space/stream-agent/internal/streamagent/plugin/mjpeg"
	"github.com/spice-space/stream-agent/internal/streamagent/port"
	"github.com/spice-space/stream-agent/internal/streamagent/session"
)

// Config collects every operator-facing knob from the CLI surface
// (spec.md §6).
type Config struct {
	DevicePath string
	UseSerial  bool // open DevicePath as a tty via tarm/serial instead of a plain character file
	SerialBaud int

	PluginsDir    string
	PluginOptions map[string]string

	FrameLogPath       string
	FrameLogBinary     bool
	FrameLogCategories framelog.Categories

	// FrameWidth/FrameHeight size the built-in MJPEG plugin's synthetic
	// test-pattern source, since a real capture backend is out of scope.
	FrameWidth  int
	FrameHeight int

	// MetricsRegisterer also serves as the Gatherer behind MetricsAddr, so
	// a test harness that supplies its own registry can scrape exactly the
	// collectors it registered.
	MetricsRegisterer *prometheus.Registry
	// MetricsAddr, if non-empty, serves the registry above at /metrics on
	// this address for the life of the session (--metrics-addr).
	MetricsAddr string
}

func (c *Config) applyDefaults() {
	if c.FrameWidth == 0 {
		c.FrameWidth = 1920
	}
	if c.FrameHeight == 0 {
		c.FrameHeight = 1080
	}
	if c.MetricsRegisterer == nil {
		c.MetricsRegisterer = prometheus.NewRegistry()
	}
}

// Supervisor owns every other component's lifetime for one session.
type Supervisor struct {
	cfg Config

	state    *session.State
	registry *plugin.Registry
	metrics  *metrics.Registry
	log      *framelog.Log
	loader   *plugin.DirectoryLoader

	port          *port.StreamPort
	metricsServer *http.Server
}

// New builds an unstarted Supervisor.
func New(cfg Config) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		cfg:      cfg,
		state:    session.New(),
		registry: plugin.NewRegistry(),
		metrics:  metrics.NewRegistry(cfg.MetricsRegisterer),
	}
}

// Run executes the full session lifecycle: signal handler installation,
// plugin registration and discovery, FrameLog construction, StreamPort
// open, cursor updater launch, capture loop run to completion, and
// teardown. It returns a non-nil error only on a fatal condition per
// spec.md §4.7 step 7; the caller should log it and exit non-zero.
func (s *Supervisor) Run() error {
	stopSignals := s.installSignalHandler()
	defer stopSignals()

	s.registry.Register(mjpeg.New(mjpeg.NewTestPattern(s.cfg.FrameWidth, s.cfg.FrameHeight)))
	if err := s.registry.ApplyOptions(s.cfg.PluginOptions); err != nil {
		return err
	}
	if s.cfg.PluginsDir != "" {
		if err := s.loadPlugins(); err != nil {
			return err
		}
	}

	if s.cfg.FrameLogPath != "" {
		l, err := framelog.Open(s.cfg.FrameLogPath, s.cfg.FrameLogBinary, s.cfg.FrameLogCategories)
		if err != nil {
			return err
		}
		s.log = l
	}

	if s.cfg.MetricsAddr != "" {
		s.startMetricsServer()
	}

	dev, err := s.openDevice()
	if err != nil {
		return err
	}
	s.port = port.New(dev)

	reader := control.NewReader(s.port, s.state, s.metrics, s.log)
	loop := capture.NewLoop(s.port, reader, s.state, s.registry, s.metrics, s.log)

	var cursorWG sync.WaitGroup
	cursorWG.Add(1)
	go func() {
		defer cursorWG.Done()
		updater := cursor.New(s.port, s.state, &noCursorSource{state: s.state}, s.log)
		if err := updater.Run(); err != nil {
			logger.Error("cursor updater exited", "error", err)
		}
	}()

	runErr := loop.Run()

	s.state.RequestQuit()
	cursorWG.Wait()

	var result *multierror.Error
	if runErr != nil {
		result = multierror.Append(result, runErr)
	}
	if err := s.teardown(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *Supervisor) installSignalHandler() func() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		s.state.RequestQuit()
	}()
	return stop
}

func (s *Supervisor) loadPlugins() error {
	entries, err := os.ReadDir(s.cfg.PluginsDir)
	if err != nil {
		return err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(s.cfg.PluginsDir, e.Name()))
	}
	s.loader = plugin.NewDirectoryLoader(s.cfg.PluginsDir, s.registry)
	s.loader.LoadExisting(paths)
	go func() {
		if err := s.loader.Watch(); err != nil {
			logger.Warn("plugin directory watch stopped", "error", err)
		}
	}()
	return nil
}

// startMetricsServer serves the configured registry's collectors at
// /metrics on cfg.MetricsAddr for the life of the session. Listen failures
// are logged, not fatal: a scrape endpoint is diagnostic, not required for
// the protocol engine to run.
func (s *Supervisor) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.MetricsRegisterer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
	s.metricsServer = srv

	ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
	if err != nil {
		logger.Error("metrics listener failed", "addr", s.cfg.MetricsAddr, "error", err)
		s.metricsServer = nil
		return
	}
	logger.Info("serving metrics", "addr", s.cfg.MetricsAddr)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", "error", err)
		}
	}()
}

func (s *Supervisor) openDevice() (port.Device, error) {
	if s.cfg.UseSerial {
		return port.OpenSerialDevice(s.cfg.DevicePath, s.cfg.SerialBaud)
	}
	return port.OpenFileDevice(s.cfg.DevicePath)
}

func (s *Supervisor) teardown() error {
	var result *multierror.Error
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.loader != nil {
		if err := s.loader.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// noCursorSourcePollInterval bounds how often the default cursor source
// rechecks quit_requested while waiting for an event that will never come.
const noCursorSourcePollInterval = 200 * time.Millisecond

// noCursorSource is the default cursor.Source when no windowing-surface
// collaborator is wired in: it blocks until quit_requested, producing no
// events. A real guest integration supplies its own Source.
type noCursorSource struct {
	state *session.State
}

func (n *noCursorSource) NextChange() ([]byte, error) {
	for !n.state.QuitRequested() {
		time.Sleep(noCursorSourcePollInterval)
	}
	return nil, cursor.ErrSourceQuit
}

func (n *noCursorSource) Close() error { return nil }
