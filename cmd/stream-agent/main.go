package main

import (
	"fmt"
	"os"

	"github.com/spice-space/stream-agent/internal/logger"
	"github.com/spice-space/stream-agent/internal/streamagent/supervisor"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.showHelp {
		os.Exit(2)
	}

	logger.Init()
	if cfg.debug {
		if err := logger.SetLevel("debug"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	sup := supervisor.New(supervisor.Config{
		DevicePath:         cfg.devicePath,
		PluginsDir:         cfg.pluginsDir,
		PluginOptions:      cfg.pluginOptions,
		FrameLogPath:       cfg.frameLogPath,
		FrameLogBinary:     cfg.logBinary,
		FrameLogCategories: frameLogCategories(cfg.logCategories),
		MetricsAddr:        cfg.metricsAddr,
	})

	if err := sup.Run(); err != nil {
		logger.Error("session exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("session exited cleanly")
}
