package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spice-space/stream-agent/internal/ioerr"
	"github.com/spice-space/stream-agent/internal/streamagent/framelog"
)

const defaultDevicePath = "/dev/virtio-ports/org.spice-space.stream.0"

// cliConfig holds the parsed command-line surface of spec.md §6, prior to
// translation into supervisor.Config.
type cliConfig struct {
	devicePath    string
	frameLogPath  string
	logBinary     bool
	logCategories []string
	pluginsDir    string
	debug         bool
	pluginOptions map[string]string
	showHelp      bool
	metricsAddr   string
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := pflag.NewFlagSet("stream-agent", pflag.ContinueOnError)

	cfg := &cliConfig{pluginOptions: map[string]string{}}
	var categories string
	var options []string

	fs.StringVarP(&cfg.devicePath, "device", "p", defaultDevicePath, "stream device path")
	fs.StringVarP(&cfg.frameLogPath, "log-file", "l", "", "diagnostic frame log output file")
	fs.BoolVar(&cfg.logBinary, "log-binary", false, "write binary frames into the diagnostic log")
	fs.StringVar(&categories, "log-categories", "", "colon-separated diagnostic log categories to enable")
	fs.StringVar(&cfg.pluginsDir, "plugins-dir", "", "plugin discovery directory")
	fs.BoolVarP(&cfg.debug, "debug", "d", false, "debug log verbosity")
	fs.StringArrayVarP(&options, "option", "c", nil, "plugin option as key=value (repeatable)")
	fs.BoolVarP(&cfg.showHelp, "help", "h", false, "print usage and exit")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return nil, ioerr.NewConfigError("parse_flags", err)
	}

	if cfg.showHelp {
		fmt.Println(fs.FlagUsages())
		return cfg, nil
	}

	if categories != "" {
		cfg.logCategories = strings.Split(categories, ":")
	}

	for _, opt := range options {
		k, v, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, ioerr.NewConfigError("parse_flags", fmt.Errorf("-c option %q missing '='", opt))
		}
		cfg.pluginOptions[k] = v
	}

	return cfg, nil
}

// frameLogCategories translates the CLI's colon-separated category list
// into framelog.Categories. Unknown names are ignored, per spec.md §6.
func frameLogCategories(names []string) framelog.Categories {
	var cats framelog.Categories
	for _, n := range names {
		switch n {
		case "frames":
			cats.Frames = true
		case "control":
			cats.Control = true
		case "cursor":
			cats.Cursor = true
		}
	}
	return cats
}
