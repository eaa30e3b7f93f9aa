// Package main is a terminal sandbox for the dragstorm engine: a
// component palette on the left, a zone canvas on the right. Drag with
// the mouse, or press a palette number key to pick up a component and
// steer it with the arrow keys.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/dshills/dragstorm/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger, closeLog, err := newLogger(cfg, opts.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	sb, err := newSandbox(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer sb.Shutdown()

	// Reload log level on config file edits while the sandbox runs.
	if opts.ConfigPath != "" {
		watcher, werr := config.NewWatcher(opts.ConfigPath, func(next config.Config) {
			logger.SetLevel(config.ParseLevel(next.LogLevel))
		}, logger)
		if werr != nil {
			logger.Warn("config watcher unavailable", "error", werr)
		} else {
			defer watcher.Close()
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		sb.Interrupt()
	}()

	if err := sb.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger writes to the given file so the terminal stays owned by the
// screen. With no path, logging is discarded.
func newLogger(cfg config.Config, path string) (*log.Logger, func(), error) {
	if path == "" {
		logger := log.New(os.Stderr)
		logger.SetLevel(log.FatalLevel)
		return logger, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(f)
	logger.SetLevel(config.ParseLevel(cfg.LogLevel))
	logger.SetReportTimestamp(true)
	return logger, func() { f.Close() }, nil
}

type options struct {
	ConfigPath string
	LogPath    string
	LogLevel   string
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogPath, "log", "", "Write logs to file")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Dragstorm - drag-and-drop engine sandbox\n\n")
		fmt.Fprintf(os.Stderr, "Usage: dragstorm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  mouse drag        Pick a component from the palette, drop it on a zone\n")
		fmt.Fprintf(os.Stderr, "  1-9               Pick up a palette component with the keyboard\n")
		fmt.Fprintf(os.Stderr, "  arrows            Steer a keyboard-picked component\n")
		fmt.Fprintf(os.Stderr, "  enter             Drop at the current position\n")
		fmt.Fprintf(os.Stderr, "  esc               Cancel the drag\n")
		fmt.Fprintf(os.Stderr, "  q / ctrl+c        Quit\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("Dragstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts
}
