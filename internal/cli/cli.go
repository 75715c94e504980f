package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Command selects what the binary does.
type Command string

const (
	// CommandServe runs the HTTP API.
	CommandServe Command = "serve"
	// CommandAnalyze analyzes one file and prints the outcome as JSON.
	CommandAnalyze Command = "analyze"
)

// ErrUsage is returned for an unknown command or missing required flag.
var ErrUsage = errors.New("usage: veritas [serve|analyze] [-config path] [-addr host:port] [-file path] [-log-level level]")

// CLIArgs are the parsed command-line arguments.
type CLIArgs struct {
	Command Command

	// ConfigPath is an optional config file read before the environment.
	ConfigPath string

	// ListenAddr overrides server.listen_addr when non-empty.
	ListenAddr string

	// File is the image analyzed by CommandAnalyze.
	File string

	// LogLevel overrides log.level when non-empty.
	LogLevel string

	// Compact prints single-line JSON for CommandAnalyze.
	Compact bool

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args and returns CLIArgs. The first argument
// may name a command; without one the server is started. The function is
// deterministic and does not read os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	cmd := CommandServe
	rest := args
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch Command(args[0]) {
		case CommandServe, CommandAnalyze:
			cmd = Command(args[0])
			rest = args[1:]
		default:
			return nil, fmt.Errorf("unknown command %q: %w", args[0], ErrUsage)
		}
	}

	fs := flag.NewFlagSet("veritas "+string(cmd), flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Path to a config file (yaml, json or toml)")
		addr       = fs.String("addr", "", "Listen address, overrides server.listen_addr")
		file       = fs.String("file", "", "Image to analyze (analyze only)")
		logLevel   = fs.String("log-level", "", "Log level: debug|info|warn|error")
		compact    = fs.Bool("compact", false, "Print single-line JSON (analyze only)")
	)

	// Keep Parse quiet in tests
	fs.SetOutput(io.Discard)

	if err := fs.Parse(rest); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments %v: %w", fs.Args(), ErrUsage)
	}

	if cmd == CommandAnalyze && strings.TrimSpace(*file) == "" {
		return nil, fmt.Errorf("missing required -file argument: %w", ErrUsage)
	}

	return &CLIArgs{
		Command:    cmd,
		ConfigPath: *configPath,
		ListenAddr: *addr,
		File:       *file,
		LogLevel:   *logLevel,
		Compact:    *compact,
		RawArgs:    args,
	}, nil
}
