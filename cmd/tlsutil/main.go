// Package main is the tlsutil command line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
	"github.com/vyrodovalexey/tlsutil/internal/config"
	"github.com/vyrodovalexey/tlsutil/internal/observability"
	"github.com/vyrodovalexey/tlsutil/internal/tracing"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// errUsage marks argument errors already reported by a flag set.
var errUsage = errors.New("usage error")

// cliFlags holds the global command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

// app is the state shared by every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	config *config.Config
	logger observability.Logger
	tracer *tracing.Tracer
	clock  clock.Clock
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "inspect", summary: "print identity fields of PEM certificates", run: runInspect},
	{name: "digest", summary: "print the SHA-256 digest of files or stdin", run: runDigest},
	{name: "hmac", summary: "print the HMAC-SHA256 of files or stdin", run: runHMAC},
	{name: "verify", summary: "verify a signature over files or stdin", run: runVerify},
	{name: "monitor", summary: "watch certificate expiration and serve metrics", run: runMonitor},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses the global flags, builds the shared state and dispatches to a
// subcommand. It returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if flags.showVersion {
		printVersion(stdout)
		return exitOK
	}

	if len(rest) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	cmd, ok := findCommand(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(stderr, "tlsutil: %v\n", err)
		return exitFailure
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "tlsutil: failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)
	observability.SetOtelLogger(logger)

	tracer, err := tracing.NewTracerFromConfig(ctx, &cfg.Tracing, nil)
	if err != nil {
		fmt.Fprintf(stderr, "tlsutil: failed to create tracer: %v\n", err)
		return exitFailure
	}
	tracer.Install()

	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		config: cfg,
		logger: logger,
		tracer: tracer,
		clock:  clock.NewSystem(),
	}
	defer a.shutdownTracer()

	return exitCode(cmd.run(ctx, a, rest[1:]), stderr)
}

// parseFlags parses the global flags. Environment variables provide the defaults.
func parseFlags(args []string, stderr io.Writer) (cliFlags, []string, error) {
	fs := flag.NewFlagSet("tlsutil", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }

	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault("TLSUTIL_CONFIG", ""),
		"Path to configuration file")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("TLSUTIL_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("TLSUTIL_LOG_FORMAT", ""),
		"Log format (json, console)")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return flags, nil, err
	}
	return flags, fs.Args(), nil
}

// loadConfig loads the configuration file, if any, and applies flag overrides.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if errors.Is(err, errUsage) {
		return exitUsage
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(stderr, "tlsutil: %v\n", exitErr.err)
		}
		return exitErr.code
	}

	fmt.Fprintf(stderr, "tlsutil: %v\n", err)
	return exitFailure
}

func (a *app) shutdownTracer() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "tlsutil version %s\n", version)
	fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: tlsutil [-config file] [-log-level level] [-log-format format] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
}

// newFlagSet creates a subcommand flag set writing to the app's stderr.
func (a *app) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "usage: tlsutil %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses subcommand flags, mapping flag errors to errUsage.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func (a *app) shutdownTimeout() time.Duration {
	if d := a.config.ShutdownTimeout.Duration(); d > 0 {
		return d
	}
	return config.DefaultShutdownTimeout
}
