// Package cliapp holds what the qftbench and qasmbench commands share: flags,
// configuration, exit codes and the benchmark execution itself.
package cliapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aristath/synthbench/internal/config"
	"github.com/aristath/synthbench/internal/di"
	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/aristath/synthbench/internal/modules/target"
	"github.com/aristath/synthbench/pkg/logger"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1 // synthesis, scoring or persistence failed
	ExitUsage   = 2 // bad arguments or precision
)

// ErrUsage marks errors caused by the command line
var ErrUsage = errors.New("usage error")

type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func (e *usageError) Is(target error) bool {
	return target == ErrUsage
}

// UsageError reports a command-line mistake
func UsageError(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to its process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage), errors.Is(err, synthesis.ErrInvalidPrecision):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// FlagDefaults are the per-command defaults of the shared flags
type FlagDefaults struct {
	Timing bool
	Report bool
}

// Flags returns the flags every benchmark command accepts
func Flags(d FlagDefaults) []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "abandon synthesis after this long (0 = no limit)",
		},
		&cli.IntFlag{
			Name:  "repeat",
			Value: 1,
			Usage: "run the benchmark this many times and summarize the timings",
		},
		&cli.BoolFlag{
			Name:  "parallel",
			Usage: "run both synthesis branches concurrently (overrides SYNTHBENCH_PARALLEL)",
		},
		&cli.IntFlag{
			Name:  "ft_depth",
			Usage: "Clifford+T approximation depth (0 = SYNTHBENCH_FT_DEPTH)",
		},
		&cli.BoolFlag{
			Name:  "timing",
			Value: d.Timing,
			Usage: "print synthesis time per branch",
		},
		&cli.BoolFlag{
			Name:  "report",
			Value: d.Report,
			Usage: "print the gate sets and distances after the run",
		},
		&cli.BoolFlag{
			Name:  "table",
			Usage: "print a summary table",
		},
		&cli.StringFlag{
			Name:  "metrics_file",
			Usage: "write Prometheus metrics in text format to this file after the run",
		},
	}
}

// ParsePrecision parses the positional precision argument. Range checks are
// left to the runner so every entry point reports them the same way.
func ParsePrecision(arg string) (int, error) {
	p, err := strconv.Atoi(arg)
	if err != nil {
		return 0, UsageError("precision must be an integer, got %q", arg)
	}
	return p, nil
}

// LoadConfig loads the configuration for a command. Commands log at warn
// unless LOG_LEVEL says otherwise, so stdout stays the benchmark summary.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

// ProblemFunc builds the synthesis problem once the engine exists
type ProblemFunc func(container *di.Container) (*target.Problem, error)

// Job is one invocation of a benchmark command
type Job struct {
	Entry     string
	Precision int
	Problem   ProblemFunc
}

// Execute wires the harness from the environment and runs job with the
// options given on c.
func Execute(c *cli.Context, job Job) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.IsSet("parallel") {
		cfg.Parallel = c.Bool("parallel")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	logger.SetGlobalLogger(log)

	return Run(c.Context, cfg, job, RunOptions{
		Timeout:     c.Duration("timeout"),
		Repeat:      c.Int("repeat"),
		Depth:       c.Int("ft_depth"),
		Timing:      c.Bool("timing"),
		Table:       c.Bool("table"),
		Brief:       !c.Bool("report"),
		MetricsFile: c.String("metrics_file"),
		Stdout:      c.App.Writer,
	}, log)
}

// Main runs app and returns the process exit code. SIGINT and SIGTERM cancel
// the running synthesis.
func Main(app *cli.App, args []string) int {
	// Errors are reported here, not by the cli package
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.OnUsageError = func(_ *cli.Context, err error, _ bool) error {
		return UsageError("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.RunContext(ctx, reorderArgs(app.Flags, args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.Name, err)
	}
	return ExitCode(err)
}

var negativeNumber = regexp.MustCompile(`^-[0-9]+(\.[0-9]+)?$`)

// reorderArgs moves options ahead of the positional arguments and puts the
// positionals behind "--", so options may follow positionals and negative
// numbers are read as values rather than flags.
func reorderArgs(flags []cli.Flag, args []string) []string {
	if len(args) == 0 {
		return args
	}

	takesValue := make(map[string]bool)
	for _, f := range flags {
		_, isBool := f.(*cli.BoolFlag)
		for _, name := range f.Names() {
			takesValue[name] = !isBool
		}
	}

	var opts, positional []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		a := rest[i]
		switch {
		case a == "--":
			positional = append(positional, rest[i+1:]...)
			i = len(rest)
		case len(a) < 2 || a[0] != '-' || negativeNumber.MatchString(a):
			positional = append(positional, a)
		default:
			opts = append(opts, a)
			name := strings.TrimLeft(a, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if takesValue[name] && i+1 < len(rest) {
				i++
				opts = append(opts, rest[i])
			}
		}
	}

	out := append([]string{args[0]}, opts...)
	if len(positional) > 0 {
		out = append(out, "--")
		out = append(out, positional...)
	}
	return out
}

// writeMetrics dumps reg for the node exporter textfile collector
func writeMetrics(path string, reg *prometheus.Registry, log zerolog.Logger) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to write metrics file")
	}
}
