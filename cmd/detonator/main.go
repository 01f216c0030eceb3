// Package main is the entry point for the Detonator tool launcher.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/detonator/internal/app"
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
	opts, args := parseFlags()

	if len(args) == 0 {
		flag.Usage()
		return 2
	}

	// Create application
	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	// The first signal cancels the running tool; after stop() a second one
	// gets the default behaviour and ends detonator.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	code, err := dispatch(ctx, application, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, app.ErrUsage) {
			return 2
		}
		if code == 0 {
			code = 1
		}
	}
	return code
}

// dispatch runs the subcommand named by args[0].
func dispatch(ctx context.Context, application *app.Application, args []string) (int, error) {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "list":
		return 0, application.List()

	case "check":
		if len(rest) != 1 {
			return 2, fmt.Errorf("%w: check <tool>", app.ErrUsage)
		}
		return 0, application.Check(rest[0])

	case "run":
		fs := flag.NewFlagSet("run", flag.ContinueOnError)
		save := fs.String("save", "", "Save the output to `file` when the tool finishes")
		if err := fs.Parse(rest); err != nil {
			return 2, fmt.Errorf("%w: %v", app.ErrUsage, err)
		}
		if fs.NArg() == 0 {
			return 2, fmt.Errorf("%w: run [-save file] <tool> [args...]", app.ErrUsage)
		}
		return application.RunTool(ctx, fs.Arg(0), fs.Args()[1:], app.RunOptions{SavePath: *save})

	case "exec":
		fs := flag.NewFlagSet("exec", flag.ContinueOnError)
		elevated := fs.Bool("elevated", false, "Run through the authorization helper")
		save := fs.String("save", "", "Save the output to `file` when the program finishes")
		if err := fs.Parse(rest); err != nil {
			return 2, fmt.Errorf("%w: %v", app.ErrUsage, err)
		}
		if fs.NArg() == 0 {
			return 2, fmt.Errorf("%w: exec [-elevated] [-save file] <program> [args...]", app.ErrUsage)
		}
		return application.Exec(ctx, fs.Arg(0), fs.Args()[1:], *elevated, app.RunOptions{SavePath: *save})

	case "shell":
		return 0, application.NewShell().Run(ctx)

	default:
		return 2, fmt.Errorf("%w: unknown command %q", app.ErrUsage, cmd)
	}
}

func parseFlags() (app.Options, []string) {
	var opts app.Options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Detonator - security tool launcher\n\n")
		fmt.Fprintf(os.Stderr, "Usage: detonator [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                                  List known tools\n")
		fmt.Fprintf(os.Stderr, "  check <tool>                          Check a tool's dependencies\n")
		fmt.Fprintf(os.Stderr, "  run [-save file] <tool> [args...]     Run a tool\n")
		fmt.Fprintf(os.Stderr, "  exec [-elevated] [-save file] <program> [args...]\n")
		fmt.Fprintf(os.Stderr, "                                        Run any program\n")
		fmt.Fprintf(os.Stderr, "  shell                                 Interactive session\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  detonator list\n")
		fmt.Fprintf(os.Stderr, "  detonator run -save out.txt foremost -i disk.img -o recovered\n")
		fmt.Fprintf(os.Stderr, "  detonator exec -elevated airodump-ng wlan0mon\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Detonator %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts, flag.Args()
}
