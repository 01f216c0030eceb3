// Package app provides the main application structure and coordination
// for Detonator. It wires configuration, logging, the tool catalogue and
// the execution engine together and implements the user-facing commands.
package app

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/config"
	"github.com/dshills/detonator/internal/integration/availability"
	"github.com/dshills/detonator/internal/integration/catalogue"
	"github.com/dshills/detonator/internal/integration/engine"
	"github.com/dshills/detonator/internal/integration/process"
)

// Application is the central coordinator for all Detonator components.
type Application struct {
	config    *config.Config
	logger    *zap.Logger
	engine    *engine.Engine
	catalogue *catalogue.Catalogue
	checker   *availability.Checker

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	shutdownOnce sync.Once
	shutdownErr  error

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// Config replaces loading from ConfigPath when set.
	Config *config.Config

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Logger replaces the logger built from the configuration.
	Logger *zap.Logger

	// Registry replaces process.DefaultRegistry.
	Registry *process.Registry

	// LookPath replaces exec.LookPath for dependency checks.
	LookPath availability.LookPathFunc
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:   opts,
		stdin:  opts.Stdin,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}

	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	cfg := app.opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(app.opts.ConfigPath)
		if err != nil {
			return &ComponentError{Component: "config", Err: err}
		}
	}
	if app.opts.LogLevel != "" {
		if err := cfg.Set("logging.level", app.opts.LogLevel); err != nil {
			return &ComponentError{Component: "config", Err: err}
		}
		if err := cfg.Validate(); err != nil {
			return &ComponentError{Component: "config", Err: err}
		}
	}
	app.config = cfg

	// 2. Logger
	app.logger = app.opts.Logger
	if app.logger == nil {
		logger, err := NewLogger(cfg.Logging, app.stderr)
		if err != nil {
			return &ComponentError{Component: "logging", Err: err}
		}
		app.logger = logger
	}

	// 3. Catalogue
	tools := catalogue.Builtin()
	if path := cfg.CataloguePath(); path != "" {
		loaded, err := catalogue.Load(path)
		if err != nil {
			return &ComponentError{Component: "catalogue", Err: err}
		}
		tools = catalogue.Merge(tools, loaded)
	}
	app.catalogue = catalogue.New(tools...)

	// 4. Availability
	var checkOpts []availability.Option
	if app.opts.LookPath != nil {
		checkOpts = append(checkOpts, availability.WithLookPath(app.opts.LookPath))
	}
	app.checker = availability.NewChecker(checkOpts...)

	// 5. Engine
	engineOpts := []engine.Option{
		engine.WithLogger(app.logger.Named("engine")),
		engine.WithElevator(cfg.Elevator()),
		engine.WithChunkSize(cfg.Engine.ChunkSize),
		engine.WithDrainTimeout(cfg.Engine.DrainTimeout.Duration),
	}
	if app.opts.Registry != nil {
		engineOpts = append(engineOpts, engine.WithRegistry(app.opts.Registry))
	}
	app.engine = engine.New(engineOpts...)

	app.logger.Debug("application initialized",
		zap.Int("tools", app.catalogue.Len()),
		zap.String("elevation", cfg.Elevation.Helper))
	return nil
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *zap.Logger {
	return app.logger
}

// Engine returns the execution engine.
func (app *Application) Engine() *engine.Engine {
	return app.engine
}

// Catalogue returns the tool catalogue.
func (app *Application) Catalogue() *catalogue.Catalogue {
	return app.catalogue
}

// Shutdown terminates running processes and flushes the logger.
// It is safe to call more than once.
func (app *Application) Shutdown() error {
	app.shutdownOnce.Do(func() {
		app.shutdownErr = app.engine.Shutdown(app.config.Engine.ShutdownTimeout.Duration)
		if app.shutdownErr != nil {
			app.logger.Error("shutdown", zap.Error(app.shutdownErr))
		}
		// Sync returns EINVAL when stderr is a terminal.
		_ = app.logger.Sync()
	})
	return app.shutdownErr
}
