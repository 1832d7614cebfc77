package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"mcpstudio/internal/config"
	"mcpstudio/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs mcpstudio.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load configuration, initialize logging, wire services
//  2. Execution phase: serve HTTP until the context ends or a signal arrives
//
// Example usage:
//
//	cfg := app.NewConfig(false, "mcpstudio.yaml", "", version)
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration and initializes all services.
//
// Logging is first set up from the Debug flag so that configuration loading
// is visible, then re-initialized from the loaded logging section.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}

	bootLevel := logging.LevelInfo
	if cfg.Debug {
		bootLevel = logging.LevelDebug
	}
	logging.InitForCLI(bootLevel, logOutput)

	appCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Listen != "" {
		appCfg.Server.Listen = cfg.Listen
	}
	cfg.AppConfig = &appCfg

	initLogging(cfg, logOutput)

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config, output io.Writer) {
	level, err := logging.ParseLevel(cfg.AppConfig.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, logging.Format(cfg.AppConfig.Logging.Format), output)
}

// Services returns the wired services.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves HTTP until ctx ends or SIGINT/SIGTERM arrives, then shuts down
// gracefully. It closes all services before returning.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}
