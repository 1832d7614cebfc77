package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mcpstudio/internal/aggregator"
	"mcpstudio/internal/config"
	"mcpstudio/internal/mcpserver"
	"mcpstudio/internal/reconciler"
	"mcpstudio/internal/server"
	"mcpstudio/internal/store"
	"mcpstudio/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// storeConnectTimeout bounds opening the Postgres pool at start.
const storeConnectTimeout = 10 * time.Second

// Services holds all initialized services used by the application.
//
// Services are created in dependency order:
//  1. Metrics registry
//  2. Per-user server store (optional)
//  3. Connection manager
//  4. Coordinator with the global server list
//  5. HTTP router
type Services struct {
	Config config.Config

	// Registry collects the process and connection metrics served on /metrics.
	Registry *prometheus.Registry

	Manager     *aggregator.ConnectionManager
	Coordinator *reconciler.Coordinator
	Server      *server.Server

	// Store is nil when store.type is "none".
	Store store.ServerStore

	fileStore *store.FileStore
	pgStore   *store.PostgresStore
}

// InitializeServices creates and wires every service from cfg.AppConfig.
// Invalid global server entries are logged and skipped; they never prevent
// start-up.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	if cfg.AppConfig == nil {
		return nil, errors.New("configuration not loaded")
	}
	appCfg := *cfg.AppConfig

	s := &Services{
		Config:   appCfg,
		Registry: prometheus.NewRegistry(),
	}
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := s.initStore(ctx, appCfg.Store); err != nil {
		return nil, err
	}

	s.Manager = aggregator.NewConnectionManager(aggregator.ManagerOptions{
		Client: mcpserver.ClientOptions{
			ConnectTimeout:   appCfg.MCP.ConnectTimeout,
			CloseGracePeriod: appCfg.MCP.CloseGracePeriod,
			ClientName:       appCfg.MCP.ClientName,
			ClientVersion:    cfg.Version,
		},
		CallTimeout: appCfg.MCP.CallTimeout,
		MaxParallel: appCfg.MCP.MaxParallel,
		Metrics:     aggregator.NewMetrics(s.Registry),
	})

	globals, errs := config.GlobalServers(appCfg)
	if errs.HasErrors() {
		logging.Warn("Services", "Skipping %d invalid global server entries:\n%s", errs.Count(), errs.GetDetailedReport())
	}
	logging.Info("Services", "Configured %d global MCP servers", len(globals))

	s.Coordinator = reconciler.New(reconciler.Options{
		Manager:       s.Manager,
		Store:         s.Store,
		Globals:       globals,
		RetryInterval: appCfg.MCP.RetryInterval,
		MaxParallel:   appCfg.MCP.MaxParallel,
	})

	s.Server = server.New(server.Options{
		Manager:     s.Manager,
		Coordinator: s.Coordinator,
		UserHeader:  appCfg.Server.UserHeader,
		Gatherer:    s.Registry,
	})

	return s, nil
}

func (s *Services) initStore(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Type {
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		defer cancel()
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open server store: %w", err)
		}
		s.pgStore = pg
		s.Store = pg
		logging.Info("Services", "Using Postgres server store")
	case config.StoreFile:
		fs, err := store.NewFileStore(cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to open server store: %w", err)
		}
		s.fileStore = fs
		s.Store = fs
		logging.Info("Services", "Using file server store %s", cfg.Path)
	default:
		logging.Info("Services", "No server store configured, serving global servers only")
	}
	return nil
}

// Start begins background work: watching the file store and connecting the
// global servers ahead of the first request.
func (s *Services) Start(ctx context.Context) error {
	if s.fileStore != nil {
		err := s.fileStore.Watch(ctx, func() {
			logging.Info("Services", "Reloaded server store %s", s.fileStore.Path())
		})
		if err != nil {
			return fmt.Errorf("failed to watch server store: %w", err)
		}
	}

	go func() {
		if err := s.Coordinator.EnsureGlobalServers(ctx); err != nil {
			logging.Debug("Services", "Global server warm-up interrupted: %v", err)
		}
	}()
	return nil
}

// Close disconnects every MCP server and releases the store.
func (s *Services) Close() error {
	var errs []error
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if s.fileStore != nil {
		errs = append(errs, s.fileStore.Stop())
	}
	if s.pgStore != nil {
		s.pgStore.Close()
	}
	return errors.Join(errs...)
}
