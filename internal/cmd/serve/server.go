package serve

import (
	"context"
	"fmt"

	"github.com/campusfound/board-service/internal/board"
	"github.com/campusfound/board-service/internal/chat"
	"github.com/campusfound/board-service/internal/config"
	kvmetrics "github.com/campusfound/board-service/internal/plugin/kv/metrics"
	"github.com/campusfound/board-service/internal/plugin/route/conversations"
	"github.com/campusfound/board-service/internal/plugin/route/items"
	"github.com/campusfound/board-service/internal/plugin/route/messages"
	routesystem "github.com/campusfound/board-service/internal/plugin/route/system"
	"github.com/campusfound/board-service/internal/plugin/route/users"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	registryroute "github.com/campusfound/board-service/internal/registry/route"
	"github.com/campusfound/board-service/internal/security"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config          *config.Config
	KV              registrykv.Store
	Router          *gin.Engine
	Running         *RunningServers
	closeManagement func(context.Context) error
}

// Shutdown gracefully shuts down the server and closes the KV backend.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closeManagement != nil {
		_ = s.closeManagement(ctx)
	}
	err := s.Running.Close(ctx)
	if closeErr := s.KV.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// StartServer initializes all subsystems and starts serving HTTP on a single
// port. Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting board service",
		"httpPort", cfg.Listener.Port,
		"kv", cfg.KVKind,
		"mode", cfg.Mode,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	// Initialize the KV backend.
	kvLoader, err := registrykv.Select(cfg.KVKind)
	if err != nil {
		return nil, err
	}
	kv, err := kvLoader(config.WithContext(ctx, cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kv store: %w", err)
	}
	kv = kvmetrics.Wrap(kv)

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount main route plugins on the main router.
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Domain services share the one KV store.
	boardStore := board.NewStore(kv)
	chatSvc := chat.NewService(kv, boardStore)

	// Create shared token resolver and auth middleware.
	resolver := security.NewTokenResolver(cfg)
	auth := security.AuthMiddleware(resolver)

	// Mount API routes
	users.MountRoutes(router, boardStore, auth)
	items.MountRoutes(router, boardStore, auth)
	conversations.MountRoutes(router, chatSvc, auth)
	messages.MountRoutes(router, chatSvc, auth)

	// Mount management route plugins. If a dedicated management port is configured,
	// run them on a bare gin engine served by the management server. Otherwise,
	// mount them on the main router.
	var closeManagement func(context.Context) error
	if cfg.ManagementListenerEnabled {
		mgmtRouter := gin.New()
		mgmtRouter.Use(gin.Recovery())
		if cfg.ManagementAccessLog {
			mgmtRouter.Use(security.AccessLogMiddleware())
		}
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(mgmtRouter); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
		// Management listener shares TLS cert/key with the main listener.
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		_, closeManagement, err = startManagementServer(mgmtCfg, mgmtRouter)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
	} else {
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(router); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
	}

	running, err := StartSinglePortHTTP(ctx, cfg.Listener, router)
	if err != nil {
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)

	routesystem.MarkReady()
	return &Server{
		Config:          cfg,
		KV:              kv,
		Router:          router,
		Running:         running,
		closeManagement: closeManagement,
	}, nil
}
