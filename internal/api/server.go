package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/danghamo/robomap/internal/api/handlers"
	"github.com/danghamo/robomap/internal/api/jsonrpcx"
	"github.com/danghamo/robomap/internal/api/middleware"
	"github.com/danghamo/robomap/internal/app/service"
	cqrshandlers "github.com/danghamo/robomap/internal/cqrs/handlers"
	"github.com/danghamo/robomap/internal/domain/auth"
	"github.com/danghamo/robomap/internal/domain/robot"
	"github.com/danghamo/robomap/pkg/config"
	"github.com/danghamo/robomap/pkg/logger"
	"github.com/danghamo/robomap/pkg/redisx"
	"github.com/danghamo/robomap/pkg/sse"
)

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	logger         *logger.Logger
	config         *config.Config
	redisClient    *redisx.Client
	mux            *http.ServeMux
	stateHolder    *service.StateHolder
	repository     robot.Repository
	robotHandler   *handlers.RobotHandler
	authHandler    *handlers.AuthHandler
	serverHandler  *handlers.ServerHandler
	authMiddleware *middleware.AuthMiddleware
	sseBroadcaster *sse.SSEBroadcaster
	// Watermill CQRS components
	eventBus        *cqrs.EventBus
	eventProcessor  *cqrs.EventProcessor
	router          *message.Router
	sseEventHandler *cqrshandlers.SSEEventHandler
	activity        *service.ActivityBroadcaster
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, log *logger.Logger, redisClient *redisx.Client) (*Server, error) {
	mux := http.NewServeMux()
	apiLogger := log.WithComponent("api")

	// State and persistence
	mapService := robot.NewMapService(log, nil)
	stateHolder := service.NewStateHolder(mapService)
	repository := robot.NewRedisRepository(redisClient.Client)

	// Auth
	jwtService := auth.NewJWTService(
		cfg.Auth.JWTSecret,
		"robomap-bridge",
		cfg.Auth.JWTExpiration,
	)
	credentials := auth.NewCredentials(cfg.Auth.AccessPasswordHash)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, apiLogger)

	// Unique consumer group per bridge instance so every instance sees every event
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	instanceID := fmt.Sprintf("%s-%s-%d", cfg.Redis.Streams.ConsumerGroup, hostname, time.Now().UnixNano())

	watermillLogger := watermill.NewStdLogger(false, false)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient.Client,
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        redisClient.Client,
			ConsumerGroup: instanceID,
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 5 * time.Second, // Short timeout for graceful shutdown
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	eventBus, err := cqrs.NewEventBusWithConfig(
		publisher,
		cqrs.EventBusConfig{
			GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
				return fmt.Sprintf("robot-events.%s", params.EventName), nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(
		router,
		cqrs.EventProcessorConfig{
			GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return fmt.Sprintf("robot-events.%s", params.EventName), nil
			},
			SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return subscriber, nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	// SSE broadcaster and event handlers
	sseBroadcaster := sse.NewSSEBroadcaster(apiLogger)
	sseEventHandler := cqrshandlers.NewSSEEventHandler(sseBroadcaster, apiLogger)

	// Periodic position rebroadcasts while the robot is active
	activity := service.NewActivityBroadcaster(
		log,
		stateHolder,
		eventBus,
		redisClient.Client,
		cfg.Robot.DeviceID,
		cfg.Robot.ActiveTTL,
		cfg.Robot.RefreshPeriod,
	)

	server := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.GetServerAddr(),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // SSE connections stay open
			IdleTimeout:  60 * time.Second,
		},
		logger:      apiLogger,
		config:      cfg,
		redisClient: redisClient,
		mux:         mux,
		stateHolder: stateHolder,
		repository:  repository,
		robotHandler: handlers.NewRobotHandler(
			apiLogger,
			stateHolder,
			repository,
			eventBus,
			activity,
			cfg.Robot.DeviceID,
		),
		authHandler:     handlers.NewAuthHandler(apiLogger, credentials, jwtService),
		serverHandler:   handlers.NewServerHandler(cfg.Robot.DeviceID, cfg.Robot.Name, cfg.Robot.Model),
		authMiddleware:  authMiddleware,
		sseBroadcaster:  sseBroadcaster,
		eventBus:        eventBus,
		eventProcessor:  eventProcessor,
		router:          router,
		sseEventHandler: sseEventHandler,
		activity:        activity,
	}

	// Register event handlers for SSE broadcasting
	err = eventProcessor.AddHandlers(
		cqrs.NewEventHandler("RobotPositionUpdatedEvent", sseEventHandler.HandleRobotPositionUpdatedEvent),
		cqrs.NewEventHandler("RobotMapUpdatedEvent", sseEventHandler.HandleRobotMapUpdatedEvent),
		cqrs.NewEventHandler("SSENotificationEvent", sseEventHandler.HandleSSENotificationEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register event handlers: %w", err)
	}

	server.setupRoutes()
	server.setupMiddleware()

	return server, nil
}

// RestoreState loads any persisted robot state into memory
func (s *Server) RestoreState(ctx context.Context) error {
	state, err := s.repository.Load(ctx, s.config.Robot.DeviceID)
	if err != nil {
		return err
	}
	if state == nil {
		s.logger.Info("No persisted robot state found",
			zap.String("deviceId", s.config.Robot.DeviceID))
		return nil
	}

	s.stateHolder.Restore(*state)
	s.logger.Info("Restored robot state from Redis",
		zap.String("deviceId", s.config.Robot.DeviceID),
		zap.Bool("hasMap", state.Map != nil))
	return nil
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() {
	// Health check endpoint (pure REST)
	s.mux.HandleFunc(s.config.Server.HealthCheckPath, s.healthCheckHandler)

	// Swagger documentation endpoint
	s.mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Bridge info endpoint (no auth required)
	s.mux.HandleFunc("/api/v1/server.Info", s.serverHandler.HandleServerInfo)

	// General purpose ping endpoint
	s.mux.HandleFunc("/api/v1/ping", s.handlePing)

	// Token endpoint (no auth required)
	s.mux.HandleFunc("/api/v1/auth.Token", s.authHandler.HandleToken)

	// Robot endpoints (JWT auth required)
	s.mux.Handle("/api/v1/robot.UpdatePosition", s.authMiddleware.RequireAuth(http.HandlerFunc(s.robotHandler.HandleUpdatePosition)))
	s.mux.Handle("/api/v1/robot.SetMap", s.authMiddleware.RequireAuth(http.HandlerFunc(s.robotHandler.HandleSetMap)))
	s.mux.Handle("/api/v1/robot.State", s.authMiddleware.RequireAuth(http.HandlerFunc(s.robotHandler.HandleState)))
	s.mux.Handle("/api/v1/robot.MapImage", s.authMiddleware.RequireAuth(http.HandlerFunc(s.robotHandler.HandleMapImage)))

	// SSE endpoint for real-time updates (uses dedicated SSE auth middleware)
	s.mux.Handle("/api/v1/stream/robot", s.authMiddleware.RequireSSEAuth(http.HandlerFunc(s.sseBroadcaster.HandleSSE)))
}

// setupMiddleware applies middleware to all routes
func (s *Server) setupMiddleware() {
	middlewareChain := middleware.Chain(
		middleware.RateLimit(s.logger),
		middleware.Recovery(s.logger),
		middleware.ErrorAdapter(s.logger),
		middleware.CORS(s.config.CORS.AllowedOrigins),
		middleware.Logging(s.logger),
	)

	s.httpServer.Handler = middlewareChain(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr))

	// Start Watermill router first
	go func() {
		if err := s.router.Run(ctx); err != nil {
			s.logger.Error("Watermill router error", zap.Error(err))
		}
	}()

	// Start activity broadcaster
	s.activity.Start(ctx)

	// Start server in goroutine
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	// Stop periodic broadcasts first
	if s.activity != nil {
		s.activity.Stop()
	}

	// Shutdown SSE broadcaster to close client connections
	if s.sseBroadcaster != nil {
		s.logger.Debug("Closing SSE broadcaster")
		s.sseBroadcaster.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
		return err
	}

	// Shutdown Watermill router (with CloseTimeout already configured)
	if s.router != nil {
		s.logger.Info("Closing Watermill router")
		if err := s.router.Close(); err != nil {
			s.logger.Error("Router shutdown error", zap.Error(err))
			return err
		}
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return s.httpServer.Addr
}

// healthCheckHandler handles health check requests
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.redisClient.HealthCheck(r.Context()); err != nil {
		s.logger.Error("Redis health check failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unhealthy","checks":{"redis":{"status":"down","error":"` + err.Error() + `"}}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","checks":{"redis":{"status":"up"}}}`))
}

// handlePing handles ping requests (hybrid JSON-RPC)
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	result := map[string]string{"message": "pong"}
	jsonrpcx.Success(w, req.ID, result)
}
