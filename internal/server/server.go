// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "bulletin/docs" // swagger docs
	"bulletin/internal/bootstrap"
	"bulletin/internal/config"
	"bulletin/internal/database"
	"bulletin/internal/featureflags"
	"bulletin/internal/middleware"
	"bulletin/internal/models"
	"bulletin/internal/push"
	"bulletin/internal/realtime"
	"bulletin/internal/repository"
	"bulletin/internal/service"
	"bulletin/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// bodyLimit leaves room for a multipart batch of attachments.
const bodyLimit = 128 * 1024 * 1024

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	featureFlags   *featureflags.Manager
	hub            *realtime.Hub
	pushDispatcher *push.Dispatcher

	authService         *service.AuthService
	postService         *service.PostService
	commentService      *service.CommentService
	notificationService *service.NotificationService
	chatService         *service.ChatService
	uploadService       *service.UploadService
	pushService         *service.PushService
}

// NewServer connects to the database and Redis and wires every dependency.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedDemoData: cfg.SeedOnStart})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; live updates then stay within this process and
// logout, tickets and rate limits are unavailable.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)
	globalChatRepo := repository.NewGlobalChatRepository(db)
	pushRepo := repository.NewPushSubscriptionRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("bulletin-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		s.hub = realtime.NewHub(redisClient)
	} else {
		s.hub = realtime.NewHub()
	}

	uploader, err := storage.New(cfg)
	if err != nil {
		// Posts still work without attachments.
		slog.Warn("attachment uploads disabled", slog.String("error", err.Error()))
	}

	s.pushDispatcher = push.NewDispatcher(cfg, pushRepo)
	var pushSender service.PushSender
	if s.pushDispatcher != nil {
		pushSender = s.pushDispatcher
	}

	loginLimiter := &middleware.LoginLimiter{Client: redisClient, Limit: 10, Window: 5 * time.Minute}
	s.authService = service.NewAuthService(userRepo, cfg.JWTSecret, redisClient, loginLimiter)
	s.notificationService = service.NewNotificationService(notificationRepo, s.hub, pushSender)

	var remover service.AttachmentRemover
	if uploader != nil {
		remover = uploader
	}
	s.postService = service.NewPostService(postRepo, s.notificationService, remover, s.hub, s.featureFlags)
	s.commentService = service.NewCommentService(commentRepo, postRepo, s.notificationService, s.hub, s.featureFlags)
	s.chatService = service.NewChatService(chatRepo, globalChatRepo, s.hub, s.featureFlags)
	s.uploadService = service.NewUploadService(uploader, cfg.MaxUploadBytes)
	s.pushService = service.NewPushService(pushRepo, cfg.VAPIDPublicKey)

	middleware.InitMiddleware(cfg, redisClient)
	return s, nil
}

// NewApp builds the Fiber app with goccy/go-json as its codec.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:     "Bulletin API",
		BodyLimit:   bodyLimit,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so throttled responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Bulletin Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", s.Login)
	auth.Post("/logout", middleware.AuthRequired, s.Logout)

	// Public reads
	api.Get("/posts", s.GetPosts)
	api.Get("/posts/:id/comments", s.GetComments)
	api.Get("/posts/:id", s.GetPost)
	api.Get("/users/:id/posts", s.GetUserPosts)
	api.Get("/chat/global", s.GetGlobalMessages)
	api.Get("/push/vapid-key", s.GetVAPIDKey)

	api.Post("/ws/ticket", middleware.AuthRequired, s.IssueWSTicket)
	api.Get("/ws", middleware.WebSocketAuthRequired, s.WebSocketUpgrade, s.WebsocketHandler())

	// Everything registered below requires a bearer token.
	protected := api.Group("", middleware.AuthRequired)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)

	protected.Get("/feature-flags", s.GetFeatureFlags)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Put("/:id/like", s.LikePost)
	posts.Delete("/:id/like", s.UnlikePost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	notifications := protected.Group("/notifications")
	notifications.Get("/", s.GetNotifications)
	notifications.Get("/unread-count", s.GetUnreadCount)
	notifications.Post("/read-all", s.MarkAllNotificationsRead)
	notifications.Delete("/read", s.DeleteReadNotifications)
	notifications.Post("/:id/read", s.MarkNotificationRead)
	notifications.Delete("/:id", s.DeleteNotification)

	chat := protected.Group("/chat")
	chat.Post("/global", middleware.RateLimit(s.redis, 30, time.Minute, "global_chat"), s.SendGlobalMessage)
	chat.Post("/rooms", s.CreateOrGetChatRoom)
	chat.Get("/rooms", s.GetChatRooms)
	chat.Get("/rooms/:id/messages", s.GetChatMessages)
	chat.Post("/rooms/:id/messages", middleware.RateLimit(s.redis, 30, time.Minute, "send_chat"), s.SendChatMessage)
	chat.Post("/rooms/:id/read", s.MarkChatRoomRead)
	chat.Get("/rooms/:id", s.GetChatRoom)

	protected.Post("/uploads", middleware.RateLimit(s.redis, 20, time.Minute, "upload"), s.UploadAttachments)

	pushSubs := protected.Group("/push/subscriptions")
	pushSubs.Post("/", s.SubscribePush)
	pushSubs.Delete("/", s.UnsubscribePush)

}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the live hub to Redis and serves until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := NewApp()
	s.app = app
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
			slog.Error("failed to start live hub wiring",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}()

	slog.Info("server starting", slog.String("port", s.config.Port))
	if err := app.Listen(":" + s.config.Port); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		slog.Error("error shutting down live hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
