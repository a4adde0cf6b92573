// Package server contains the HTTP and WebSocket handlers of the TaskHub API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "taskhub/docs" // swagger docs
	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/featureflags"
	"taskhub/internal/mailer"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/notifications"
	"taskhub/internal/repository"
	"taskhub/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	authService     *service.AuthService
	oauthService    *service.OAuthService
	userService     *service.UserService
	projectService  *service.ProjectService
	taskService     *service.TaskService
	resourceService *service.ResourceService
	tagService      *service.TagService
	linkServices    []service.LinkService
	socialService   *service.SocialService
	postService     *service.PostService
	commentService  *service.CommentService
}

// NewServer connects to the database and Redis described by cfg and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	mail, err := mailer.New(cfg)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	tagRepo := repository.NewTagRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("taskhub-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// Events travel over Redis pub/sub; without Redis nothing is published.
	var events service.EventPublisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		events = server.notifier
	}

	tokens := service.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	server.authService = service.NewAuthService(userRepo, tokens, mail, redisClient, cfg.RequireEmailVerification)
	if cfg.GoogleOAuthConfigured() {
		provider := service.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		server.oauthService = service.NewOAuthService(userRepo, provider, server.authService, redisClient)
	}
	server.userService = service.NewUserService(userRepo, followRepo, friendRepo, mail, redisClient, bcrypt.DefaultCost)

	server.projectService = service.NewProjectService(projectRepo, redisClient)
	server.taskService = service.NewTaskService(taskRepo, redisClient)
	server.resourceService = service.NewResourceService(resourceRepo, redisClient)
	server.tagService = service.NewTagService(tagRepo, redisClient)
	server.linkServices = []service.LinkService{
		service.NewLinkService(repository.NewLinkRepository[models.UserProject](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.UserTask](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.UserResource](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.ProjectTask](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.ProjectResource](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.ProjectTag](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.TaskResource](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.TaskTag](db), redisClient),
		service.NewLinkService(repository.NewLinkRepository[models.ResourceTag](db), redisClient),
	}

	privacy := service.NewPrivacy(friendRepo)
	server.socialService = service.NewSocialService(userRepo, followRepo, friendRepo, events, redisClient)
	server.postService = service.NewPostService(postRepo, userRepo, projectRepo, taskRepo, resourceRepo, privacy, events)
	server.commentService = service.NewCommentService(commentRepo, server.postService, userRepo, events)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3001,http://localhost:3000,http://127.0.0.1:3001"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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

// SetupRoutes configures all routes for the application.
//
// Public and optionally-authenticated routes take their middleware per route,
// because a Group with middleware applies it to every path under its prefix.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")
	auth := s.AuthRequired()
	optional := s.OptionalAuth()

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "TaskHub API Metrics",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth
	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", middleware.Limit(s.redis, middleware.SignupRule), s.Signup)
	authRoutes.Post("/login", middleware.Limit(s.redis, middleware.LoginRule), s.Login)
	authRoutes.Post("/verify_email", s.VerifyEmail)
	authRoutes.Post("/resend_verification", middleware.Limit(s.redis, middleware.ResendVerificationRule), s.ResendVerification)
	authRoutes.Post("/forgot_password", middleware.Limit(s.redis, middleware.ForgotPasswordRule), s.ForgotPassword)
	authRoutes.Post("/reset_password", s.ResetPassword)
	authRoutes.Get("/me", auth, s.Me)
	authRoutes.Post("/logout", auth, s.Logout)
	authRoutes.Get("/google", s.GoogleLogin)
	authRoutes.Get("/google/callback", s.GoogleCallback)

	// Users
	users := api.Group("/users")
	users.Post("/", middleware.Limit(s.redis, middleware.SignupRule), s.Signup)
	users.Get("/", auth, s.ListUsers)
	users.Get("/:id", auth, s.GetUser)
	users.Put("/:id", auth, s.UpdateUser)
	users.Patch("/:id", auth, s.UpdateUser)
	users.Delete("/:id", auth, s.DeleteUser)

	// Catalog
	projects := api.Group("/projects", auth)
	projects.Get("/", s.ListProjects)
	projects.Post("/", s.CreateProject)
	projects.Get("/:id/progress", s.GetProjectProgress)
	projects.Get("/:id", s.GetProject)
	projects.Put("/:id", s.UpdateProject)
	projects.Patch("/:id", s.UpdateProject)
	projects.Delete("/:id", s.DeleteProject)

	tasks := api.Group("/tasks", auth)
	tasks.Get("/", s.ListTasks)
	tasks.Post("/", s.CreateTask)
	tasks.Get("/:id", s.GetTask)
	tasks.Put("/:id", s.UpdateTask)
	tasks.Patch("/:id", s.UpdateTask)
	tasks.Delete("/:id", s.DeleteTask)

	resources := api.Group("/resources", auth)
	resources.Get("/", s.ListResources)
	resources.Post("/", s.CreateResource)
	resources.Get("/:id", s.GetResource)
	resources.Put("/:id", s.UpdateResource)
	resources.Patch("/:id", s.UpdateResource)
	resources.Delete("/:id", s.DeleteResource)

	tags := api.Group("/tags", auth)
	tags.Get("/", s.ListTags)
	tags.Post("/", s.CreateTag)
	tags.Get("/:id", s.GetTag)
	tags.Put("/:id", s.UpdateTag)
	tags.Patch("/:id", s.UpdateTag)
	tags.Delete("/:id", s.DeleteTag)

	// Join tables
	for _, svc := range s.linkServices {
		h := linkHandlers{svc: svc}
		g := api.Group("/"+svc.Table(), auth)
		g.Get("/", h.List)
		g.Post("/", h.Create)
		g.Get("/:id", h.Get)
		g.Put("/:id", h.Update)
		g.Patch("/:id", h.Update)
		g.Delete("/:id", h.Delete)
	}

	// Social graph
	social := api.Group("/social", auth)
	social.Get("/followers/:user_id?", s.GetFollowers)
	social.Get("/following/:user_id?", s.GetFollowing)
	social.Get("/friends/:user_id?", s.GetFriends)
	social.Get("/friend_requests", s.GetFriendRequests)
	social.Get("/search_users", s.SearchUsers)
	social.Get("/suggestions", s.GetSuggestions)
	social.Post("/follow/:id", s.Follow)
	social.Delete("/unfollow/:id", s.Unfollow)
	social.Post("/friend_request/:id", middleware.Limit(s.redis, middleware.FriendRequestRule), s.SendFriendRequest)
	social.Post("/accept_friend_request/:id", s.AcceptFriendRequest)
	social.Post("/decline_friend_request/:id", s.DeclineFriendRequest)
	social.Delete("/remove_friend/:id", s.RemoveFriend)

	// Posts, comments and likes
	posts := api.Group("/posts")
	posts.Get("/", optional, s.ListPosts)
	posts.Post("/", auth, middleware.Limit(s.redis, middleware.CreatePostRule), s.CreatePost)
	posts.Get("/:post_id/comments", optional, s.ListComments)
	posts.Post("/:post_id/comments", auth, middleware.Limit(s.redis, middleware.CreateCommentRule), s.CreateComment)
	posts.Post("/:post_id/likes", auth, s.LikePost)
	posts.Delete("/:post_id/likes", auth, s.UnlikePost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Put("/:id", auth, s.UpdatePost)
	posts.Patch("/:id", auth, s.UpdatePost)
	posts.Delete("/:id", auth, s.DeletePost)

	comments := api.Group("/comments")
	comments.Get("/:id", optional, s.GetComment)
	comments.Put("/:id", auth, s.UpdateComment)
	comments.Patch("/:id", auth, s.UpdateComment)
	comments.Delete("/:id", auth, s.DeleteComment)

	feed := api.Group("/feed", auth)
	feed.Get("/", s.GetFeed)
	feed.Get("/friends", s.GetFriendsFeed)
	feed.Get("/following", s.GetFollowingFeed)

	api.Get("/feature_flags", auth, s.GetFeatureFlags)

	// Realtime
	api.Post("/ws/ticket", auth, s.requireRealtime, s.IssueWSTicket)
	api.Get("/ws", s.requireRealtime, s.requireUpgrade, auth, s.WebsocketHandler())
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
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
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the API still serves, minus cache and realtime.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "TaskHub API",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// errorHandler renders errors that escape handlers, including Fiber's own 404/405.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	return mapServiceError(c, err)
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "TaskHub API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Fan notification channels in from Redis
	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Sockets first: open websockets would otherwise hold the HTTP shutdown
	// until ctx expires.
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
		}
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
