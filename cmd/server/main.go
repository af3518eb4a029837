package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/confabhq/confab/internal/config"
	"github.com/confabhq/confab/internal/database"
	"github.com/confabhq/confab/internal/handlers"
	"github.com/confabhq/confab/internal/logging"
	"github.com/confabhq/confab/internal/middleware"
	"github.com/confabhq/confab/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{
			"env": cfg.Server.Environment,
		})
	}

	logger.Info("Starting Confab server...")

	ctx := context.Background()

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)

	var verifier services.TokenVerifier
	switch cfg.Auth.VerifierMode {
	case "oidc":
		verifier, err = services.NewOIDCVerifier(ctx, cfg.Auth.Issuer)
		if err != nil {
			return fmt.Errorf("initializing oidc verifier: %w", err)
		}
	default:
		verifier = services.NewHS256Verifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	authAPI := services.NewAuthAPI(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Auth.ServiceKey)
	profileService := services.NewProfileService(dbAdapter)
	friendService := services.NewFriendService(dbAdapter)
	chatService := services.NewChatService(dbAdapter)

	var emailService services.EmailServiceInterface
	switch cfg.Email.Provider {
	case "resend":
		emailService = services.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.FromName, cfg.Email.FromAddress)
	default:
		emailService = services.ConsoleEmailService{}
	}
	friendService.SetNotifier(services.NewFriendNotifier(dbAdapter, authAPI, emailService, cfg.Server.BaseURL))

	// Initialize handlers
	refreshCookie := handlers.RefreshCookie{
		HTTPOnly: cfg.Cookie.HTTPOnly,
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSiteMode(),
		Domain:   cfg.Cookie.Domain,
	}

	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authAPI, profileService, friendService, refreshCookie)
	friendHandler := handlers.NewFriendHandler(friendService, profileService)
	chatHandler := handlers.NewChatHandler(chatService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(verifier)
	requestLogger := middleware.NewRequestLogger(logger)
	requireAuth := authMiddleware.RequireAuth

	authRateLimit := resolveRateLimit("AUTH_RATE_LIMIT", 20, 200, cfg, logger, os.LookupEnv)
	userRateLimit := resolveRateLimit("USER_RATE_LIMIT", 60, 600, cfg, logger, os.LookupEnv)

	// Pre-auth endpoints are keyed by IP; fail open so a Redis outage
	// cannot lock everyone out.
	authRateLimiter := middleware.NewRateLimiter(redisDB.Client, authRateLimit, time.Minute, "ratelimit:auth:", middleware.GetClientIP, true)
	userRateLimiter := middleware.NewRateLimiter(redisDB.Client, userRateLimit, time.Minute, "ratelimit:user:", func(r *http.Request) string {
		if user := handlers.GetUserFromContext(r.Context()); user != nil {
			return user.UserID.String()
		}
		return ""
	}, true)

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Auth endpoints
	mux.Handle("POST /auth/register", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /auth/login", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /auth/access", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Access)))
	mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /auth/logout", http.HandlerFunc(authHandler.Logout))

	// Friend endpoints
	mux.Handle("GET /friends/search/{prefix}", requireAuth(userRateLimiter.Middleware(http.HandlerFunc(friendHandler.Search))))
	mux.Handle("POST /friends/request", requireAuth(http.HandlerFunc(friendHandler.SendRequest)))
	mux.Handle("POST /friends/request/accept", requireAuth(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("DELETE /friends/request/decline/{sender_id}", requireAuth(http.HandlerFunc(friendHandler.DeclineRequest)))
	mux.Handle("DELETE /friends/request/cancel/{receiver_id}", requireAuth(http.HandlerFunc(friendHandler.CancelRequest)))
	mux.Handle("DELETE /friends/remove/{other_user_id}", requireAuth(http.HandlerFunc(friendHandler.RemoveFriend)))

	// Chat endpoints
	mux.Handle("POST /chat/conversations/direct", requireAuth(http.HandlerFunc(chatHandler.OpenDirect)))
	mux.Handle("POST /chat/messages", requireAuth(userRateLimiter.Middleware(http.HandlerFunc(chatHandler.SendMessage))))
	mux.Handle("GET /chat/conversations", requireAuth(http.HandlerFunc(chatHandler.ListConversations)))
	mux.Handle("GET /chat/messages/{conversation_id}", requireAuth(http.HandlerFunc(chatHandler.ListMessages)))
	mux.Handle("GET /chat/conversation/participants/{conversation_id}", requireAuth(http.HandlerFunc(chatHandler.ListParticipants)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

func resolveRateLimit(envKey string, def, devDef int64, cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	limit := def
	if cfg.Server.Environment == "development" {
		limit = devDef
		logger.Info("Using development rate limit", map[string]interface{}{"env": envKey, "limit": limit})
	}
	if v, ok := lookupEnv(envKey); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
			logger.Info("Using rate limit from env", map[string]interface{}{"env": envKey, "limit": limit})
		} else {
			logger.Warn("Invalid rate limit value; using default", map[string]interface{}{
				"env":   envKey,
				"value": v,
				"limit": limit,
			})
		}
	}
	return limit
}
