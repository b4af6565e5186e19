package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"church-admin-gateway/config"
	"church-admin-gateway/internal/adapter/gateway"
	adapterhandler "church-admin-gateway/internal/adapter/handler"
	"church-admin-gateway/internal/domain"
	infracache "church-admin-gateway/internal/infrastructure/cache"
	"church-admin-gateway/internal/infrastructure/sessionstore"
	infratoken "church-admin-gateway/internal/infrastructure/token"
	"church-admin-gateway/internal/usecase"
	appmiddleware "church-admin-gateway/middleware"
	"church-admin-gateway/utils/logger"
	"church-admin-gateway/utils/otel"
	"church-admin-gateway/utils/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("env-file", ".env", "dotenv file to load before reading the environment")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Initialize OpenTelemetry
	otelCfg := otel.ConfigFromEnv()
	otelCfg.ServiceVersion = version
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize OpenTelemetry, continuing without tracing", "error", err)
		otelCfg.Enabled = false
		otelShutdown = func(context.Context) error { return nil }
	}

	log := logger.Init(cfg.LogLevel, otelCfg.Enabled)
	log.InfoContext(ctx, "configuration loaded",
		"port", cfg.Port,
		"church_api_url", cfg.APIBaseURL,
		"session_backend", cfg.SessionBackend,
		"session_idle_ttl", cfg.SessionIdleTTL,
		"restore_timeout", cfg.RestoreTimeout)

	srv, err := newServer(cfg, otelCfg, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	address := fmt.Sprintf(":%s", cfg.Port)
	log.InfoContext(ctx, "starting church-admin-gateway", "address", address, "version", version)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.echo.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server exited properly")
	return nil
}

// server is the wired gateway plus the resources it must release.
type server struct {
	echo    *echo.Echo
	closers []func()
}

// Close releases background workers and connections in reverse order.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newServer(cfg *config.Config, otelCfg otel.Config, log *slog.Logger) (*server, error) {
	srv := &server{}
	fail := func(err error) (*server, error) {
		srv.Close()
		return nil, err
	}

	// Infrastructure
	var backend domain.SessionBackend
	switch cfg.SessionBackend {
	case config.BackendRedis:
		redisBackend, err := sessionstore.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("session backend: %w", err))
		}
		srv.closers = append(srv.closers, func() { _ = redisBackend.Close() })
		backend = redisBackend
	default:
		backend = sessionstore.NewMemoryBackend()
	}

	store, err := sessionstore.NewEncryptedStore(backend, sessionstore.Options{
		Secret:         cfg.SessionSecret,
		PreviousSecret: cfg.SessionSecretPrevious,
		TTL:            cfg.SessionTTL,
	}, log)
	if err != nil {
		return fail(fmt.Errorf("session store: %w", err))
	}

	interceptor := gateway.NewForbiddenInterceptor(gateway.NewTransport(), log)
	srv.closers = append(srv.closers, interceptor.Register(appmiddleware.NavigateOnForbidden))

	api, err := gateway.NewChurchAPI(cfg.APIBaseURL, cfg.APITimeout, interceptor)
	if err != nil {
		return fail(err)
	}

	managerCache := infracache.NewTTLCache[*usecase.SessionManager](cfg.SessionIdleTTL, usecase.DisposeEvicted)
	srv.closers = append(srv.closers, managerCache.Close)

	cookieStore, err := appmiddleware.NewCookieStore(cfg.SessionSecret, cfg.CookieSecure, cfg.SessionTTL)
	if err != nil {
		return fail(err)
	}

	renderer, err := adapterhandler.NewRenderer()
	if err != nil {
		return fail(err)
	}

	// Usecases
	managers := usecase.NewSessionManagers(managerCache, api, store, infratoken.NewJWTInspector(cfg.APITokenSecret), log)
	csrfTokens := infratoken.NewHMACCSRF(cfg.CSRFSecret)
	csrfUC := usecase.NewGenerateCSRF(csrfTokens, log)
	checkAccess := usecase.NewCheckAccess()

	// Handlers
	pages := adapterhandler.NewPageHandler(csrfUC, checkAccess, cfg.AdminContactEmail)
	authHandler := adapterhandler.NewAuthHandler(validator.New(), pages, cfg.RestoreTimeout)
	csrfHandler := adapterhandler.NewCSRFHandler(csrfUC)
	healthHandler := adapterhandler.NewHealthHandler(store, 2*time.Second)
	proxyHandler := adapterhandler.NewProxyHandler(api.BaseURL(), api.Transport())

	guard := appmiddleware.NewGuard(checkAccess, cfg.RestoreTimeout)
	credentialsRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.LoginRateLimit), cfg.LoginRateBurst)
	srv.closers = append(srv.closers, credentialsRL.Stop)

	// Setup Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	srv.echo = e

	// OpenTelemetry tracing
	if otelCfg.Enabled {
		e.Use(otelecho.Middleware(otelCfg.ServiceName))
		e.Use(appmiddleware.OTelStatusMiddleware())
	}

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.RequestContext())

	// Request logging
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			l := logger.FromContext(rctx)
			if v.Error == nil {
				l.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				l.ErrorContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Use(appmiddleware.SecurityHeaders(cfg.CookieSecure))
	e.Use(appmiddleware.Navigation())

	// Operational routes
	e.GET("/health", healthHandler.Handle)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Static("/assets", cfg.AssetsDir)

	// Browser routes
	app := e.Group("",
		appmiddleware.BrowserContext(cookieStore, managers),
		appmiddleware.CSRF(csrfTokens),
	)

	guestOnly := guard.Require(domain.Constraints{RequireGuest: true})
	signedIn := guard.Require(domain.Constraints{RequireAuth: true})
	anyone := guard.Require(domain.Constraints{})

	app.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, domain.LandingRoute)
	})
	app.GET(domain.LoginRoute, pages.Login, guestOnly)
	app.GET("/register", pages.Register, guestOnly)
	app.GET(domain.LandingRoute, pages.Dashboard, signedIn)
	app.GET("/profile", pages.Profile, signedIn)
	app.GET(domain.ForbiddenRoute, pages.AccessDenied, anyone)

	auth := app.Group("/auth")
	auth.POST("/login", authHandler.Login, credentialsRL.Middleware())
	auth.POST("/register", authHandler.Register, credentialsRL.Middleware())
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session)
	auth.GET("/csrf", csrfHandler.Handle)
	auth.PUT("/profile", authHandler.UpdateProfile, signedIn)

	for _, s := range adapterhandler.Sections() {
		var opts []appmiddleware.GuardOption
		if s.Restricted {
			opts = append(opts, appmiddleware.WithFallback(pages.Restricted(s)))
		}
		protect := guard.Require(s.Constraints, opts...)
		app.GET("/"+s.Slug, pages.Section(s), protect)
		app.GET("/"+s.Slug+"/*", pages.Section(s), protect)
	}

	app.Any("/api/*", proxyHandler.Handle, signedIn)

	return srv, nil
}
