package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"codegame/internal/broadcast"
	"codegame/internal/console"
	"codegame/internal/contest/controller"
	contestsvc "codegame/internal/contest/service"
	"codegame/internal/gateway/middleware"
	"codegame/internal/gateway/service"
	"codegame/internal/problem"
	"codegame/internal/sandbox"
	"codegame/pkg/utils/logger"

	"github.com/chzyer/readline"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigPath = "configs/contest_server.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", defaultEnvFile, "Path to .env file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	var rl *readline.Instance
	var logOpts []logger.Option
	if appCfg.Console.Enabled {
		rl, err = console.NewTerminal(appCfg.Console)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init console failed: %v\n", err)
			os.Exit(1)
		}
		logOpts = append(logOpts, logger.WithConsoleWriter(rl.Stdout()))
	}

	if err := logger.Init(appCfg.Logger, logOpts...); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(appCfg, rl); err != nil {
		logger.Error(context.Background(), "contest server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig, rl *readline.Instance) error {
	catalog, err := problem.LoadCatalog(appCfg.Problems.Dir, logger.Named("problems"))
	if err != nil {
		return fmt.Errorf("load problems failed: %w", err)
	}

	fleet := sandbox.NewFleet(sandbox.NodeConfig{
		PollInterval:   appCfg.Sandbox.PollInterval,
		RequestTimeout: appCfg.Sandbox.RequestTimeout,
		RetryMax:       *appCfg.Sandbox.RetryMax,
	}, logger.Named("sandbox"))
	defer fleet.Close()
	loaded, err := fleet.LoadFile(appCfg.Sandbox.File)
	if err != nil {
		return fmt.Errorf("load sandboxes failed: %w", err)
	}
	logger.Info(context.Background(), "sandboxes loaded", zap.Int("count", loaded), zap.Int("problems", catalog.Len()))

	hub := broadcast.NewHub(appCfg.Broadcast, logger.Named("broadcast"))
	defer hub.Close()

	source := problem.Source{Catalog: catalog, Fleet: fleet}
	holder := contestsvc.NewHolder(contestsvc.Config{
		MinNameLength: appCfg.Contest.MinNameLength,
		MaxNameLength: appCfg.Contest.MaxNameLength,
		TickInterval:  appCfg.Contest.TickInterval,
	}, fleet, source, hub, logger.Named("contest"))
	defer holder.Close()

	authService := service.NewAuthService(appCfg.Auth.JWTSecret, appCfg.Auth.JWTIssuer)
	var rateService *service.RateLimitService
	if appCfg.RateLimit.Enabled {
		rateService = service.NewRateLimitService(appCfg.RateLimit)
	}
	contestController := controller.NewContestController(holder, authService, appCfg.Server.MaxCodeBytes)

	httpServer := buildHTTPServer(appCfg, contestController, authService, rateService, hub)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		logger.Info(ctx, "contest server started", zap.String("addr", appCfg.Server.Addr))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	if rl != nil {
		g.Go(func() error {
			con := console.New(appCfg.Console, fleet, holder, source, rl.Stdout(), logger.Named("console"))
			if err := con.Run(ctx, rl); err != nil {
				return err
			}
			stop()
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func buildHTTPServer(cfg *AppConfig, contestController *controller.ContestController, authService *service.AuthService, rateService *service.RateLimitService, hub *broadcast.Hub) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORS))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ws", hub.ServeWS)

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(rateService))
	api.Use(middleware.RequestLogger())
	contestController.Mount(api, middleware.AuthMiddleware(authService, contestController.Known))

	if cfg.Web.Dir != "" {
		router.Static("/ui", cfg.Web.Dir)
	}

	var handler http.Handler = router
	if cfg.Server.Gzip {
		handler = withGzip(router)
	}

	return &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       zap.NewStdLog(logger.Named("http")),
	}
}

// withGzip compresses every response except the websocket upgrade, which needs the raw connection.
func withGzip(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	mux := http.NewServeMux()
	mux.Handle("/ws", next)
	mux.Handle("/", gz)
	return mux
}
