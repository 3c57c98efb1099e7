package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "reinf/api/swagger" // swagger docs
	"reinf/internal/auth"
	"reinf/internal/config"
	"reinf/internal/database"
	"reinf/internal/handler"
	"reinf/internal/logger"
	"reinf/internal/metrics"
	"reinf/internal/middleware"
	"reinf/internal/repository"
	"reinf/internal/service"
	"reinf/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           REINF Declaration API
// @version         1.0
// @description     Quarterly profit declarations with a four-stage approval workflow.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLog, err := logger.New(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(cfg.Database, zapLog)
	if err != nil {
		zapLog.Fatal("database connection failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zapLog.Named("ws"))
	go wsHub.Run(ctx)

	m := metrics.New(prometheus.DefaultRegisterer)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Repository -> Service -> Handler
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	regimeRepo := repository.NewRegimeRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)
	txManager := repository.NewTransactionManager(db)

	userService := service.NewUserService(userRepo, roleRepo, auditRepo, txManager, tokens)
	roleService := service.NewRoleService(roleRepo, auditRepo, txManager)
	regimeService := service.NewRegimeService(regimeRepo, companyRepo, auditRepo, txManager)
	companyService := service.NewCompanyService(companyRepo, regimeRepo, entryRepo, auditRepo, txManager)
	entryService := service.NewEntryService(entryRepo, companyRepo, userRepo, auditRepo, txManager, wsHub, m)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(statsRepo)

	if err := bootstrap(ctx, cfg, zapLog, roleService, regimeService, userService); err != nil {
		zapLog.Fatal("bootstrap failed", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(), m.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, tokens)
	})

	authMW := middleware.NewAuth(tokens, userService)
	api := router.Group("")
	handler.NewUserHandler(userService).RegisterRoutes(api, authMW)
	handler.NewAdminOperationsHandler(userService).RegisterRoutes(api, authMW)
	handler.NewRoleHandler(roleService).RegisterRoutes(api, authMW)
	handler.NewRegimeHandler(regimeService).RegisterRoutes(api, authMW)
	handler.NewCompanyHandler(companyService).RegisterRoutes(api, authMW)
	handler.NewEntryHandler(entryService).RegisterRoutes(api, authMW)
	handler.NewAuditHandler(auditService).RegisterRoutes(api, authMW)
	handler.NewStatisticsHandler(statisticsService).RegisterRoutes(api, authMW)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		zapLog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
}

// bootstrap seeds reference data and, when configured, the first administrator
func bootstrap(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	roles service.RoleService,
	regimes service.RegimeService,
	users service.UserService,
) error {
	if err := roles.SeedDefaultRoles(ctx); err != nil {
		return err
	}
	if err := regimes.SeedDefaultRegimes(ctx); err != nil {
		return err
	}
	updated, err := roles.BackfillAuthorities(ctx)
	if err != nil {
		return err
	}
	if updated > 0 {
		log.Info("department authorities backfilled", zap.Int("updated", updated))
	}

	if cfg.Admin.Email == "" {
		return nil
	}
	id, created, err := users.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName)
	if err != nil {
		return err
	}
	log.Info("administrator ready",
		zap.String("email", cfg.Admin.Email),
		zap.String("user_id", id.String()),
		zap.Bool("created", created),
	)
	return nil
}
