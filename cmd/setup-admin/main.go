// Command setup-admin creates the first administrator, or promotes an
// existing account with the same email. Running it twice is harmless.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"reinf/internal/auth"
	"reinf/internal/config"
	"reinf/internal/database"
	"reinf/internal/logger"
	"reinf/internal/repository"
	"reinf/internal/service"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	email := flag.String("email", "", "administrator email (default: ADMIN_EMAIL)")
	password := flag.String("password", "", "administrator password (default: ADMIN_PASSWORD)")
	fullName := flag.String("name", "", "administrator full name (default: ADMIN_FULL_NAME)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLog, err := logger.New(logger.Config{Level: cfg.Logger.Level, Format: "console"})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	if *email == "" {
		*email = cfg.Admin.Email
	}
	if *password == "" {
		*password = cfg.Admin.Password
	}
	if *fullName == "" {
		*fullName = cfg.Admin.FullName
	}
	if *email == "" || *password == "" {
		zapLog.Fatal("email and password are required (flags or ADMIN_EMAIL / ADMIN_PASSWORD)")
	}

	db, err := database.NewConnection(cfg.Database, zapLog)
	if err != nil {
		zapLog.Fatal("database connection failed", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := service.NewUserService(userRepo, roleRepo, auditRepo, txManager, tokens)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, created, err := userService.EnsureAdmin(ctx, *email, *password, *fullName)
	if err != nil {
		zapLog.Fatal("setup failed", zap.Error(err))
	}
	if created {
		zapLog.Info("administrator created", zap.String("email", *email), zap.String("user_id", id.String()))
		return
	}
	zapLog.Info("administrator already present", zap.String("email", *email), zap.String("user_id", id.String()))
}
