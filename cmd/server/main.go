package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mesikahq/hospital-ops/internal/api"
	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/auth"
	"github.com/mesikahq/hospital-ops/internal/billing"
	"github.com/mesikahq/hospital-ops/internal/config"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
	"github.com/mesikahq/hospital-ops/internal/medrecord"
	"github.com/mesikahq/hospital-ops/internal/patient"
	"github.com/mesikahq/hospital-ops/internal/provider"
	"github.com/mesikahq/hospital-ops/internal/report"
	"github.com/mesikahq/hospital-ops/internal/schedule"
	"github.com/mesikahq/hospital-ops/internal/seed"
)

func main() {
	seedPath := flag.String("seed", "", "YAML fixture to load before serving")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	// Open the entity stores. Each one keeps a CSV and a JSON file in
	// lockstep under the data directory.
	patientStore, err := dualstore.Open(cfg.Storage.DataDir, "patients", patient.Codec())
	if err != nil {
		logger.Fatal("Failed to open patient store", zap.Error(err))
	}
	defer patientStore.Close()

	providerStore, err := dualstore.Open(cfg.Storage.DataDir, "providers", provider.Codec())
	if err != nil {
		logger.Fatal("Failed to open provider store", zap.Error(err))
	}
	defer providerStore.Close()

	appointmentStore, err := dualstore.Open(cfg.Storage.DataDir, "appointments", schedule.Codec())
	if err != nil {
		logger.Fatal("Failed to open appointment store", zap.Error(err))
	}
	defer appointmentStore.Close()

	billStore, err := dualstore.Open(cfg.Storage.DataDir, "bills", billing.Codec())
	if err != nil {
		logger.Fatal("Failed to open bill store", zap.Error(err))
	}
	defer billStore.Close()

	recordStore, err := dualstore.Open(cfg.Storage.DataDir, "medical_records", medrecord.Codec())
	if err != nil {
		logger.Fatal("Failed to open medical record store", zap.Error(err))
	}
	defer recordStore.Close()

	userStore, err := dualstore.Open(cfg.Storage.DataDir, "users", auth.Codec())
	if err != nil {
		logger.Fatal("Failed to open user store", zap.Error(err))
	}
	defer userStore.Close()

	auditService, err := audit.NewService(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize audit service", zap.Error(err))
	}

	authService := auth.NewService(userStore, auditService, auth.Config{
		JWTSecret:    cfg.Auth.JWTSecret,
		TokenExpiry:  cfg.Auth.TokenExpiry,
		RefreshLimit: cfg.Auth.RefreshLimit,
	})

	patientService := patient.NewService(patientStore, auditService)
	providerService := provider.NewService(providerStore, auditService)
	scheduleManager := schedule.NewManager(appointmentStore, patientService, providerService, auditService)
	billingEngine := billing.NewEngine(billStore, appointmentStore, auditService)
	recordService := medrecord.NewService(recordStore, patientService, auditService)
	reportService := report.NewService(patientStore, providerStore, appointmentStore, billStore, recordStore)

	if *seedPath != "" {
		deps := seed.Deps{
			Patients:  patientService,
			Providers: providerService,
			Schedule:  scheduleManager,
			Records:   recordService,
		}
		if err := seed.Apply(context.Background(), *seedPath, deps); err != nil {
			logger.Fatal("Failed to apply seed data", zap.Error(err))
		}
		logger.Info("Seed data applied", zap.String("path", *seedPath))
	}

	handler := api.NewHandler(
		authService,
		patientService,
		providerService,
		scheduleManager,
		billingEngine,
		recordService,
		reportService,
		auditService,
	)

	router := api.NewRouter(handler, authService, cfg)
	engine := router.SetupRouter(logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
