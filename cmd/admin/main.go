package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/auth"
	"github.com/mesikahq/hospital-ops/internal/config"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

// Bootstraps an admin account in the user store so the API has a
// first login to work from.
func main() {
	username := flag.String("username", "", "Admin username")
	password := flag.String("password", "", "Admin password")
	email := flag.String("email", "", "Admin email")
	flag.Parse()

	if *username == "" || *password == "" || *email == "" {
		log.Fatal("Username, password, and email are required. Use -username, -password, and -email flags")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	auditService, err := audit.NewService(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	userStore, err := dualstore.Open(cfg.Storage.DataDir, "users", auth.Codec())
	if err != nil {
		log.Fatalf("Failed to open user store: %v", err)
	}
	defer userStore.Close()

	authService := auth.NewService(userStore, auditService, auth.Config{
		JWTSecret:    cfg.Auth.JWTSecret,
		TokenExpiry:  cfg.Auth.TokenExpiry,
		RefreshLimit: cfg.Auth.RefreshLimit,
	})

	user, err := authService.Register(context.Background(), *username, *email, *password, []string{"admin"})
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	fmt.Printf("Successfully created admin user:\n")
	fmt.Printf("ID: %s\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Roles: %v\n", user.Roles)
}
