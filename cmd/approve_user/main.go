package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collab-backend/internal/config"
	"collab-backend/internal/database"
	"collab-backend/internal/identity"
	"collab-backend/internal/model"
	"collab-backend/internal/retry"
	"collab-backend/internal/service"
	"collab-backend/internal/store"
)

// 사용법: go run ./cmd/approve_user -email someone@example.com [-role org_admin] [-org <uuid>]
func main() {
	email := flag.String("email", "", "approve this user")
	role := flag.String("role", "", "optional role: super_admin | org_admin | user")
	org := flag.String("org", "", "optional organization id")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}

	var in service.ApproveInput
	if *role != "" {
		r := model.UserRole(*role)
		if !r.Valid() {
			log.Fatalf("invalid role: %s", *role)
		}
		in.Role = &r
	}
	if *org != "" {
		id, err := uuid.Parse(*org)
		if err != nil {
			log.Fatalf("invalid organization id: %v", err)
		}
		in.OrganizationID = &id
	}

	// 설정 로드 (.env 포함)
	cfg := config.Load()

	db, err := database.ConnectDB(cfg.Database, slog.Default())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Println("Database connected. Approving user...")

	idp := identity.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.ServiceRoleKey, cfg.Supabase.JWTSecret)
	accounts := service.NewAccountService(idp, store.New(db), retry.DefaultPolicy(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := accounts.Approve(ctx, *email, in)
	if err != nil {
		log.Fatalf("Failed to approve user: %v", err)
	}

	log.Printf("✅ %s is now %s (role=%s)", user.Email, user.Status, user.Role)
}
