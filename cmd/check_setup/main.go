package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"collab-backend/internal/cache"
	"collab-backend/internal/config"
	"collab-backend/internal/database"
	"collab-backend/internal/storage"
)

var requiredTables = []string{"users", "meetings", "meeting_participants", "chat_messages"}

func main() {
	cfg := config.Load()
	failed := false

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Database
	db, err := database.ConnectDB(cfg.Database, slog.Default())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	for _, table := range requiredTables {
		var exists bool
		query := `
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_name = ?
			)
		`
		if err := db.WithContext(ctx).Raw(query, table).Scan(&exists).Error; err != nil {
			log.Fatal("Failed to check table:", err)
		}
		if exists {
			fmt.Printf("  ✅ table %s\n", table)
		} else {
			fmt.Printf("  ❌ table %s is missing\n", table)
			failed = true
		}
	}

	var indexCount int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM pg_indexes WHERE indexname = ?`, "idx_participants_meeting_email",
	).Scan(&indexCount).Error; err != nil {
		log.Fatal("Failed to check indexes:", err)
	}
	if indexCount > 0 {
		fmt.Println("  ✅ email invitation index")
	} else {
		fmt.Println("  ❌ email invitation index is missing")
		failed = true
	}

	var pending int64
	db.WithContext(ctx).Table("users").Where("status = ?", "pending").Count(&pending)
	fmt.Printf("📊 Users awaiting approval: %d\n", pending)
	fmt.Println()

	// 2. Redis (선택)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			fmt.Printf("❌ Redis: %v\n", err)
			failed = true
		} else {
			fmt.Println("✅ Redis reachable")
			rdb.Close()
		}
	} else {
		fmt.Println("ℹ️ Redis not configured")
	}

	// 3. S3 (선택)
	if cfg.S3.AccessKeyID != "" || cfg.S3.Endpoint != "" {
		signer, err := storage.NewS3Signer(ctx, cfg.S3)
		if err != nil {
			fmt.Printf("❌ S3: %v\n", err)
			failed = true
		} else if _, err := signer.List(ctx, storage.BucketAvatars, ""); err != nil {
			fmt.Printf("⚠️ S3 list on %s failed: %v\n", storage.BucketAvatars, err)
		} else {
			fmt.Println("✅ S3 reachable")
		}
	} else {
		fmt.Println("ℹ️ S3 not configured")
	}

	// 4. Identity / LiveKit 설정값
	if cfg.Supabase.ServiceRoleKey == "" {
		fmt.Println("⚠️ SUPABASE_SERVICE_ROLE_KEY is empty (signup and approval will fail)")
	}
	if cfg.LiveKit.APIKey == "devkey" {
		fmt.Println("⚠️ LIVEKIT_API_KEY is the development default")
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println("🎉 Setup looks good")
}
