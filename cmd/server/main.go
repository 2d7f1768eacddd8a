package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"collab-backend/internal/cache"
	"collab-backend/internal/config"
	"collab-backend/internal/database"
	"collab-backend/internal/events"
	"collab-backend/internal/handler"
	"collab-backend/internal/identity"
	"collab-backend/internal/media"
	"collab-backend/internal/retry"
	"collab-backend/internal/server"
	"collab-backend/internal/service"
	"collab-backend/internal/storage"
	"collab-backend/internal/store"
	"collab-backend/internal/store/memory"
)

// stores 드라이버별 저장소 묶음
type stores struct {
	meetings     service.MeetingStore
	participants service.ParticipantStore
	users        service.UserStore
	chat         service.ChatStore
	ping         handler.Pinger
	close        func()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openStores(cfg *config.Config, log *slog.Logger) stores {
	if cfg.Server.StoreDriver == "memory" {
		log.Warn("⚠️ Using in-memory store (data is lost on restart)")
		m := memory.New()
		return stores{meetings: m, participants: m, users: m, chat: m, close: func() {}}
	}

	// 데이터베이스 연결
	db, err := database.ConnectDB(cfg.Database, log)
	if err != nil {
		log.Error("❌ Database connection failed", "error", err)
		os.Exit(1)
	}

	// Ping 테스트
	if err := database.Ping(); err != nil {
		log.Error("❌ Database ping failed", "error", err)
		os.Exit(1)
	}
	log.Info("✅ Database connected successfully")

	s := store.New(db)
	return stores{
		meetings:     s,
		participants: s,
		users:        s,
		chat:         s.Chat(),
		ping:         func(context.Context) error { return database.Ping() },
		close: func() {
			if err := database.Close(); err != nil {
				log.Warn("⚠️ Database close failed", "error", err)
			}
		},
	}
}

func main() {
	// 설정 로드
	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)

	// Sentry (DSN 이 있을 때만)
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Server.Environment,
			EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			log.Warn("⚠️ Sentry initialization failed", "error", err)
		} else {
			log.Info("✅ Sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	st := openStores(cfg, log)
	defer st.close()

	// Redis (선택적): 이벤트 버스 + 채팅 캐시
	var bus events.Bus = events.NewLocalBus()
	var redisPing handler.Pinger
	chat := st.chat
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("⚠️ Redis unavailable, falling back to in-process events", "error", err)
		} else {
			defer rdb.Close()
			bus = events.NewRedisBus(rdb.Client())
			chat = cache.NewChatStore(rdb, cfg.Redis.ChatTTL)
			redisPing = rdb.Health
		}
	} else {
		log.Info("ℹ️ Redis not configured (events stay in-process)")
	}

	// LiveKit
	rooms := media.NewRoomService(cfg.LiveKit.Host, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.EmptyTimeout)
	minter := media.NewTokenMinter(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)

	deps := service.Deps{
		Meetings:        st.meetings,
		Participants:    st.participants,
		Chat:            chat,
		Rooms:           rooms,
		Events:          bus,
		Logger:          log,
		ExternalTimeout: cfg.Meeting.ExternalTimeout,
	}
	registry := service.NewRegistry(deps)
	evaluator := service.NewEvaluator(deps, registry)
	ledger := service.NewLedger(deps, evaluator)
	tokens := service.NewTokenIssuer(deps, registry, minter, cfg.LiveKit.Host)
	chatSvc := service.NewChatService(deps)

	// 인증 제공자
	idp := identity.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.ServiceRoleKey, cfg.Supabase.JWTSecret)
	wait := retry.DefaultPolicy()
	wait.MaxRetries = cfg.Signup.ProfileWaitRetries
	wait.InitialInterval = cfg.Signup.ProfileWaitInterval
	accounts := service.NewAccountService(idp, st.users, wait, log)

	// S3 서비스 초기화 (선택적)
	var storageSvc *storage.Service
	if cfg.S3.AccessKeyID != "" || cfg.S3.Endpoint != "" {
		signer, err := storage.NewS3Signer(context.Background(), cfg.S3)
		if err != nil {
			log.Warn("⚠️ S3 initialization failed (storage routes disabled)", "error", err)
		} else {
			storageSvc = storage.NewService(signer)
			log.Info("✅ S3 signer initialized", "region", cfg.S3.Region)
		}
	} else {
		log.Info("ℹ️ S3 not configured (storage routes disabled)")
	}

	// 링 타임아웃 스위퍼
	sweeper := service.NewSweeper(ledger, cfg.Meeting.SweepInterval, cfg.Meeting.RingTimeout)
	go sweeper.Start()

	// 서버 생성 및 설정
	srv := server.New(cfg, server.Handlers{
		Auth:    handler.NewAuthHandler(accounts, cfg.Supabase.SecureCookie),
		Meeting: handler.NewMeetingHandler(registry, ledger, tokens, chatSvc),
		Storage: handler.NewStorageHandler(storageSvc),
		Health:  handler.NewHealthHandler(st.ping, redisPing),
		Events:  handler.NewEventsWSHandler(bus, registry, log),
	}, accounts, log)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(sweeper.Stop); err != nil {
		log.Error("Server failed to start", "error", err)
		sweeper.Stop()
		os.Exit(1)
	}
}
