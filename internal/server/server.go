package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"collab-backend/internal/auth"
	"collab-backend/internal/config"
	"collab-backend/internal/handler"
	"collab-backend/internal/middleware"
	"collab-backend/internal/model"
)

// Handlers 라우트에 연결할 핸들러 묶음
type Handlers struct {
	Auth    *handler.AuthHandler
	Meeting *handler.MeetingHandler
	Storage *handler.StorageHandler
	Health  *handler.HealthHandler
	Events  *handler.EventsWSHandler
}

// Server Fiber 서버 래퍼
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	log      *slog.Logger
	handlers Handlers
	authn    auth.Authenticator
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, handlers Handlers, authn auth.Authenticator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "Collab Meeting Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         false,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384, // 16KB - 큰 헤더 허용
		WriteBufferSize:       16384,
		BodyLimit:             1 * 1024 * 1024, // 1MB
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log, cfg.IsDevelopment()),
	})

	return &Server{
		app:      app,
		cfg:      cfg,
		log:      log,
		handlers: handlers,
		authn:    authn,
	}
}

// App 내부 fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.cfg.IsDevelopment(),
	}))

	s.app.Use(requestid.New())
	s.app.Use(sentryHub())

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	h := s.handlers
	requireAuth := auth.AuthMiddleware(s.authn)

	// 헬스체크 엔드포인트
	s.app.Get("/health", h.Health.Liveness)
	s.app.Get("/health/ready", h.Health.Readiness)
	s.app.Get("/health/check", h.Health.Check)

	// Rate Limiter 설정 (인증 엔드포인트용 - Brute Force 방지)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,              // 최대 10회
		Expiration: 1 * time.Minute, // 1분당
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // IP 기반 제한
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Post("/signup", authLimiter, h.Auth.SignUp)
	authGroup.Post("/signin", authLimiter, h.Auth.SignIn)
	authGroup.Post("/refresh", authLimiter, h.Auth.Refresh)
	authGroup.Post("/password-reset", authLimiter, h.Auth.RequestPasswordReset)
	authGroup.Post("/signout", auth.OptionalAuthMiddleware(s.authn), h.Auth.SignOut)
	authGroup.Get("/me", requireAuth, middleware.AllowPending(), h.Auth.GetMe)
	authGroup.Patch("/me", requireAuth, middleware.AllowPending(), h.Auth.UpdateMe)

	// Meeting 라우트 그룹 (승인된 사용자만)
	meetings := s.app.Group("/meetings", requireAuth, middleware.RequireActive())
	meetings.Post("/", h.Meeting.CreateMeeting)
	meetings.Get("/", h.Meeting.ListMeetings)
	meetings.Get("/participants/invited", h.Meeting.GetInvitations) // /:id 보다 먼저 등록
	meetings.Get("/:id", h.Meeting.GetMeeting)
	meetings.Post("/:id/token", h.Meeting.IssueToken)
	meetings.Get("/:id/presence", h.Meeting.GetPresence)
	meetings.Post("/:id/invite", h.Meeting.Invite)
	meetings.Get("/:id/participants", h.Meeting.ListParticipants)
	meetings.Get("/:id/participants/by-user/:userId", h.Meeting.GetParticipantByUser)
	meetings.Patch("/:id/participants/:ref/status", h.Meeting.UpdateParticipantStatus)
	meetings.Post("/:id/participants/:ref/missed", h.Meeting.MarkMissed)
	meetings.Post("/:id/leave", h.Meeting.Leave)
	meetings.Post("/:id/end", h.Meeting.EndMeeting)
	meetings.Post("/:id/cancel", h.Meeting.CancelMeeting)
	meetings.Post("/:id/chat", h.Meeting.SendChat)
	meetings.Get("/:id/chat", h.Meeting.GetChat)

	// Storage 라우트 그룹
	storageGroup := s.app.Group("/storage", requireAuth, middleware.RequireActive())
	storageGroup.Post("/upload-url", h.Storage.CreateUploadURL)
	storageGroup.Post("/url", h.Storage.CreateSignedURL)
	storageGroup.Get("/list/:bucket", h.Storage.ListFiles)

	// 운영자용 (super_admin)
	admin := s.app.Group("/admin", requireAuth, middleware.RequireActive(), middleware.RequireRole(model.UserRoleSuperAdmin))
	admin.Get("/ws/clients", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"connected": h.Events.ConnectedClients()})
	})

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	wsConfig := websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	// 미팅 이벤트 (조회 권한 필요)
	s.app.Get("/ws/meetings/:id/events",
		requireAuth, middleware.RequireActive(), h.Events.AuthorizeMeeting,
		websocket.New(h.Events.HandleWebSocket, wsConfig))

	// 개인 알림 (초대 등)
	s.app.Get("/ws/notifications",
		requireAuth, middleware.RequireActive(), h.Events.AuthorizeUser,
		websocket.New(h.Events.HandleWebSocket, wsConfig))
}

// Start 서버 시작 (Graceful Shutdown 지원)
// 종료 시그널을 받으면 onShutdown 을 실행한 뒤 리스너를 닫는다.
func (s *Server) Start(onShutdown func()) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info("🛑 Shutting down server...")
		if onShutdown != nil {
			onShutdown()
		}
		if err := s.Shutdown(); err != nil {
			s.log.Error("server shutdown error", "error", err)
		}
	}()

	s.log.Info("🚀 Collab meeting backend starting", "port", s.cfg.Server.Port)
	s.log.Info("📡 WebSocket endpoint", "url", "ws://localhost"+s.cfg.Server.Port+"/ws/meetings/:id/events")

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
