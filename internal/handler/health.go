package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger 의존성 연결 확인 함수
type Pinger func(ctx context.Context) error

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	database Pinger
	redis    Pinger
}

// NewHealthHandler HealthHandler 생성 (nil 이면 not_configured)
func NewHealthHandler(database, redis Pinger) *HealthHandler {
	return &HealthHandler{database: database, redis: redis}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

func check(ctx context.Context, ping Pinger, failStatus, failMsg string) ComponentCheck {
	if ping == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentCheck{Status: failStatus, Error: failMsg}
	}
	return ComponentCheck{Status: "healthy", Latency: time.Since(start).String()}
}

// Check 전체 상태 확인 (DB + Redis)
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	// 1. Database 체크
	response.Checks["database"] = check(ctx, h.database, "unhealthy", "database ping failed")
	if response.Checks["database"].Status == "unhealthy" {
		response.Status = "unhealthy"
	}

	// 2. Redis 체크 (없으면 인메모리 버스로 동작하므로 degraded)
	response.Checks["redis"] = check(ctx, h.redis, "degraded", "redis unreachable")

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(response)
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness K8s readiness probe용 (DB 연결 체크)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if h.database == nil {
		return c.SendString("READY")
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.database(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}
