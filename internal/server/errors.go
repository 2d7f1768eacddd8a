package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/apperr"
)

// ErrorResponse 에러 응답 본문
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// sentryHub 요청마다 허브를 복제해 컨텍스트에 심는다
func sentryHub() fiber.Handler {
	return func(c *fiber.Ctx) error {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetTag("method", c.Method())
		hub.Scope().SetTag("path", c.Path())
		if rid, ok := c.Locals("requestid").(string); ok {
			hub.Scope().SetTag("request_id", rid)
		}
		c.SetUserContext(sentry.SetHubOnContext(c.UserContext(), hub))
		return c.Next()
	}
}

// captureError 로그 + Sentry 전송 (허브가 없으면 로그만)
func captureError(ctx context.Context, log *slog.Logger, err error, attrs ...any) {
	log.ErrorContext(ctx, "❌ request failed", append(attrs, "error", err)...)
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	}
}

// errorHandler apperr 종류를 상태 코드로 변환
// 개발 모드가 아니면 내부 에러 상세는 숨긴다.
func errorHandler(log *slog.Logger, development bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := apperr.As(err)
		var fiberErr *fiber.Error
		isFiber := errors.As(err, &fiberErr)

		body := ErrorResponse{Error: appErr.Message}
		if len(appErr.Details) > 0 || appErr.Reason != "" {
			body.Details = make(map[string]any, len(appErr.Details)+1)
			for k, v := range appErr.Details {
				body.Details[k] = v
			}
			if appErr.Reason != "" {
				body.Details["reason"] = appErr.Reason
			}
		}

		if appErr.Kind == apperr.KindInternal && !isFiber {
			captureError(c.UserContext(), log, err, "method", c.Method(), "path", c.Path())
			if development {
				if body.Details == nil {
					body.Details = map[string]any{}
				}
				body.Details["cause"] = err.Error()
			} else {
				body.Details = nil
			}
		}

		status := appErr.Kind.Status()
		if isFiber {
			status = fiberErr.Code
		}
		return c.Status(status).JSON(body)
	}
}
