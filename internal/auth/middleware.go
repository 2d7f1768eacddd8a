// Package auth verifies the caller's credential and loads their profile.
package auth

import (
	"context"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
)

const (
	localUser  = "user"
	localToken = "accessToken"
)

// Authenticator 액세스 토큰 → 사용자 프로필
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// extractToken Authorization 헤더 → access_token 쿠키 → (웹소켓만) access_token 쿼리 순
func extractToken(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", apperr.Unauthorized("invalid authorization header format")
		}
		return parts[1], nil
	}
	if token := c.Cookies("access_token"); token != "" {
		return token, nil
	}
	// 브라우저 웹소켓은 헤더를 붙일 수 없음
	if websocket.IsWebSocketUpgrade(c) {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
	}
	return "", apperr.Unauthorized("missing authorization token")
}

// AuthMiddleware 인증 미들웨어 (프로필까지 로드)
func AuthMiddleware(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return err
		}

		user, err := a.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(localUser, user)
		c.Locals(localToken, token)
		return c.Next()
	}
}

// OptionalAuthMiddleware 선택적 인증 미들웨어 (인증 실패해도 계속 진행)
func OptionalAuthMiddleware(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return c.Next()
		}
		if user, err := a.Authenticate(c.UserContext(), token); err == nil {
			c.Locals(localUser, user)
			c.Locals(localToken, token)
		}
		return c.Next()
	}
}

// GetUserFromContext 인증된 사용자 조회
func GetUserFromContext(c *fiber.Ctx) (*model.User, error) {
	user, ok := c.Locals(localUser).(*model.User)
	if !ok || user == nil {
		return nil, apperr.Unauthorized("unauthorized")
	}
	return user, nil
}

// GetTokenFromContext 요청에 사용된 액세스 토큰
func GetTokenFromContext(c *fiber.Ctx) string {
	token, _ := c.Locals(localToken).(string)
	return token
}

// ActorFromContext 권한 판단용 Actor
func ActorFromContext(c *fiber.Ctx) (access.Actor, error) {
	user, err := GetUserFromContext(c)
	if err != nil {
		return access.Actor{}, err
	}
	return access.ActorFromUser(user), nil
}
