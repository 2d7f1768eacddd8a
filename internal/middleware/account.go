// Package middleware holds account gates layered on top of auth.
package middleware

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/auth"
	"collab-backend/internal/model"
)

// RequireActive 승인된(active) 계정만 통과
func RequireActive() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.GetUserFromContext(c)
		if err != nil {
			return err
		}
		if user.Status != model.UserStatusActive {
			return apperr.Forbidden("account is %s", user.Status).
				WithReason(string(access.ReasonAccountInactive))
		}
		return c.Next()
	}
}

// AllowPending 승인 대기(pending) 계정도 통과 (프로필 조회 등)
func AllowPending() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.GetUserFromContext(c)
		if err != nil {
			return err
		}
		switch user.Status {
		case model.UserStatusActive, model.UserStatusPending:
			return c.Next()
		}
		return apperr.Forbidden("account is %s", user.Status).
			WithReason(string(access.ReasonAccountInactive))
	}
}

// RequireRole 지정한 역할 중 하나 필수
func RequireRole(roles ...model.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.GetUserFromContext(c)
		if err != nil {
			return err
		}
		if !slices.Contains(roles, user.Role) {
			return apperr.Forbidden("insufficient role").WithReason("insufficient_role")
		}
		return c.Next()
	}
}
