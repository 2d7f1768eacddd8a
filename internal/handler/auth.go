package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/auth"
	"collab-backend/internal/identity"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

const refreshCookieMaxAge = 7 * 24 * 60 * 60 // 7일

// AuthHandler 인증 핸들러
type AuthHandler struct {
	accounts     *service.AccountService
	secureCookie bool
}

// NewAuthHandler AuthHandler 생성
func NewAuthHandler(accounts *service.AccountService, secureCookie bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, secureCookie: secureCookie}
}

// SignInRequest 로그인 요청
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest 토큰 갱신 요청 (본문이 없으면 쿠키 사용)
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// PasswordResetRequest 비밀번호 재설정 요청
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// UpdateMeRequest 프로필 수정 요청
type UpdateMeRequest struct {
	Name string `json:"name"`
}

// AuthResponse 인증 응답
type AuthResponse struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"access_token,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int         `json:"expires_in,omitempty"`
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, s *identity.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    s.AccessToken,
		Path:     "/",
		MaxAge:   s.ExpiresIn,
		Secure:   h.secureCookie,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	// HTTP-Only 쿠키로 리프레시 토큰 설정
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    s.RefreshToken,
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		Secure:   h.secureCookie,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	for _, name := range []string{"access_token", "refresh_token"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			Secure:   h.secureCookie,
			HTTPOnly: true,
		})
	}
}

func (h *AuthHandler) respond(c *fiber.Ctx, status int, res *service.AuthResult) error {
	out := AuthResponse{User: res.User}
	if res.Session != nil {
		h.setSessionCookies(c, res.Session)
		out.AccessToken = res.Session.AccessToken
		out.RefreshToken = res.Session.RefreshToken
		out.ExpiresIn = res.Session.ExpiresIn
	}
	return c.Status(status).JSON(out)
}

// SignUp 회원가입
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req service.SignUpInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.accounts.SignUp(c.UserContext(), req)
	if err != nil {
		return err
	}
	return h.respond(c, fiber.StatusCreated, res)
}

// SignIn 로그인
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req SignInRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.accounts.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respond(c, fiber.StatusOK, res)
}

// Refresh 토큰 갱신
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies("refresh_token")
	}

	session, err := h.accounts.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		h.clearSessionCookies(c)
		return err
	}
	h.setSessionCookies(c, session)

	return c.JSON(fiber.Map{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"expires_in":    session.ExpiresIn,
	})
}

// SignOut 로그아웃
// 세션이 이미 만료됐어도 쿠키는 지운다. 유효한 토큰이 있을 때만 제공자 세션을 폐기.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	h.clearSessionCookies(c)
	if token := auth.GetTokenFromContext(c); token != "" {
		if err := h.accounts.SignOut(c.UserContext(), token); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{
		"message": "logged out successfully",
	})
}

// RequestPasswordReset 비밀번호 재설정 메일 요청 (가입 여부와 무관하게 200)
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.accounts.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "if the account exists, a reset link has been sent",
	})
}

// GetMe 현재 사용자 정보
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// UpdateMe 표시 이름 변경
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}

	var req UpdateMeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updated, err := h.accounts.UpdateProfile(c.UserContext(), user.ID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}
