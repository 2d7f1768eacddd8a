package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/identity"
	"collab-backend/internal/model"
	"collab-backend/internal/retry"
)

const minPasswordLen = 6

// SignUpInput 회원가입 요청
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResult 로그인 결과 (Session 은 가입 직후 로그인에 실패하면 nil)
type AuthResult struct {
	User    *model.User       `json:"user"`
	Session *identity.Session `json:"session,omitempty"`
}

// AccountService 계정/프로필 관련 비즈니스 로직
type AccountService struct {
	identity IdentityProvider
	users    UserStore
	wait     retry.Policy
	log      *slog.Logger
	now      func() time.Time
}

// NewAccountService AccountService 생성
func NewAccountService(idp IdentityProvider, users UserStore, wait retry.Policy, log *slog.Logger) *AccountService {
	if log == nil {
		log = slog.Default()
	}
	return &AccountService{identity: idp, users: users, wait: wait, log: log, now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.BadRequest("invalid email")
	}
	return email, nil
}

// SignUp 회원가입
// 계정 생성 후 DB 트리거가 프로필을 만들 때까지 기다리고, 시간 안에 생기지 않으면
// 직접 만든다. 직접 생성까지 실패하면 계정을 지운다.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.BadRequest("password must be at least %d characters", minPasswordLen)
	}
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, apperr.BadRequest("name must be at most %d characters", maxNameLen)
	}

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	account, err := s.identity.AdminCreateAccount(ctx, email, in.Password, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}

	res, err := retry.WaitFor(ctx, s.wait, func(ctx context.Context) (*model.User, bool, error) {
		u, err := s.users.FindUserByAuthID(ctx, account.ID)
		switch {
		case err == nil:
			return u, true, nil
		case apperr.Is(err, apperr.KindNotFound):
			return nil, false, nil
		default:
			return nil, false, err
		}
	})
	if err != nil {
		s.rollbackAccount(ctx, account.ID)
		return nil, err
	}

	user := res.Value
	if res.Outcome == retry.TimedOut {
		s.log.Warn("⚠️ profile not created by trigger, creating directly", "auth_user_id", account.ID, "attempts", res.Attempts)
		user = &model.User{
			AuthUserID: account.ID,
			Email:      email,
			Name:       name,
			Role:       model.UserRoleUser,
			Status:     model.UserStatusPending,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			s.rollbackAccount(ctx, account.ID)
			return nil, apperr.Internal(err, "failed to create user profile")
		}
	}

	s.log.Info("👤 user signed up", "user_id", user.ID, "status", user.Status)

	session, err := s.identity.IssueCredential(ctx, email, in.Password)
	if err != nil {
		s.log.Warn("⚠️ sign-in after sign-up failed", "user_id", user.ID, "error", err)
		session = nil
	}
	return &AuthResult{User: user, Session: session}, nil
}

func (s *AccountService) rollbackAccount(ctx context.Context, accountID string) {
	if err := s.identity.AdminDeleteAccount(context.WithoutCancel(ctx), accountID); err != nil {
		s.log.Error("❌ failed to roll back identity account", "auth_user_id", accountID, "error", err)
	}
}

// SignIn 이메일/비밀번호 로그인
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperr.BadRequest("password is required")
	}

	session, err := s.identity.IssueCredential(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if session.Account == nil {
		return nil, apperr.Internal(nil, "identity provider returned no account")
	}

	user, err := s.users.FindUserByAuthID(ctx, session.Account.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("user profile not found")
		}
		return nil, err
	}
	if err := checkUsable(user); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateUser(ctx, user.ID, UserChanges{LastLogin: &now}); err != nil {
		s.log.Warn("⚠️ failed to update last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}
	return &AuthResult{User: user, Session: session}, nil
}

// checkUsable 정지/삭제 계정 차단 (pending 은 허용)
func checkUsable(u *model.User) error {
	switch u.Status {
	case model.UserStatusSuspended, model.UserStatusDeleted:
		return apperr.Forbidden("account is %s", u.Status).WithReason(string(access.ReasonAccountInactive))
	}
	return nil
}

// Refresh 토큰 갱신
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	if refreshToken == "" {
		return nil, apperr.BadRequest("refresh_token is required")
	}
	return s.identity.RefreshCredential(ctx, refreshToken)
}

// SignOut 로그아웃
func (s *AccountService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return s.identity.SignOut(ctx, accessToken)
}

// RequestPasswordReset 비밀번호 재설정 링크 요청
// 가입 여부를 노출하지 않도록 제공자 에러는 로그만 남긴다.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.identity.AdminGenerateLink(ctx, identity.LinkRecovery, email); err != nil {
		s.log.Warn("⚠️ password reset link failed", "error", err)
	}
	return nil
}

// Authenticate 액세스 토큰 검증 후 프로필 조회
func (s *AccountService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	account, err := s.identity.VerifyCredential(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByAuthID(ctx, account.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("user profile not found")
		}
		return nil, err
	}
	if err := checkUsable(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile 표시 이름 변경
func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLen {
		return nil, apperr.BadRequest("name must be 1-%d characters", maxNameLen)
	}

	if err := s.users.UpdateUser(ctx, userID, UserChanges{Name: &name}); err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.identity.AdminUpdateMetadata(ctx, user.AuthUserID, map[string]any{"name": name}); err != nil {
		s.log.Warn("⚠️ failed to sync profile metadata", "user_id", userID, "error", err)
	}
	return user, nil
}

// ApproveInput 승인 시 함께 바꿀 값
type ApproveInput struct {
	Role           *model.UserRole
	OrganizationID *uuid.UUID
}

// Approve pending 사용자를 active 로 전환
func (s *AccountService) Approve(ctx context.Context, email string, in ApproveInput) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Status == model.UserStatusDeleted {
		return nil, apperr.Conflict("account is deleted")
	}

	active := model.UserStatusActive
	changes := UserChanges{Status: &active, Role: in.Role, OrganizationID: in.OrganizationID}
	if err := s.users.UpdateUser(ctx, user.ID, changes); err != nil {
		return nil, err
	}

	meta := map[string]any{"status": string(active)}
	if in.Role != nil {
		meta["role"] = string(*in.Role)
	}
	if err := s.identity.AdminUpdateMetadata(ctx, user.AuthUserID, meta); err != nil {
		s.log.Warn("⚠️ failed to sync approval metadata", "user_id", user.ID, "error", err)
	}
	return s.users.GetUser(ctx, user.ID)
}
