package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"collab-backend/internal/events"
	"collab-backend/internal/identity"
	"collab-backend/internal/media"
	"collab-backend/internal/model"
)

// MeetingFilter 미팅 목록 필터
type MeetingFilter struct {
	Status model.MeetingStatus
	Type   model.MeetingType
	Limit  int
	Offset int
}

// ParticipationFilter 사용자 참가 행 필터
type ParticipationFilter struct {
	MeetingIDs     []uuid.UUID
	Status         model.ParticipantStatus
	PreloadMeeting bool
}

// ParticipantChange 참가자 상태 전이 시 기록할 값
type ParticipantChange struct {
	Status   model.ParticipantStatus
	JoinedAt *time.Time
	LeftAt   *time.Time
}

// MeetingStore 미팅 저장소
// 찾지 못하면 apperr.NotFound 반환
type MeetingStore interface {
	// CreateMeeting 미팅과 호스트 참가자를 함께 저장
	CreateMeeting(ctx context.Context, meeting *model.Meeting, host *model.Participant) error
	GetMeeting(ctx context.Context, id uuid.UUID) (*model.Meeting, error)
	// ListMeetingsForUser 호스트이거나 참가 행이 있는 미팅 (start_time 내림차순)
	ListMeetingsForUser(ctx context.Context, userID uuid.UUID, filter MeetingFilter) ([]model.Meeting, int64, error)
	// TransitionMeeting 현재 상태가 from 중 하나일 때만 갱신, 갱신 여부 반환
	TransitionMeeting(ctx context.Context, id uuid.UUID, from []model.MeetingStatus, to model.MeetingStatus, endTime *time.Time) (bool, error)
}

// ParticipantStore 참가자 저장소
type ParticipantStore interface {
	// AddParticipant (meeting, user) 또는 (meeting, email) 이 이미 있으면 기존 행과 false 반환
	AddParticipant(ctx context.Context, p *model.Participant) (*model.Participant, bool, error)
	GetParticipant(ctx context.Context, meetingID, id uuid.UUID) (*model.Participant, error)
	FindParticipantByUser(ctx context.Context, meetingID, userID uuid.UUID) (*model.Participant, error)
	ListParticipants(ctx context.Context, meetingID uuid.UUID) ([]model.Participant, error)
	ListUserParticipations(ctx context.Context, userID uuid.UUID, filter ParticipationFilter) ([]model.Participant, error)
	// TransitionParticipant 현재 상태가 from 중 하나일 때만 갱신, 갱신 여부 반환
	TransitionParticipant(ctx context.Context, id uuid.UUID, from []model.ParticipantStatus, change ParticipantChange) (bool, error)
	// ListStaleInvitations 진행 중인 instant 미팅에서 before 이전에 생성된 invited 행
	ListStaleInvitations(ctx context.Context, before time.Time, limit int) ([]model.Participant, error)
}

// ChatStore 회의 채팅 저장소 (회의 종료 시 purge)
type ChatStore interface {
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, meetingID uuid.UUID, limit int) ([]model.ChatMessage, error)
	PurgeMessages(ctx context.Context, meetingID uuid.UUID) (int64, error)
}

// UserStore 사용자 프로필 저장소
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindUserByAuthID(ctx context.Context, authUserID string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, id uuid.UUID, changes UserChanges) error
}

// UserChanges 프로필 부분 수정 (nil 필드는 유지)
type UserChanges struct {
	Name           *string
	Role           *model.UserRole
	Status         *model.UserStatus
	OrganizationID *uuid.UUID
	LastLogin      *time.Time
}

// RoomService 미디어 서버 방 관리
type RoomService interface {
	CreateRoom(ctx context.Context, name string) error
	DeleteRoom(ctx context.Context, name string) error
	ListParticipants(ctx context.Context, name string) ([]media.RoomParticipant, error)
}

// TokenMinter 미디어 접속 토큰 서명
type TokenMinter interface {
	Mint(c media.Claims) (string, error)
}

// Publisher 이벤트 발행
type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// IdentityProvider 외부 인증 제공자
type IdentityProvider interface {
	VerifyCredential(ctx context.Context, token string) (*identity.Account, error)
	IssueCredential(ctx context.Context, email, password string) (*identity.Session, error)
	RefreshCredential(ctx context.Context, refreshToken string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	AdminCreateAccount(ctx context.Context, email, password string, metadata map[string]any) (*identity.Account, error)
	AdminDeleteAccount(ctx context.Context, id string) error
	AdminUpdateMetadata(ctx context.Context, id string, data map[string]any) error
	AdminGenerateLink(ctx context.Context, linkType identity.LinkType, email string) (*identity.Link, error)
}
