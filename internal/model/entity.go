package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 사용자 프로필 (인증 제공자 계정과 1:1)
type User struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AuthUserID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"auth_user_id"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name           string     `gorm:"type:varchar(255)" json:"name"`
	Role           UserRole   `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Status         UserStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DisplayName 표시 이름 (이름이 없으면 이메일)
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Meeting 회의
type Meeting struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string        `gorm:"type:varchar(255);not null" json:"title"`
	Description *string       `gorm:"type:text" json:"description,omitempty"`
	StartTime   time.Time     `gorm:"not null" json:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	Type        MeetingType   `gorm:"type:varchar(20);not null;index:idx_meetings_status_type,priority:2" json:"meeting_type"`
	Status      MeetingStatus `gorm:"type:varchar(20);not null;index:idx_meetings_status_type,priority:1" json:"status"`
	IsOpen      bool          `gorm:"not null;default:false" json:"is_open"`
	HostID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"host_id"`
	RoomName    string        `gorm:"type:varchar(128);uniqueIndex;not null" json:"room_name"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Participants []Participant `gorm:"foreignKey:MeetingID" json:"participants,omitempty"`
}

func (Meeting) TableName() string {
	return "meetings"
}

func (m *Meeting) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsTerminal 종료 상태 여부
func (m *Meeting) IsTerminal() bool {
	return m.Status.IsTerminal()
}

// Participant 회의 참가자
// 등록 사용자(UserID) 또는 외부 초대자(Email) 중 하나는 반드시 존재
type Participant struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	MeetingID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_participants_meeting_user,priority:1" json:"meeting_id"`
	UserID    *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_participants_meeting_user,priority:2;index:idx_participants_user_status,priority:1" json:"user_id,omitempty"`
	Email     *string           `gorm:"type:varchar(255)" json:"email,omitempty"`
	Name      *string           `gorm:"type:varchar(255)" json:"name,omitempty"`
	Role      ParticipantRole   `gorm:"type:varchar(20);not null;default:'attendee'" json:"role"`
	Status    ParticipantStatus `gorm:"type:varchar(20);not null;default:'invited';index:idx_participants_user_status,priority:2" json:"status"`
	JoinedAt  *time.Time        `json:"joined_at,omitempty"`
	LeftAt    *time.Time        `json:"left_at,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Meeting *Meeting `gorm:"foreignKey:MeetingID" json:"meeting,omitempty"`
}

func (Participant) TableName() string {
	return "meeting_participants"
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsUser 등록 사용자 참가자 여부 (이메일 초대자는 false)
func (p *Participant) IsUser() bool {
	return p.UserID != nil && *p.UserID != uuid.Nil
}

// BelongsTo 해당 사용자의 참가자 행인지 확인
func (p *Participant) BelongsTo(userID uuid.UUID) bool {
	return p.IsUser() && *p.UserID == userID
}

// IsActive 아직 회의에 남아있는 참가자인지 (거절/부재중 아님, 퇴장 기록 없음)
func (p *Participant) IsActive() bool {
	return p.Status != ParticipantStatusDeclined &&
		p.Status != ParticipantStatusMissed &&
		p.LeftAt == nil
}

// ChatMessage 회의 채팅 (회의 종료 시 일괄 삭제)
type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MeetingID  uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_meeting_created,priority:1" json:"meeting_id"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	SenderName string    `gorm:"type:varchar(255);not null" json:"sender_name"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_chat_meeting_created,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
