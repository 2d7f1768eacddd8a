// Package store implements the service persistence ports on gorm/postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// Store gorm 기반 저장소
type Store struct {
	db *gorm.DB
}

// New Store 생성
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrap(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict("%s already exists", what)
	default:
		return apperr.Internal(err, "failed to access %s", what)
	}
}

// ---- meetings ----

// CreateMeeting 미팅 + 호스트 참가자를 하나의 트랜잭션으로 저장
func (s *Store) CreateMeeting(ctx context.Context, meeting *model.Meeting, host *model.Participant) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(meeting).Error; err != nil {
			return err
		}
		host.MeetingID = meeting.ID
		return tx.Omit(clause.Associations).Create(host).Error
	})
	return wrap(err, "meeting")
}

func (s *Store) GetMeeting(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	var m model.Meeting
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, wrap(err, "meeting")
	}
	return &m, nil
}

func (s *Store) ListMeetingsForUser(ctx context.Context, userID uuid.UUID, filter service.MeetingFilter) ([]model.Meeting, int64, error) {
	base := func() *gorm.DB {
		joined := s.db.Model(&model.Participant{}).Select("meeting_id").Where("user_id = ?", userID)
		q := s.db.WithContext(ctx).Model(&model.Meeting{}).
			Where("host_id = ? OR id IN (?)", userID, joined)
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, wrap(err, "meetings")
	}

	q := base().Order("start_time DESC").Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var meetings []model.Meeting
	if err := q.Find(&meetings).Error; err != nil {
		return nil, 0, wrap(err, "meetings")
	}
	return meetings, total, nil
}

// TransitionMeeting 조건부 상태 갱신 (WHERE status IN from)
func (s *Store) TransitionMeeting(ctx context.Context, id uuid.UUID, from []model.MeetingStatus, to model.MeetingStatus, endTime *time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if endTime != nil {
		updates["end_time"] = *endTime
	}

	res := s.db.WithContext(ctx).Model(&model.Meeting{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, wrap(res.Error, "meeting")
	}
	return res.RowsAffected > 0, nil
}

// ---- participants ----

// AddParticipant 중복이면 기존 행 반환 (ON CONFLICT DO NOTHING)
func (s *Store) AddParticipant(ctx context.Context, p *model.Participant) (*model.Participant, bool, error) {
	if existing, err := s.findExisting(ctx, p); err == nil {
		return existing, false, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}

	res := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return nil, false, wrap(res.Error, "participant")
	}
	if res.RowsAffected == 0 {
		// 동시에 같은 초대가 들어온 경우
		existing, err := s.findExisting(ctx, p)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return p, true, nil
}

func (s *Store) findExisting(ctx context.Context, p *model.Participant) (*model.Participant, error) {
	if p.IsUser() {
		return s.FindParticipantByUser(ctx, p.MeetingID, *p.UserID)
	}
	if p.Email == nil {
		return nil, apperr.NotFound("participant not found")
	}
	var existing model.Participant
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND user_id IS NULL AND lower(email) = lower(?)", p.MeetingID, *p.Email).
		First(&existing).Error
	if err != nil {
		return nil, wrap(err, "participant")
	}
	return &existing, nil
}

func (s *Store) GetParticipant(ctx context.Context, meetingID, id uuid.UUID) (*model.Participant, error) {
	var p model.Participant
	if err := s.db.WithContext(ctx).Where("meeting_id = ? AND id = ?", meetingID, id).First(&p).Error; err != nil {
		return nil, wrap(err, "participant")
	}
	return &p, nil
}

func (s *Store) FindParticipantByUser(ctx context.Context, meetingID, userID uuid.UUID) (*model.Participant, error) {
	var p model.Participant
	if err := s.db.WithContext(ctx).Where("meeting_id = ? AND user_id = ?", meetingID, userID).First(&p).Error; err != nil {
		return nil, wrap(err, "participant")
	}
	return &p, nil
}

func (s *Store) ListParticipants(ctx context.Context, meetingID uuid.UUID) ([]model.Participant, error) {
	var participants []model.Participant
	err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, wrap(err, "participants")
	}
	return participants, nil
}

func (s *Store) ListUserParticipations(ctx context.Context, userID uuid.UUID, filter service.ParticipationFilter) ([]model.Participant, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(filter.MeetingIDs) > 0 {
		q = q.Where("meeting_id IN ?", filter.MeetingIDs)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PreloadMeeting {
		q = q.Preload("Meeting")
	}

	var participants []model.Participant
	if err := q.Order("created_at DESC").Find(&participants).Error; err != nil {
		return nil, wrap(err, "participants")
	}
	return participants, nil
}

// TransitionParticipant 조건부 상태 갱신. left_at 은 한 번만 기록
func (s *Store) TransitionParticipant(ctx context.Context, id uuid.UUID, from []model.ParticipantStatus, change service.ParticipantChange) (bool, error) {
	updates := map[string]any{
		"status":     change.Status,
		"updated_at": time.Now(),
	}
	q := s.db.WithContext(ctx).Model(&model.Participant{}).Where("id = ? AND status IN ?", id, from)
	if change.JoinedAt != nil {
		updates["joined_at"] = *change.JoinedAt
	}
	if change.LeftAt != nil {
		updates["left_at"] = *change.LeftAt
		q = q.Where("left_at IS NULL")
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, wrap(res.Error, "participant")
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListStaleInvitations(ctx context.Context, before time.Time, limit int) ([]model.Participant, error) {
	var participants []model.Participant
	err := s.db.WithContext(ctx).
		Joins("JOIN meetings ON meetings.id = meeting_participants.meeting_id").
		Where("meeting_participants.status = ? AND meeting_participants.created_at < ?", model.ParticipantStatusInvited, before).
		Where("meetings.type = ? AND meetings.status IN ?", model.MeetingTypeInstant, model.NonTerminalMeetingStatuses()).
		Order("meeting_participants.created_at ASC").
		Limit(limit).
		Find(&participants).Error
	if err != nil {
		return nil, wrap(err, "participants")
	}
	return participants, nil
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, wrap(err, "user")
	}
	return &u, nil
}

func (s *Store) FindUserByAuthID(ctx context.Context, authUserID string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("auth_user_id = ?", authUserID).First(&u).Error; err != nil {
		return nil, wrap(err, "user")
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&u).Error; err != nil {
		return nil, wrap(err, "user")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return wrap(s.db.WithContext(ctx).Create(u).Error, "user")
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, changes service.UserChanges) error {
	updates := map[string]any{"updated_at": time.Now()}
	if changes.Name != nil {
		updates["name"] = *changes.Name
	}
	if changes.Role != nil {
		updates["role"] = *changes.Role
	}
	if changes.Status != nil {
		updates["status"] = *changes.Status
	}
	if changes.OrganizationID != nil {
		updates["organization_id"] = *changes.OrganizationID
	}
	if changes.LastLogin != nil {
		updates["last_login"] = *changes.LastLogin
	}

	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return wrap(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
