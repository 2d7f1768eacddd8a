package service

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/events"
	"collab-backend/internal/model"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 2000
	maxNameLen        = 255
)

// HostMarker 목록에서 호스트인 미팅에 붙는 참가 상태 값
const HostMarker = "host"

// InviteInput 초대 대상 (UserID 또는 Email 필수)
type InviteInput struct {
	UserID *uuid.UUID            `json:"user_id,omitempty"`
	Email  *string               `json:"email,omitempty"`
	Name   *string               `json:"name,omitempty"`
	Role   model.ParticipantRole `json:"role,omitempty"`
}

func (in *InviteInput) normalize() error {
	if in.UserID != nil && *in.UserID == uuid.Nil {
		in.UserID = nil
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			in.Email = nil
		} else {
			if _, err := mail.ParseAddress(email); err != nil {
				return apperr.BadRequest("invalid email: %s", email)
			}
			in.Email = &email
		}
	}
	if in.UserID == nil && in.Email == nil {
		return apperr.BadRequest("user_id or email is required")
	}
	if in.Role == "" {
		in.Role = model.ParticipantRoleAttendee
	}
	if !in.Role.Valid() || in.Role == model.ParticipantRoleHost {
		return apperr.BadRequest("invalid participant role: %s", in.Role)
	}
	if in.Name != nil && utf8.RuneCountInString(*in.Name) > maxNameLen {
		return apperr.BadRequest("name must be at most %d characters", maxNameLen)
	}
	return nil
}

func (in InviteInput) participant(meetingID uuid.UUID) *model.Participant {
	return &model.Participant{
		MeetingID: meetingID,
		UserID:    in.UserID,
		Email:     in.Email,
		Name:      in.Name,
		Role:      in.Role,
		Status:    model.ParticipantStatusInvited,
	}
}

// CreateMeetingInput 미팅 생성 요청
type CreateMeetingInput struct {
	Title        string            `json:"title"`
	Description  *string           `json:"description,omitempty"`
	StartTime    *time.Time        `json:"start_time,omitempty"`
	Type         model.MeetingType `json:"meeting_type"`
	IsOpen       bool              `json:"is_open"`
	Participants []InviteInput     `json:"participants,omitempty"`
}

func (in *CreateMeetingInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(in.Title); n == 0 || n > maxTitleLen {
		return apperr.BadRequest("title must be 1-%d characters", maxTitleLen)
	}
	if !in.Type.Valid() {
		return apperr.BadRequest("invalid meeting type: %q", in.Type).
			WithDetail("allowed", []model.MeetingType{model.MeetingTypeInstant, model.MeetingTypeScheduled, model.MeetingTypeWebinar})
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > maxDescriptionLen {
		return apperr.BadRequest("description must be at most %d characters", maxDescriptionLen)
	}
	for i := range in.Participants {
		if err := in.Participants[i].normalize(); err != nil {
			return apperr.As(err).WithDetail("index", i)
		}
	}
	return nil
}

// MeetingListItem 목록 항목 (요청자의 참가 상태 포함)
type MeetingListItem struct {
	model.Meeting
	MyStatus string `json:"my_status"`
}

// MeetingPage 목록 응답
type MeetingPage struct {
	Meetings []MeetingListItem `json:"meetings"`
	Total    int64             `json:"total"`
}

// Registry 미팅 생성/조회/종료
type Registry struct {
	core
}

// NewRegistry Registry 생성
func NewRegistry(d Deps) *Registry {
	return &Registry{core: newCore(d)}
}

// roomName 생성 시각 + 랜덤 접미사
func roomName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "meeting-" + now.UTC().Format("20060102150405") + "-" + suffix
}

// Create 미팅 생성
// 호스트 행은 미팅과 함께 저장되고, 초대자는 개별 저장된다. 초대 실패는 로그만 남기고
// 미팅 생성은 성공으로 처리하므로 반환되는 참가자 목록에 일부가 빠질 수 있다.
func (r *Registry) Create(ctx context.Context, actor access.Actor, in CreateMeetingInput) (*model.Meeting, error) {
	if actor.Status != model.UserStatusActive {
		return nil, access.Decision{Reason: access.ReasonAccountInactive}.Err()
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := r.Now()
	start := now
	if in.StartTime != nil && !in.StartTime.IsZero() {
		start = *in.StartTime
	}

	meeting := &model.Meeting{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		StartTime:   start,
		Type:        in.Type,
		Status:      model.MeetingStatusScheduled,
		IsOpen:      in.IsOpen,
		HostID:      actor.UserID,
		RoomName:    roomName(now),
	}
	hostID := actor.UserID
	host := &model.Participant{
		UserID:   &hostID,
		Role:     model.ParticipantRoleHost,
		Status:   model.ParticipantStatusAccepted,
		JoinedAt: &now,
	}
	if actor.Name != "" {
		name := actor.Name
		host.Name = &name
	}

	if err := r.Meetings.CreateMeeting(ctx, meeting, host); err != nil {
		return nil, err
	}
	meeting.Participants = []model.Participant{*host}

	var recipients []uuid.UUID
	for _, inv := range in.Participants {
		p, created, err := r.Participants.AddParticipant(ctx, inv.participant(meeting.ID))
		if err != nil {
			r.Logger.Warn("⚠️ failed to add invitee", "meeting_id", meeting.ID, "error", err)
			continue
		}
		if !created {
			continue
		}
		meeting.Participants = append(meeting.Participants, *p)
		if p.IsUser() {
			recipients = append(recipients, *p.UserID)
		}
	}

	r.Logger.Info("📅 meeting created",
		"meeting_id", meeting.ID, "type", meeting.Type, "host_id", meeting.HostID,
		"invited", len(meeting.Participants)-1)

	r.publish(ctx, events.Event{Type: events.TypeMeetingCreated, MeetingID: meeting.ID, Payload: meeting})
	if len(recipients) > 0 {
		r.publish(ctx, events.Event{
			Type:       events.TypeParticipantInvited,
			MeetingID:  meeting.ID,
			Payload:    meeting,
			Recipients: recipients,
		})
	}
	return meeting, nil
}

// Get 미팅 상세 (참가자 포함)
func (r *Registry) Get(ctx context.Context, actor access.Actor, meetingID uuid.UUID) (*model.Meeting, error) {
	meeting, _, err := r.load(ctx, actor, meetingID, access.ActionView)
	if err != nil {
		return nil, err
	}
	participants, err := r.Participants.ListParticipants(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	meeting.Participants = participants
	return meeting, nil
}

// List 호스트이거나 참가 행이 있는 미팅 목록
func (r *Registry) List(ctx context.Context, actor access.Actor, filter MeetingFilter) (*MeetingPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.BadRequest("invalid status filter: %q", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperr.BadRequest("invalid type filter: %q", filter.Type)
	}

	meetings, total, err := r.Meetings.ListMeetingsForUser(ctx, actor.UserID, filter)
	if err != nil {
		return nil, err
	}

	page := &MeetingPage{Meetings: make([]MeetingListItem, 0, len(meetings)), Total: total}
	if len(meetings) == 0 {
		return page, nil
	}

	ids := make([]uuid.UUID, 0, len(meetings))
	for _, m := range meetings {
		ids = append(ids, m.ID)
	}
	rows, err := r.Participants.ListUserParticipations(ctx, actor.UserID, ParticipationFilter{MeetingIDs: ids})
	if err != nil {
		return nil, err
	}
	statuses := make(map[uuid.UUID]model.ParticipantStatus, len(rows))
	for _, p := range rows {
		statuses[p.MeetingID] = p.Status
	}

	for _, m := range meetings {
		item := MeetingListItem{Meeting: m}
		if m.HostID == actor.UserID {
			item.MyStatus = HostMarker
		} else {
			item.MyStatus = statuses[m.ID].String()
		}
		page.Meetings = append(page.Meetings, item)
	}
	return page, nil
}

// End 미팅 종료 (이미 종료 상태면 현재 상태 그대로 반환)
func (r *Registry) End(ctx context.Context, actor access.Actor, meetingID uuid.UUID) (*model.Meeting, error) {
	meeting, _, err := r.load(ctx, actor, meetingID, access.ActionEnd)
	if err != nil {
		return nil, err
	}
	if meeting.IsTerminal() {
		return meeting, nil
	}
	meeting, _, err = r.Terminate(ctx, meeting, model.MeetingStatusCompleted)
	return meeting, err
}

// Cancel 시작 전 미팅 취소 (end_time 은 기록하지 않음)
func (r *Registry) Cancel(ctx context.Context, actor access.Actor, meetingID uuid.UUID) (*model.Meeting, error) {
	meeting, _, err := r.load(ctx, actor, meetingID, access.ActionCancel)
	if err != nil {
		return nil, err
	}
	if meeting.Status == model.MeetingStatusCancelled {
		return meeting, nil
	}
	if !meeting.Status.CanTransitionTo(model.MeetingStatusCancelled) {
		return nil, apperr.Conflict("meeting is %s and cannot be cancelled", meeting.Status)
	}

	meeting, _, err = r.Terminate(ctx, meeting, model.MeetingStatusCancelled)
	if err != nil {
		return nil, err
	}
	if meeting.Status != model.MeetingStatusCancelled {
		return nil, apperr.Conflict("meeting is %s and cannot be cancelled", meeting.Status)
	}
	return meeting, nil
}

// Terminate 미팅을 종료 상태로 전환
// 조건부 갱신에 성공한 호출만 방 정리/채팅 삭제를 수행한다. 정리 실패는 로그만 남긴다.
// 반환값: 최신 미팅, 이번 호출이 전환했는지 여부
func (r *Registry) Terminate(ctx context.Context, meeting *model.Meeting, status model.MeetingStatus) (*model.Meeting, bool, error) {
	var endTime *time.Time
	if status == model.MeetingStatusCompleted || status == model.MeetingStatusNotAnswered {
		now := r.Now()
		endTime = &now
	}

	won, err := r.Meetings.TransitionMeeting(ctx, meeting.ID, model.MeetingStatusesFrom(status), status, endTime)
	if err != nil {
		return nil, false, err
	}
	if won {
		r.teardown(ctx, meeting)
		r.Logger.Info("🛑 meeting terminated", "meeting_id", meeting.ID, "from", meeting.Status, "to", status)
	}

	current, err := r.Meetings.GetMeeting(ctx, meeting.ID)
	if err != nil {
		return nil, won, err
	}
	if won {
		r.publish(ctx, events.Event{Type: events.TypeMeetingStatus, MeetingID: current.ID, Payload: current})
	}
	return current, won, nil
}

// teardown 미디어 방 닫기 + 채팅 삭제 (best-effort)
// 각 단계는 제한 시간을 따로 가진다.
func (r *Registry) teardown(ctx context.Context, meeting *model.Meeting) {
	roomCtx, cancel := r.external(ctx)
	err := r.Rooms.DeleteRoom(roomCtx, meeting.RoomName)
	cancel()
	if err != nil {
		r.Logger.Warn("⚠️ failed to close media room", "meeting_id", meeting.ID, "room", meeting.RoomName, "error", err)
	}

	chatCtx, cancel := r.external(ctx)
	defer cancel()
	n, err := r.Chat.PurgeMessages(chatCtx, meeting.ID)
	if err != nil {
		r.Logger.Warn("⚠️ failed to purge chat", "meeting_id", meeting.ID, "error", err)
		return
	}
	if n > 0 {
		r.Logger.Debug("chat purged", "meeting_id", meeting.ID, "messages", n)
	}
}

// Activate scheduled 미팅을 active 로 전환하고 미디어 방 생성 (best-effort)
func (r *Registry) Activate(ctx context.Context, meeting *model.Meeting) (*model.Meeting, error) {
	if meeting.Status != model.MeetingStatusScheduled {
		return meeting, nil
	}

	won, err := r.Meetings.TransitionMeeting(ctx, meeting.ID,
		[]model.MeetingStatus{model.MeetingStatusScheduled}, model.MeetingStatusActive, nil)
	if err != nil {
		return nil, err
	}
	if won {
		ext, cancel := r.external(ctx)
		if err := r.Rooms.CreateRoom(ext, meeting.RoomName); err != nil {
			r.Logger.Warn("⚠️ failed to create media room", "meeting_id", meeting.ID, "room", meeting.RoomName, "error", err)
		}
		cancel()
	}

	current, err := r.Meetings.GetMeeting(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}
	if won {
		r.Logger.Info("▶️ meeting activated", "meeting_id", current.ID)
		r.publish(ctx, events.Event{Type: events.TypeMeetingStatus, MeetingID: current.ID, Payload: current})
	}
	return current, nil
}
