package service

import (
	"context"

	"github.com/google/uuid"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/events"
	"collab-backend/internal/model"
)

// Ledger 참가자 초대/상태 변경
type Ledger struct {
	core
	evaluator *Evaluator
}

// NewLedger Ledger 생성
func NewLedger(d Deps, evaluator *Evaluator) *Ledger {
	return &Ledger{core: newCore(d), evaluator: evaluator}
}

// Invite 참가자 초대 (호스트 전용)
// 이미 초대된 사용자/이메일이면 기존 행을 그대로 돌려주고 created=false
func (l *Ledger) Invite(ctx context.Context, actor access.Actor, meetingID uuid.UUID, in InviteInput) (*model.Participant, bool, error) {
	meeting, _, err := l.load(ctx, actor, meetingID, access.ActionInvite)
	if err != nil {
		return nil, false, err
	}
	if err := in.normalize(); err != nil {
		return nil, false, err
	}
	if meeting.IsTerminal() {
		return nil, false, apperr.BadRequest("meeting has already ended")
	}

	p, created, err := l.Participants.AddParticipant(ctx, in.participant(meetingID))
	if err != nil {
		return nil, false, err
	}

	if created {
		evt := events.Event{Type: events.TypeParticipantInvited, MeetingID: meetingID, Payload: p}
		if p.IsUser() {
			evt.Recipients = []uuid.UUID{*p.UserID}
		}
		l.publish(ctx, evt)
	}
	return p, created, nil
}

// UpdateStatus 참가 상태를 accepted/declined 로 변경
// ref 는 참가 행 id 또는 사용자 id. 본인 또는 호스트만 가능.
func (l *Ledger) UpdateStatus(ctx context.Context, actor access.Actor, meetingID uuid.UUID, ref string, next model.ParticipantStatus) (*model.Participant, error) {
	meeting, member, err := l.load(ctx, actor, meetingID, access.ActionUpdateStatus)
	if err != nil {
		return nil, err
	}
	if next != model.ParticipantStatusAccepted && next != model.ParticipantStatusDeclined {
		return nil, apperr.BadRequest("invalid status: %q", next).
			WithDetail("allowed", []model.ParticipantStatus{model.ParticipantStatusAccepted, model.ParticipantStatusDeclined})
	}

	res, err := ResolveParticipant(ctx, l.Participants, meetingID, ref)
	if err != nil {
		return nil, err
	}
	if !res.Found() {
		return nil, apperr.NotFound("participant not found")
	}
	p := res.Participant

	if err := l.authorize(actor, meeting, member, access.ActionUpdateStatus, p); err != nil {
		return nil, err
	}
	if p.Role == model.ParticipantRoleHost {
		return nil, apperr.BadRequest("the host's participation cannot be changed")
	}
	if p.Status == next {
		return p, nil
	}
	if !p.Status.CanTransitionTo(next) {
		return nil, apperr.BadRequest("cannot change status from %s to %s", p.Status, next)
	}
	if next == model.ParticipantStatusAccepted && meeting.IsTerminal() {
		return nil, apperr.BadRequest("meeting has already ended")
	}

	now := l.Now()
	change := ParticipantChange{Status: next}
	switch {
	case next == model.ParticipantStatusAccepted:
		change.JoinedAt = &now
	case p.Status == model.ParticipantStatusAccepted || p.Status == model.ParticipantStatusJoined:
		change.LeftAt = &now
	}

	updated, err := l.transition(ctx, p, change)
	if err != nil {
		return nil, err
	}

	if next == model.ParticipantStatusDeclined {
		l.evaluate(ctx, meetingID, TriggerLeave)
	}
	return updated, nil
}

// Leave 본인 참가 종료 (accepted → declined + left_at)
func (l *Ledger) Leave(ctx context.Context, actor access.Actor, meetingID uuid.UUID) (*model.Participant, error) {
	_, member, err := l.load(ctx, actor, meetingID, access.ActionLeave)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperr.NotFound("participant not found")
	}
	if member.Role == model.ParticipantRoleHost {
		return nil, apperr.BadRequest("the host cannot leave; end the meeting instead")
	}
	if member.Status.IsTerminal() {
		return member, nil
	}

	change := ParticipantChange{Status: model.ParticipantStatusDeclined}
	if member.Status == model.ParticipantStatusAccepted || member.Status == model.ParticipantStatusJoined {
		now := l.Now()
		change.LeftAt = &now
	}

	updated, err := l.transition(ctx, member, change)
	if err != nil {
		return nil, err
	}
	l.evaluate(ctx, meetingID, TriggerLeave)
	return updated, nil
}

// MarkMissed 초대 응답 없음 처리 (invited 일 때만, 아니면 현재 행 그대로 반환)
func (l *Ledger) MarkMissed(ctx context.Context, actor access.Actor, meetingID uuid.UUID, ref string) (*model.Participant, error) {
	meeting, member, err := l.load(ctx, actor, meetingID, access.ActionMarkMissed)
	if err != nil {
		return nil, err
	}

	res, err := ResolveParticipant(ctx, l.Participants, meetingID, ref)
	if err != nil {
		return nil, err
	}
	if !res.Found() {
		return nil, apperr.NotFound("participant not found")
	}
	if err := l.authorize(actor, meeting, member, access.ActionMarkMissed, res.Participant); err != nil {
		return nil, err
	}
	return l.markMissed(ctx, res.Participant)
}

// markMissed 권한 확인 없이 부재중 처리 (스위퍼 공용)
// 전이가 일어나지 않아도 평가는 다시 돌린다.
func (l *Ledger) markMissed(ctx context.Context, p *model.Participant) (*model.Participant, error) {
	won, err := l.Participants.TransitionParticipant(ctx, p.ID,
		model.ParticipantStatusesFrom(model.ParticipantStatusMissed),
		ParticipantChange{Status: model.ParticipantStatusMissed})
	if err != nil {
		return nil, err
	}

	current, err := l.Participants.GetParticipant(ctx, p.MeetingID, p.ID)
	if err != nil {
		return nil, err
	}
	if won {
		l.Logger.Info("📵 participant missed", "meeting_id", p.MeetingID, "participant_id", p.ID)
		l.publish(ctx, events.Event{Type: events.TypeParticipantStatus, MeetingID: p.MeetingID, Payload: current})
	}

	l.evaluate(ctx, p.MeetingID, TriggerMissed)
	return current, nil
}

// transition 관찰한 상태에서만 전이. 경합에 지면 최신 행이 목표 상태일 때만 성공으로 본다.
func (l *Ledger) transition(ctx context.Context, p *model.Participant, change ParticipantChange) (*model.Participant, error) {
	won, err := l.Participants.TransitionParticipant(ctx, p.ID, []model.ParticipantStatus{p.Status}, change)
	if err != nil {
		return nil, err
	}

	current, err := l.Participants.GetParticipant(ctx, p.MeetingID, p.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		if current.Status == change.Status {
			return current, nil
		}
		return nil, apperr.Conflict("participant status changed concurrently").
			WithDetail("status", current.Status)
	}

	l.publish(ctx, events.Event{Type: events.TypeParticipantStatus, MeetingID: p.MeetingID, Payload: current})
	return current, nil
}

// evaluate 자동 종료 평가. 실패해도 참가자 전이 결과는 유지한다.
func (l *Ledger) evaluate(ctx context.Context, meetingID uuid.UUID, trigger Trigger) {
	var err error
	if trigger == TriggerMissed {
		_, err = l.evaluator.EvaluateMissed(ctx, meetingID)
	} else {
		_, err = l.evaluator.Evaluate(ctx, meetingID)
	}
	if err != nil {
		l.Logger.Error("❌ auto-termination check failed", "meeting_id", meetingID, "error", err)
	}
}

// ListParticipants 미팅 참가자 목록
func (l *Ledger) ListParticipants(ctx context.Context, actor access.Actor, meetingID uuid.UUID) ([]model.Participant, error) {
	if _, _, err := l.load(ctx, actor, meetingID, access.ActionView); err != nil {
		return nil, err
	}
	return l.Participants.ListParticipants(ctx, meetingID)
}

// ParticipantByUser 사용자 id 로 참가 행 조회 (본인 또는 호스트)
func (l *Ledger) ParticipantByUser(ctx context.Context, actor access.Actor, meetingID, userID uuid.UUID) (*model.Participant, error) {
	meeting, _, err := l.load(ctx, actor, meetingID, access.ActionView)
	if err != nil {
		return nil, err
	}
	if userID != actor.UserID && meeting.HostID != actor.UserID {
		return nil, access.Decision{Reason: access.ReasonNotOwner}.Err()
	}
	return l.Participants.FindParticipantByUser(ctx, meetingID, userID)
}

// Invitations 아직 응답하지 않은 초대 목록 (최신순, 진행 중인 미팅만)
func (l *Ledger) Invitations(ctx context.Context, actor access.Actor) ([]model.Participant, error) {
	if actor.Status != model.UserStatusActive {
		return nil, access.Decision{Reason: access.ReasonAccountInactive}.Err()
	}

	rows, err := l.Participants.ListUserParticipations(ctx, actor.UserID, ParticipationFilter{
		Status:         model.ParticipantStatusInvited,
		PreloadMeeting: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Participant, 0, len(rows))
	for _, p := range rows {
		if p.Meeting != nil && p.Meeting.IsTerminal() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
