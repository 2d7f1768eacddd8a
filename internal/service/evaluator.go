package service

import (
	"context"

	"github.com/google/uuid"

	"collab-backend/internal/model"
)

// Trigger 평가를 일으킨 참가자 전이
type Trigger int

const (
	// TriggerLeave 퇴장/거절 이후
	TriggerLeave Trigger = iota
	// TriggerMissed 부재중 처리 이후
	TriggerMissed
)

// Decide 참가자 상태만 보고 미팅을 끝낼지 결정한다.
//
// 호스트는 퇴장 경로가 없으므로 "남은 사람 없음" 판단은 호스트를 제외한 참가자로 한다.
// 1:1 instant 통화(사용자 참가자 2명)는 호스트를 포함해 1명 이하가 남으면 끝난다.
// 1:1 instant 통화에서 부재중이 발생하면 not_answered 로 끝난다.
func Decide(meeting *model.Meeting, participants []model.Participant, trigger Trigger) (model.MeetingStatus, bool) {
	if meeting.IsTerminal() {
		return "", false
	}

	users, active, guests, missed := 0, 0, 0, false
	for i := range participants {
		p := &participants[i]
		if p.IsUser() {
			users++
		}
		if p.Status == model.ParticipantStatusMissed {
			missed = true
		}
		if !p.IsActive() {
			continue
		}
		active++
		if p.Role != model.ParticipantRoleHost {
			guests++
		}
	}

	oneToOne := meeting.Type == model.MeetingTypeInstant && users == 2

	if trigger == TriggerMissed && oneToOne && missed &&
		meeting.Status.CanTransitionTo(model.MeetingStatusNotAnswered) {
		return model.MeetingStatusNotAnswered, true
	}

	if oneToOne && active <= 1 {
		return model.MeetingStatusCompleted, true
	}
	if guests == 0 {
		return model.MeetingStatusCompleted, true
	}
	return "", false
}

// Evaluator 참가자 전이 이후 자동 종료 여부 평가
type Evaluator struct {
	core
	registry *Registry
}

// NewEvaluator Evaluator 생성
func NewEvaluator(d Deps, registry *Registry) *Evaluator {
	return &Evaluator{core: newCore(d), registry: registry}
}

// Evaluate 퇴장/거절 이후 평가
func (e *Evaluator) Evaluate(ctx context.Context, meetingID uuid.UUID) (*model.Meeting, error) {
	return e.run(ctx, meetingID, TriggerLeave)
}

// EvaluateMissed 부재중 처리 이후 평가
func (e *Evaluator) EvaluateMissed(ctx context.Context, meetingID uuid.UUID) (*model.Meeting, error) {
	return e.run(ctx, meetingID, TriggerMissed)
}

func (e *Evaluator) run(ctx context.Context, meetingID uuid.UUID, trigger Trigger) (*model.Meeting, error) {
	meeting, err := e.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.IsTerminal() {
		return meeting, nil
	}

	participants, err := e.Participants.ListParticipants(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	status, ok := Decide(meeting, participants, trigger)
	if !ok {
		return meeting, nil
	}

	e.Logger.Info("auto-terminating meeting", "meeting_id", meeting.ID, "status", status)
	meeting, _, err = e.registry.Terminate(ctx, meeting, status)
	return meeting, err
}
