// Package service holds the meeting lifecycle use cases: registry, participant
// ledger, auto-termination evaluator, token issuer, chat and accounts.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/events"
	"collab-backend/internal/media"
	"collab-backend/internal/model"
)

// Deps 미팅 계열 서비스가 공유하는 의존성
type Deps struct {
	Meetings     MeetingStore
	Participants ParticipantStore
	Chat         ChatStore
	Rooms        RoomService
	Events       Publisher
	Logger       *slog.Logger

	// ExternalTimeout 미디어 서버/채팅 정리 호출 제한 시간
	ExternalTimeout time.Duration
	Now             func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Rooms == nil {
		d.Rooms = nopRooms{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.ExternalTimeout <= 0 {
		d.ExternalTimeout = 5 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// core 공통 조회/권한 확인
type core struct {
	Deps
}

func newCore(d Deps) core {
	return core{Deps: d.withDefaults()}
}

// membership actor 의 참가 행 (없으면 nil)
func (c core) membership(ctx context.Context, meetingID, userID uuid.UUID) (*model.Participant, error) {
	p, err := c.Participants.FindParticipantByUser(ctx, meetingID, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return p, err
}

// load 미팅과 actor 의 참가 행을 읽고 action 에 대해 권한 확인
func (c core) load(ctx context.Context, actor access.Actor, meetingID uuid.UUID, action access.Action) (*model.Meeting, *model.Participant, error) {
	meeting, err := c.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, nil, err
	}
	member, err := c.membership(ctx, meetingID, actor.UserID)
	if err != nil {
		return nil, nil, err
	}
	if err := c.authorize(actor, meeting, member, action, nil); err != nil {
		return nil, nil, err
	}
	return meeting, member, nil
}

func (c core) authorize(actor access.Actor, meeting *model.Meeting, member *model.Participant, action access.Action, target *model.Participant) error {
	return access.Authorize(access.Request{
		Actor:      actor,
		Meeting:    meeting,
		Action:     action,
		Membership: member,
		Target:     target,
	}).Err()
}

// publish 이벤트 발행 실패는 로그만 남김
func (c core) publish(ctx context.Context, evt events.Event) {
	if evt.At.IsZero() {
		evt.At = c.Now()
	}
	if err := c.Events.Publish(ctx, evt); err != nil {
		c.Logger.Warn("⚠️ failed to publish event", "type", evt.Type, "meeting_id", evt.MeetingID, "error", err)
	}
}

// external 외부 호출용 컨텍스트 (요청 취소와 분리, 시간 제한)
func (c core) external(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.ExternalTimeout)
}

type nopRooms struct{}

func (nopRooms) CreateRoom(context.Context, string) error { return nil }
func (nopRooms) DeleteRoom(context.Context, string) error { return nil }
func (nopRooms) ListParticipants(context.Context, string) ([]media.RoomParticipant, error) {
	return nil, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) error { return nil }
