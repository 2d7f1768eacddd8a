// Package events fans meeting lifecycle changes out to live subscribers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type 이벤트 종류
type Type string

const (
	TypeMeetingCreated     Type = "meeting.created"
	TypeMeetingStatus      Type = "meeting.status"
	TypeParticipantInvited Type = "participant.invited"
	TypeParticipantStatus  Type = "participant.status"
	TypeChatMessage        Type = "chat.message"
)

// Event 발행 단위
type Event struct {
	Type      Type      `json:"type"`
	MeetingID uuid.UUID `json:"meeting_id"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`

	// Recipients 개인 채널로도 전달할 사용자 (초대 알림 등)
	Recipients []uuid.UUID `json:"-"`
}

// MeetingTopic 미팅 채널 이름
func MeetingTopic(meetingID uuid.UUID) string {
	return "meeting:" + meetingID.String() + ":events"
}

// UserTopic 사용자 채널 이름
func UserTopic(userID uuid.UUID) string {
	return "user:" + userID.String() + ":events"
}

// Topics 이벤트가 전달될 모든 채널
func (e Event) Topics() []string {
	topics := make([]string, 0, len(e.Recipients)+1)
	if e.MeetingID != uuid.Nil {
		topics = append(topics, MeetingTopic(e.MeetingID))
	}
	for _, id := range e.Recipients {
		topics = append(topics, UserTopic(id))
	}
	return topics
}

// Subscription 구독 핸들
type Subscription struct {
	Messages <-chan []byte
	close    func() error
}

// Close 구독 해제
func (s *Subscription) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Bus 발행/구독 인터페이스
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
}
