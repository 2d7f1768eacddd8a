package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/events"
	"collab-backend/internal/model"
)

const (
	maxChatContentLen = 10000
	defaultChatLimit  = 100
	maxChatLimit      = 500
)

// ChatService 미팅 채팅
type ChatService struct {
	core
}

// NewChatService ChatService 생성
func NewChatService(d Deps) *ChatService {
	return &ChatService{core: newCore(d)}
}

// Send 메시지 전송 (참가자만, 진행 중인 미팅만)
func (s *ChatService) Send(ctx context.Context, actor access.Actor, meetingID uuid.UUID, content string) (*model.ChatMessage, error) {
	meeting, _, err := s.load(ctx, actor, meetingID, access.ActionChat)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxChatContentLen {
		return nil, apperr.BadRequest("content must be 1-%d characters", maxChatContentLen)
	}
	if meeting.IsTerminal() {
		return nil, apperr.Forbidden("meeting has already ended").WithReason("meeting_ended")
	}

	msg := &model.ChatMessage{
		ID:         uuid.New(),
		MeetingID:  meetingID,
		SenderID:   actor.UserID,
		SenderName: actor.Name,
		Content:    content,
		CreatedAt:  s.Now(),
	}
	if err := s.Chat.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeChatMessage, MeetingID: meetingID, Payload: msg})
	return msg, nil
}

// List 최근 메시지 (오래된 순)
func (s *ChatService) List(ctx context.Context, actor access.Actor, meetingID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	if _, _, err := s.load(ctx, actor, meetingID, access.ActionChat); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = defaultChatLimit
	case limit > maxChatLimit:
		limit = maxChatLimit
	}

	msgs, err := s.Chat.ListMessages(ctx, meetingID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}
