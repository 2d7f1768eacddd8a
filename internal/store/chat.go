package store

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"collab-backend/internal/model"
)

// ChatStore 채팅을 postgres 에 보관 (Redis 미설정 시 사용)
type ChatStore struct {
	*Store
}

func (s *Store) Chat() *ChatStore {
	return &ChatStore{Store: s}
}

func (c *ChatStore) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	return wrap(c.db.WithContext(ctx).Create(msg).Error, "chat message")
}

// ListMessages 최근 limit 개를 오래된 순으로 반환
func (c *ChatStore) ListMessages(ctx context.Context, meetingID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	q := c.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, wrap(err, "chat messages")
	}
	slices.Reverse(messages)
	return messages, nil
}

func (c *ChatStore) PurgeMessages(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	res := c.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Delete(&model.ChatMessage{})
	return res.RowsAffected, wrap(res.Error, "chat messages")
}
