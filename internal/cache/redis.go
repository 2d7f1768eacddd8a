package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
)

// RedisClient Redis 연결 래퍼
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient Redis 연결 생성 (ping 실패 시 에러)
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("✅ Redis connected", "addr", addr)
	return &RedisClient{client: client}, nil
}

// Client 내부 클라이언트 (이벤트 버스 공유용)
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Close 연결 종료
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health 연결 상태 확인
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ChatStore 회의 채팅을 Redis 리스트에 보관
// 회의가 끝나면 purge 되고, 남은 키는 TTL 로 정리된다
type ChatStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChatStore 생성자
func NewChatStore(r *RedisClient, ttl time.Duration) *ChatStore {
	return &ChatStore{client: r.client, ttl: ttl}
}

func chatKey(meetingID uuid.UUID) string {
	return "meeting:" + meetingID.String() + ":chat"
}

// AppendMessage 메시지 추가 (RPUSH)
func (c *ChatStore) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return apperr.Internal(err, "failed to encode chat message")
	}

	key := chatKey(msg.MeetingID)
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal(err, "failed to append chat message")
	}
	return nil
}

// ListMessages 최근 limit 개 (오래된 순), limit <= 0 이면 전체
func (c *ChatStore) ListMessages(ctx context.Context, meetingID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	results, err := c.client.LRange(ctx, chatKey(meetingID), start, -1).Result()
	if err != nil {
		return nil, apperr.Internal(err, "failed to list chat messages")
	}

	messages := make([]model.ChatMessage, 0, len(results))
	for _, data := range results {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			slog.Warn("⚠️ skipping malformed chat entry", "meeting_id", meetingID, "error", err)
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// PurgeMessages 회의의 채팅 전체 삭제, 삭제된 메시지 수 반환
func (c *ChatStore) PurgeMessages(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	key := chatKey(meetingID)

	pipe := c.client.TxPipeline()
	count := pipe.LLen(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, apperr.Internal(err, "failed to purge chat messages")
	}
	return count.Val(), nil
}
