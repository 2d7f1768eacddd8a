package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus Redis Pub/Sub 기반 이벤트 버스 (서버 여러 대에서 공유)
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus 생성자
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish 이벤트 발행
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	pipe := b.client.Pipeline()
	for _, topic := range evt.Topics() {
		pipe.Publish(ctx, topic, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe 채널 구독 (구독 확인 후 반환)
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	out := make(chan []byte, 32)
	done := make(chan struct{})
	go relay(ps.Channel(), out, done)

	var once sync.Once
	return &Subscription{
		Messages: out,
		close: func() error {
			once.Do(func() { close(done) })
			return ps.Close()
		},
	}, nil
}

// relay Redis 메시지를 구독 채널로 전달. done 이 닫히면 대기 중이어도 종료.
func relay(in <-chan *redis.Message, out chan<- []byte, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}
