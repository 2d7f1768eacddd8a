package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// LocalBus 단일 프로세스용 이벤트 버스 (Redis 미설정 시)
// 느린 구독자는 메시지를 놓칠 수 있음
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewLocalBus 생성자
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan []byte]struct{})}
}

// Publish 이벤트 발행
func (b *LocalBus) Publish(_ context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, topic := range evt.Topics() {
		for ch := range b.subs[topic] {
			select {
			case ch <- data:
			default:
			}
		}
	}
	return nil
}

// Subscribe 채널 구독
func (b *LocalBus) Subscribe(_ context.Context, topic string) (*Subscription, error) {
	ch := make(chan []byte, 32)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan []byte]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return &Subscription{
		Messages: ch,
		close: func() error {
			once.Do(func() {
				b.mu.Lock()
				delete(b.subs[topic], ch)
				if len(b.subs[topic]) == 0 {
					delete(b.subs, topic)
				}
				b.mu.Unlock()
				close(ch)
			})
			return nil
		},
	}, nil
}
