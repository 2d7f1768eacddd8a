package events

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayStopsWhenSubscriberIsGone(t *testing.T) {
	in := make(chan *redis.Message, 4)
	out := make(chan []byte, 1)
	done := make(chan struct{})

	finished := make(chan struct{})
	go func() {
		relay(in, out, done)
		close(finished)
	}()

	// 첫 메시지는 버퍼에, 두 번째는 아무도 읽지 않아 대기
	in <- &redis.Message{Payload: "first"}
	in <- &redis.Message{Payload: "second"}
	require.Eventually(t, func() bool { return len(out) == 1 }, time.Second, 5*time.Millisecond)

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("relay still blocked after close")
	}

	assert.Equal(t, []byte("first"), <-out)
	_, open := <-out
	assert.False(t, open)
}

func TestRelayEndsWithUpstream(t *testing.T) {
	in := make(chan *redis.Message, 1)
	out := make(chan []byte, 1)

	in <- &redis.Message{Payload: "hello"}
	close(in)
	relay(in, out, make(chan struct{}))

	assert.Equal(t, []byte("hello"), <-out)
	_, open := <-out
	assert.False(t, open)
}
