package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/auth"
	"collab-backend/internal/events"
	"collab-backend/internal/service"
)

const topicLocal = "eventsTopic"

// EventsWSHandler 미팅/개인 이벤트 WebSocket 핸들러
type EventsWSHandler struct {
	bus      events.Bus
	registry *service.Registry
	log      *slog.Logger

	connected atomic.Int64
}

// EventsWSMessage 클라이언트와 주고받는 메시지
type EventsWSMessage struct {
	Type    string          `json:"type"` // event, ping, pong, error
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewEventsWSHandler EventsWSHandler 생성
func NewEventsWSHandler(bus events.Bus, registry *service.Registry, log *slog.Logger) *EventsWSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventsWSHandler{bus: bus, registry: registry, log: log}
}

// AuthorizeMeeting 업그레이드 전에 미팅 조회 권한 확인 후 구독 채널 지정
func (h *EventsWSHandler) AuthorizeMeeting(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	meetingID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.registry.Get(c.UserContext(), actor, meetingID); err != nil {
		return err
	}
	c.Locals(topicLocal, events.MeetingTopic(meetingID))
	return c.Next()
}

// AuthorizeUser 본인 알림 채널 지정
func (h *EventsWSHandler) AuthorizeUser(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	c.Locals(topicLocal, events.UserTopic(actor.UserID))
	return c.Next()
}

// ConnectedClients 현재 연결 수
func (h *EventsWSHandler) ConnectedClients() int64 {
	return h.connected.Load()
}

// HandleWebSocket 구독한 채널의 이벤트를 그대로 전달
func (h *EventsWSHandler) HandleWebSocket(c *websocket.Conn) {
	// 패닉 복구 - 서버 크래시 방지
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("🔥 events websocket panic recovered", "panic", r)
		}
	}()

	topic, ok := c.Locals(topicLocal).(string)
	if !ok || topic == "" {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"invalid session"}`))
		c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.bus.Subscribe(ctx, topic)
	if err != nil {
		h.log.Error("❌ failed to subscribe", "topic", topic, "error", err)
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"subscription failed"}`))
		c.Close()
		return
	}

	h.connected.Add(1)
	h.log.Info("🔌 events websocket connected", "topic", topic)

	// 쓰기는 한 번에 하나만
	var writeMu sync.Mutex
	write := func(msg EventsWSMessage) error {
		b, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteMessage(websocket.TextMessage, b)
	}

	// 연결 해제 시 정리
	defer func() {
		sub.Close()
		c.Close()
		h.connected.Add(-1)
		h.log.Info("🔌 events websocket disconnected", "topic", topic)
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-sub.Messages:
				if !ok {
					return
				}
				if err := write(EventsWSMessage{Type: "event", Payload: data}); err != nil {
					h.log.Warn("⚠️ failed to forward event", "topic", topic, "error", err)
					cancel()
					return
				}
			}
		}
	}()

	// 연결 유지를 위한 ping/pong 처리
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg EventsWSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := write(EventsWSMessage{Type: "pong"}); err != nil {
				break
			}
		}
	}
}
