package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/access"
	"collab-backend/internal/events"
	"collab-backend/internal/media"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
	"collab-backend/internal/store/memory"
)

type fakeRooms struct {
	mu      sync.Mutex
	created []string
	deleted []string
	failDel error
	// hang 이면 DeleteRoom 이 컨텍스트 만료까지 대기
	hang bool
}

func (f *fakeRooms) CreateRoom(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return nil
}

func (f *fakeRooms) DeleteRoom(ctx context.Context, name string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, name)
	hang, failDel := f.hang, f.failDel
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return failDel
}

func (f *fakeRooms) ListParticipants(context.Context, string) ([]media.RoomParticipant, error) {
	return []media.RoomParticipant{{Identity: "someone", Name: "Someone"}}, nil
}

func (f *fakeRooms) deletedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// deadlineChat 컨텍스트가 만료되면 실패하는 채팅 저장소
type deadlineChat struct {
	service.ChatStore
}

func (c deadlineChat) PurgeMessages(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.ChatStore.PurgeMessages(ctx, meetingID)
}

type fakeMinter struct {
	last media.Claims
}

func (f *fakeMinter) Mint(c media.Claims) (string, error) {
	f.last = c
	return "token-for-" + c.Identity, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, evt events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
	return nil
}

func (b *recordingBus) types() []events.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Type, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store     *memory.Store
	rooms     *fakeRooms
	minter    *fakeMinter
	bus       *recordingBus
	registry  *service.Registry
	evaluator *service.Evaluator
	ledger    *service.Ledger
	tokens    *service.TokenIssuer
	chat      *service.ChatService
	deps      service.Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:  memory.New(),
		rooms:  &fakeRooms{},
		minter: &fakeMinter{},
		bus:    &recordingBus{},
	}
	deps := service.Deps{
		Meetings:        h.store,
		Participants:    h.store,
		Chat:            h.store,
		Rooms:           h.rooms,
		Events:          h.bus,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		ExternalTimeout: time.Second,
	}
	h.deps = deps
	h.registry = service.NewRegistry(deps)
	h.evaluator = service.NewEvaluator(deps, h.registry)
	h.ledger = service.NewLedger(deps, h.evaluator)
	h.tokens = service.NewTokenIssuer(deps, h.registry, h.minter, "wss://media.example.com")
	h.chat = service.NewChatService(deps)
	return h
}

func newActor() access.Actor {
	return access.Actor{
		UserID: uuid.New(),
		Name:   gofakeit.Name(),
		Role:   model.UserRoleUser,
		Status: model.UserStatusActive,
	}
}

func inviteUser(a access.Actor) service.InviteInput {
	id := a.UserID
	return service.InviteInput{UserID: &id}
}

func (h *harness) createMeeting(t *testing.T, host access.Actor, typ model.MeetingType, invitees ...access.Actor) *model.Meeting {
	t.Helper()

	in := service.CreateMeetingInput{Title: gofakeit.Sentence(3), Type: typ}
	for _, a := range invitees {
		in.Participants = append(in.Participants, inviteUser(a))
	}
	m, err := h.registry.Create(context.Background(), host, in)
	require.NoError(t, err)
	require.Len(t, m.Participants, len(invitees)+1)
	return m
}

func (h *harness) meeting(t *testing.T, id uuid.UUID) *model.Meeting {
	t.Helper()
	m, err := h.store.GetMeeting(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (h *harness) participantOf(t *testing.T, meetingID uuid.UUID, a access.Actor) *model.Participant {
	t.Helper()
	p, err := h.store.FindParticipantByUser(context.Background(), meetingID, a.UserID)
	require.NoError(t, err)
	return p
}
