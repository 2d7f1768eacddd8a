package media

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"
)

// RoomService LiveKit RoomService 래퍼
type RoomService struct {
	client       *lksdk.RoomServiceClient
	emptyTimeout time.Duration
}

// RoomParticipant 현재 방에 접속 중인 참가자
type RoomParticipant struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	JoinedAt int64  `json:"joined_at"`
}

func NewRoomService(host, apiKey, apiSecret string, emptyTimeout time.Duration) *RoomService {
	return &RoomService{
		client:       lksdk.NewRoomServiceClient(host, apiKey, apiSecret),
		emptyTimeout: emptyTimeout,
	}
}

// CreateRoom 방 생성 (이미 있으면 LiveKit 이 기존 방을 반환)
func (s *RoomService) CreateRoom(ctx context.Context, name string) error {
	_, err := s.client.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         name,
		EmptyTimeout: uint32(s.emptyTimeout / time.Second),
	})
	return err
}

// DeleteRoom 방 종료. 이미 없는 방은 성공으로 취급
func (s *RoomService) DeleteRoom(ctx context.Context, name string) error {
	_, err := s.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if isNotFound(err) {
		return nil
	}
	return err
}

// ListParticipants 방에 접속 중인 참가자 목록
func (s *RoomService) ListParticipants(ctx context.Context, name string) ([]RoomParticipant, error) {
	res, err := s.client.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: name})
	if isNotFound(err) {
		return []RoomParticipant{}, nil
	}
	if err != nil {
		return nil, err
	}

	participants := make([]RoomParticipant, 0, len(res.Participants))
	for _, p := range res.Participants {
		participants = append(participants, RoomParticipant{
			Identity: p.Identity,
			Name:     p.Name,
			JoinedAt: p.JoinedAt,
		})
	}
	return participants, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var twerr twirp.Error
	if errors.As(err, &twerr) {
		return twerr.Code() == twirp.NotFound
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
