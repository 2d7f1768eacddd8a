package service

import (
	"context"

	"github.com/google/uuid"

	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
)

// RefKind 참가자 참조가 어떤 id 로 해석됐는지
type RefKind int

const (
	RefNotFound RefKind = iota
	RefParticipantID
	RefUserID
)

func (k RefKind) String() string {
	switch k {
	case RefParticipantID:
		return "participant_id"
	case RefUserID:
		return "user_id"
	default:
		return "not_found"
	}
}

// Resolution 참가자 참조 해석 결과
type Resolution struct {
	Kind        RefKind
	Participant *model.Participant
}

// Found 해석 성공 여부
func (r Resolution) Found() bool {
	return r.Kind != RefNotFound && r.Participant != nil
}

// ResolveParticipant ref 를 참가 행 id 로 먼저 찾고, 없으면 같은 미팅의 사용자 id 로 찾는다.
// 둘 다 없으면 RefNotFound 를 돌려주며 에러로 취급하지 않는다.
func ResolveParticipant(ctx context.Context, store ParticipantStore, meetingID uuid.UUID, ref string) (Resolution, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return Resolution{Kind: RefNotFound}, nil
	}

	p, err := store.GetParticipant(ctx, meetingID, id)
	switch {
	case err == nil:
		return Resolution{Kind: RefParticipantID, Participant: p}, nil
	case !apperr.Is(err, apperr.KindNotFound):
		return Resolution{}, err
	}

	p, err = store.FindParticipantByUser(ctx, meetingID, id)
	switch {
	case err == nil:
		return Resolution{Kind: RefUserID, Participant: p}, nil
	case !apperr.Is(err, apperr.KindNotFound):
		return Resolution{}, err
	}

	return Resolution{Kind: RefNotFound}, nil
}
