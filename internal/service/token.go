package service

import (
	"context"

	"github.com/google/uuid"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/media"
	"collab-backend/internal/model"
)

// TokenGrant 미디어 접속 정보
type TokenGrant struct {
	Token    string                `json:"token"`
	URL      string                `json:"url,omitempty"`
	RoomName string                `json:"room_name"`
	Identity string                `json:"identity"`
	Role     model.ParticipantRole `json:"role"`
	Grant    media.Grant           `json:"grant"`
}

// GrantsFor 미팅 종류와 역할에 따른 권한
// 웨비나 참석자는 시청만 가능하다.
func GrantsFor(meetingType model.MeetingType, role model.ParticipantRole) media.Grant {
	return media.Grant{
		RoomJoin:       true,
		CanPublish:     !(meetingType == model.MeetingTypeWebinar && role == model.ParticipantRoleAttendee),
		CanSubscribe:   true,
		CanPublishData: true,
	}
}

// TokenIssuer 미디어 접속 토큰 발급
type TokenIssuer struct {
	core
	registry *Registry
	minter   TokenMinter
	url      string
}

// NewTokenIssuer TokenIssuer 생성 (url 은 클라이언트가 접속할 미디어 서버 주소)
func NewTokenIssuer(d Deps, registry *Registry, minter TokenMinter, url string) *TokenIssuer {
	return &TokenIssuer{core: newCore(d), registry: registry, minter: minter, url: url}
}

// Issue 토큰 발급
// 참가 행이 없으면 공개 미팅에서만 attendee 로 발급한다. 호스트가 아닌 사람이
// 처음 토큰을 받으면 미팅이 active 로 바뀐다.
func (t *TokenIssuer) Issue(ctx context.Context, actor access.Actor, meetingID uuid.UUID) (*TokenGrant, error) {
	meeting, member, err := t.load(ctx, actor, meetingID, access.ActionJoin)
	if err != nil {
		return nil, err
	}
	if meeting.IsTerminal() {
		return nil, apperr.Forbidden("meeting has already ended").WithReason("meeting_ended")
	}

	role := model.ParticipantRoleAttendee
	if member != nil {
		role = member.Role
	} else if meeting.HostID == actor.UserID {
		role = model.ParticipantRoleHost
	}

	grant := GrantsFor(meeting.Type, role)
	grant.Room = meeting.RoomName

	identity := actor.UserID.String()
	token, err := t.minter.Mint(media.Claims{Identity: identity, Name: actor.Name, Grant: grant})
	if err != nil {
		return nil, apperr.Internal(err, "failed to sign media token")
	}

	if meeting.HostID != actor.UserID {
		if _, err := t.registry.Activate(ctx, meeting); err != nil {
			t.Logger.Warn("⚠️ failed to activate meeting", "meeting_id", meeting.ID, "error", err)
		}
	}

	return &TokenGrant{
		Token:    token,
		URL:      t.url,
		RoomName: meeting.RoomName,
		Identity: identity,
		Role:     role,
		Grant:    grant,
	}, nil
}

// Presence 미디어 방에 실제 접속 중인 사용자
func (t *TokenIssuer) Presence(ctx context.Context, actor access.Actor, meetingID uuid.UUID) ([]media.RoomParticipant, error) {
	meeting, _, err := t.load(ctx, actor, meetingID, access.ActionView)
	if err != nil {
		return nil, err
	}
	if meeting.IsTerminal() {
		return []media.RoomParticipant{}, nil
	}

	ext, cancel := t.external(ctx)
	defer cancel()

	list, err := t.Rooms.ListParticipants(ext, meeting.RoomName)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list room participants")
	}
	if list == nil {
		list = []media.RoomParticipant{}
	}
	return list, nil
}
