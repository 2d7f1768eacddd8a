// Package storetest is a behavioural suite shared by every store
// implementation. Tests only rely on rows they create themselves, so the
// suite can run against a shared database.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// Ports 검사 대상 저장소 묶음
type Ports struct {
	Meetings     service.MeetingStore
	Participants service.ParticipantStore
	Users        service.UserStore
	Chat         service.ChatStore
}

// Run 전체 스위트 실행
func Run(t *testing.T, p Ports) {
	t.Run("meetings", func(t *testing.T) { testMeetings(t, p) })
	t.Run("participants", func(t *testing.T) { testParticipants(t, p) })
	t.Run("stale invitations", func(t *testing.T) { testStaleInvitations(t, p) })
	t.Run("users", func(t *testing.T) { testUsers(t, p) })
	t.Run("chat", func(t *testing.T) { testChat(t, p) })
}

func newMeeting(t *testing.T, p Ports, typ model.MeetingType, start time.Time) (*model.Meeting, *model.Participant) {
	t.Helper()

	hostID := uuid.New()
	m := &model.Meeting{
		Title:     gofakeit.Sentence(3),
		StartTime: start,
		Type:      typ,
		Status:    model.MeetingStatusScheduled,
		HostID:    hostID,
		RoomName:  "meeting-" + uuid.NewString(),
	}
	now := time.Now()
	host := &model.Participant{
		UserID:   &hostID,
		Role:     model.ParticipantRoleHost,
		Status:   model.ParticipantStatusAccepted,
		JoinedAt: &now,
	}
	require.NoError(t, p.Meetings.CreateMeeting(context.Background(), m, host))
	require.NotEqual(t, uuid.Nil, m.ID)
	require.Equal(t, m.ID, host.MeetingID)
	return m, host
}

func invite(t *testing.T, p Ports, meetingID uuid.UUID, userID uuid.UUID) *model.Participant {
	t.Helper()
	uid := userID
	row, created, err := p.Participants.AddParticipant(context.Background(), &model.Participant{
		MeetingID: meetingID,
		UserID:    &uid,
		Role:      model.ParticipantRoleAttendee,
		Status:    model.ParticipantStatusInvited,
	})
	require.NoError(t, err)
	require.True(t, created)
	return row
}

func testMeetings(t *testing.T, p Ports) {
	ctx := context.Background()
	older, host := newMeeting(t, p, model.MeetingTypeScheduled, time.Now().Add(-time.Hour))
	newer, _ := newMeeting(t, p, model.MeetingTypeInstant, time.Now())

	got, err := p.Meetings.GetMeeting(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.RoomName, got.RoomName)
	assert.Equal(t, model.MeetingStatusScheduled, got.Status)

	_, err = p.Meetings.GetMeeting(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// host of "older" is invited to "newer"
	invite(t, p, newer.ID, *host.UserID)

	list, total, err := p.Meetings.ListMeetingsForUser(ctx, *host.UserID, service.MeetingFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest start_time first")

	list, total, err = p.Meetings.ListMeetingsForUser(ctx, *host.UserID, service.MeetingFilter{Type: model.MeetingTypeScheduled})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	list, total, err = p.Meetings.ListMeetingsForUser(ctx, *host.UserID, service.MeetingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	end := time.Now()
	won, err := p.Meetings.TransitionMeeting(ctx, older.ID, model.NonTerminalMeetingStatuses(), model.MeetingStatusCompleted, &end)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = p.Meetings.TransitionMeeting(ctx, older.ID, model.NonTerminalMeetingStatuses(), model.MeetingStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, won, "terminal meetings do not move again")

	got, err = p.Meetings.GetMeeting(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusCompleted, got.Status)
	require.NotNil(t, got.EndTime)
}

func testParticipants(t *testing.T, p Ports) {
	ctx := context.Background()
	m, host := newMeeting(t, p, model.MeetingTypeScheduled, time.Now())

	guestID := uuid.New()
	row := invite(t, p, m.ID, guestID)

	again, created, err := p.Participants.AddParticipant(ctx, &model.Participant{
		MeetingID: m.ID, UserID: &guestID, Role: model.ParticipantRoleAttendee, Status: model.ParticipantStatusInvited,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, row.ID, again.ID)

	email := strings.ToLower(gofakeit.Email())
	byEmail, created, err := p.Participants.AddParticipant(ctx, &model.Participant{
		MeetingID: m.ID, Email: &email, Role: model.ParticipantRoleAttendee, Status: model.ParticipantStatusInvited,
	})
	require.NoError(t, err)
	require.True(t, created)

	upper := strings.ToUpper(email)
	dup, created, err := p.Participants.AddParticipant(ctx, &model.Participant{
		MeetingID: m.ID, Email: &upper, Role: model.ParticipantRoleAttendee, Status: model.ParticipantStatusInvited,
	})
	require.NoError(t, err)
	assert.False(t, created, "email invitations are case-insensitive")
	assert.Equal(t, byEmail.ID, dup.ID)

	all, err := p.Participants.ListParticipants(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := p.Participants.FindParticipantByUser(ctx, m.ID, guestID)
	require.NoError(t, err)
	assert.Equal(t, row.ID, found.ID)

	_, err = p.Participants.GetParticipant(ctx, uuid.New(), row.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "participant lookups are scoped to the meeting")

	now := time.Now()
	won, err := p.Participants.TransitionParticipant(ctx, row.ID,
		[]model.ParticipantStatus{model.ParticipantStatusInvited},
		service.ParticipantChange{Status: model.ParticipantStatusAccepted, JoinedAt: &now})
	require.NoError(t, err)
	assert.True(t, won)

	won, err = p.Participants.TransitionParticipant(ctx, row.ID,
		[]model.ParticipantStatus{model.ParticipantStatusInvited},
		service.ParticipantChange{Status: model.ParticipantStatusMissed})
	require.NoError(t, err)
	assert.False(t, won, "missed after accept is a no-op")

	won, err = p.Participants.TransitionParticipant(ctx, row.ID,
		[]model.ParticipantStatus{model.ParticipantStatusAccepted},
		service.ParticipantChange{Status: model.ParticipantStatusDeclined, LeftAt: &now})
	require.NoError(t, err)
	assert.True(t, won)

	got, err := p.Participants.GetParticipant(ctx, m.ID, row.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusDeclined, got.Status)
	assert.NotNil(t, got.JoinedAt)
	assert.NotNil(t, got.LeftAt)

	rows, err := p.Participants.ListUserParticipations(ctx, *host.UserID, service.ParticipationFilter{PreloadMeeting: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Meeting)
	assert.Equal(t, m.ID, rows[0].Meeting.ID)

	rows, err = p.Participants.ListUserParticipations(ctx, guestID, service.ParticipationFilter{Status: model.ParticipantStatusInvited})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testStaleInvitations(t *testing.T, p Ports) {
	ctx := context.Background()
	call, _ := newMeeting(t, p, model.MeetingTypeInstant, time.Now())
	scheduled, _ := newMeeting(t, p, model.MeetingTypeScheduled, time.Now())

	ringing := invite(t, p, call.ID, uuid.New())
	invite(t, p, scheduled.ID, uuid.New())

	stale, err := p.Participants.ListStaleInvitations(ctx, time.Now().Add(time.Minute), 1000)
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, s := range stale {
		assert.NotEqual(t, scheduled.ID, s.MeetingID, "only instant meetings ring")
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, ringing.ID)

	stale, err = p.Participants.ListStaleInvitations(ctx, time.Now().Add(-time.Hour), 1000)
	require.NoError(t, err)
	for _, s := range stale {
		assert.NotEqual(t, ringing.ID, s.ID, "fresh invitations are not stale")
	}
}

func testUsers(t *testing.T, p Ports) {
	ctx := context.Background()
	email := strings.ToLower(gofakeit.Email())
	u := &model.User{
		AuthUserID: uuid.NewString(),
		Email:      email,
		Name:       gofakeit.Name(),
		Role:       model.UserRoleUser,
		Status:     model.UserStatusPending,
	}
	require.NoError(t, p.Users.CreateUser(ctx, u))

	err := p.Users.CreateUser(ctx, &model.User{AuthUserID: uuid.NewString(), Email: email, Role: model.UserRoleUser, Status: model.UserStatusPending})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	byAuth, err := p.Users.FindUserByAuthID(ctx, u.AuthUserID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byAuth.ID)

	byEmail, err := p.Users.FindUserByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	active := model.UserStatusActive
	name := "Renamed"
	require.NoError(t, p.Users.UpdateUser(ctx, u.ID, service.UserChanges{Status: &active, Name: &name}))

	got, err := p.Users.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusActive, got.Status)
	assert.Equal(t, "Renamed", got.Name)

	err = p.Users.UpdateUser(ctx, uuid.New(), service.UserChanges{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func testChat(t *testing.T, p Ports) {
	ctx := context.Background()
	meetingID := uuid.New()
	sender := uuid.New()

	for i := range 3 {
		require.NoError(t, p.Chat.AppendMessage(ctx, &model.ChatMessage{
			ID:         uuid.New(),
			MeetingID:  meetingID,
			SenderID:   sender,
			SenderName: "sender",
			Content:    gofakeit.Word() + string(rune('a'+i)),
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	last2, err := p.Chat.ListMessages(ctx, meetingID, 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.True(t, last2[0].CreatedAt.Before(last2[1].CreatedAt), "oldest first")

	n, err := p.Chat.PurgeMessages(ctx, meetingID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	empty, err := p.Chat.ListMessages(ctx, meetingID, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
