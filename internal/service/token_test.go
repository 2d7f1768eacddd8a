package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/apperr"
	"collab-backend/internal/media"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

func TestGrantsFor(t *testing.T) {
	full := media.Grant{RoomJoin: true, CanPublish: true, CanSubscribe: true, CanPublishData: true}
	viewOnly := full
	viewOnly.CanPublish = false

	assert.Equal(t, viewOnly, service.GrantsFor(model.MeetingTypeWebinar, model.ParticipantRoleAttendee))
	assert.Equal(t, full, service.GrantsFor(model.MeetingTypeWebinar, model.ParticipantRoleHost))
	assert.Equal(t, full, service.GrantsFor(model.MeetingTypeWebinar, model.ParticipantRoleAssistant))
	assert.Equal(t, full, service.GrantsFor(model.MeetingTypeScheduled, model.ParticipantRoleAttendee))
	assert.Equal(t, full, service.GrantsFor(model.MeetingTypeInstant, model.ParticipantRoleAttendee))
}

func TestWebinarTokens(t *testing.T) {
	h := newHarness(t)
	host, attendee := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeWebinar, attendee)

	grant, err := h.tokens.Issue(context.Background(), attendee, m.ID)
	require.NoError(t, err)
	assert.False(t, grant.Grant.CanPublish)
	assert.True(t, grant.Grant.CanSubscribe)
	assert.True(t, grant.Grant.RoomJoin)
	assert.Equal(t, m.RoomName, grant.Grant.Room)
	assert.Equal(t, model.ParticipantRoleAttendee, grant.Role)

	assert.Equal(t, attendee.UserID.String(), h.minter.last.Identity)
	assert.Equal(t, attendee.Name, h.minter.last.Name)
	assert.Equal(t, "token-for-"+attendee.UserID.String(), grant.Token)
	assert.Equal(t, "wss://media.example.com", grant.URL)

	hostGrant, err := h.tokens.Issue(context.Background(), host, m.ID)
	require.NoError(t, err)
	assert.True(t, hostGrant.Grant.CanPublish)
	assert.Equal(t, model.ParticipantRoleHost, hostGrant.Role)
}

func TestTokenActivatesMeetingForGuestsOnly(t *testing.T) {
	h := newHarness(t)
	host, guest := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeInstant, guest)

	_, err := h.tokens.Issue(context.Background(), host, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusScheduled, h.meeting(t, m.ID).Status)

	_, err = h.tokens.Issue(context.Background(), guest, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusActive, h.meeting(t, m.ID).Status)
	assert.Equal(t, []string{m.RoomName}, h.rooms.created)

	_, err = h.tokens.Issue(context.Background(), guest, m.ID)
	require.NoError(t, err)
	assert.Len(t, h.rooms.created, 1, "room is created once")
}

func TestTokenRefusedAfterEnd(t *testing.T) {
	h := newHarness(t)
	host, guest := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)

	_, err := h.registry.End(context.Background(), host, m.ID)
	require.NoError(t, err)

	_, err = h.tokens.Issue(context.Background(), guest, m.ID)
	require.Error(t, err)
	appErr := apperr.As(err)
	assert.Equal(t, apperr.KindForbidden, appErr.Kind)
	assert.Equal(t, "meeting_ended", appErr.Reason)
}

func TestPresence(t *testing.T) {
	h := newHarness(t)
	host := newActor()
	m := h.createMeeting(t, host, model.MeetingTypeInstant)

	list, err := h.tokens.Presence(context.Background(), host, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "someone", list[0].Identity)
}
