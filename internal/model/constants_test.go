package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMeetingStatusTransitions(t *testing.T) {
	tests := []struct {
		from MeetingStatus
		to   MeetingStatus
		want bool
	}{
		{MeetingStatusScheduled, MeetingStatusActive, true},
		{MeetingStatusScheduled, MeetingStatusCancelled, true},
		{MeetingStatusScheduled, MeetingStatusNotAnswered, true},
		{MeetingStatusScheduled, MeetingStatusCompleted, true},
		{MeetingStatusActive, MeetingStatusCompleted, true},
		{MeetingStatusActive, MeetingStatusNotAnswered, false},
		{MeetingStatusActive, MeetingStatusCancelled, false},
		{MeetingStatusActive, MeetingStatusScheduled, false},
		{MeetingStatusCompleted, MeetingStatusActive, false},
		{MeetingStatusCancelled, MeetingStatusScheduled, false},
		{MeetingStatusNotAnswered, MeetingStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestMeetingStatusTerminal(t *testing.T) {
	assert.False(t, MeetingStatusScheduled.IsTerminal())
	assert.False(t, MeetingStatusActive.IsTerminal())
	assert.True(t, MeetingStatusCompleted.IsTerminal())
	assert.True(t, MeetingStatusCancelled.IsTerminal())
	assert.True(t, MeetingStatusNotAnswered.IsTerminal())
	assert.False(t, MeetingStatus("bogus").IsTerminal())

	assert.Equal(t, []MeetingStatus{MeetingStatusActive, MeetingStatusScheduled}, MeetingStatusesFrom(MeetingStatusCompleted))
	assert.Equal(t, []MeetingStatus{MeetingStatusScheduled}, MeetingStatusesFrom(MeetingStatusNotAnswered))
}

func TestParticipantStatusTransitions(t *testing.T) {
	assert.True(t, ParticipantStatusInvited.CanTransitionTo(ParticipantStatusAccepted))
	assert.True(t, ParticipantStatusInvited.CanTransitionTo(ParticipantStatusMissed))
	assert.True(t, ParticipantStatusAccepted.CanTransitionTo(ParticipantStatusDeclined))
	assert.False(t, ParticipantStatusAccepted.CanTransitionTo(ParticipantStatusMissed))
	assert.False(t, ParticipantStatusDeclined.CanTransitionTo(ParticipantStatusAccepted))
	assert.False(t, ParticipantStatusMissed.CanTransitionTo(ParticipantStatusAccepted))

	assert.True(t, ParticipantStatusDeclined.IsTerminal())
	assert.True(t, ParticipantStatusMissed.IsTerminal())
	assert.False(t, ParticipantStatusInvited.IsTerminal())

	assert.Equal(t,
		[]ParticipantStatus{ParticipantStatusAccepted, ParticipantStatusInvited, ParticipantStatusJoined},
		ParticipantStatusesFrom(ParticipantStatusDeclined))
	assert.Equal(t, []ParticipantStatus{ParticipantStatusInvited}, ParticipantStatusesFrom(ParticipantStatusMissed))
}

func TestParticipantIsActive(t *testing.T) {
	uid := uuid.New()
	p := Participant{UserID: &uid, Status: ParticipantStatusAccepted}
	assert.True(t, p.IsActive())
	assert.True(t, p.BelongsTo(uid))
	assert.False(t, p.BelongsTo(uuid.New()))

	p.Status = ParticipantStatusMissed
	assert.False(t, p.IsActive())

	email := "guest@example.com"
	guest := Participant{Email: &email, Status: ParticipantStatusInvited}
	assert.True(t, guest.IsActive())
	assert.False(t, guest.IsUser())
}
