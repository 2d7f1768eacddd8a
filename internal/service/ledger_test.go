package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/access"
	"collab-backend/internal/apperr"
	"collab-backend/internal/events"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

func TestInstantCallNotAnswered(t *testing.T) {
	h := newHarness(t)
	host, callee := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeInstant, callee)

	_, err := h.chat.Send(context.Background(), host, m.ID, "are you there?")
	require.NoError(t, err)

	row := h.participantOf(t, m.ID, callee)
	require.Equal(t, model.ParticipantStatusInvited, row.Status)

	got, err := h.ledger.MarkMissed(context.Background(), host, m.ID, row.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusMissed, got.Status)

	meeting := h.meeting(t, m.ID)
	assert.Equal(t, model.MeetingStatusNotAnswered, meeting.Status)
	assert.NotNil(t, meeting.EndTime)
	assert.Equal(t, []string{m.RoomName}, h.rooms.deletedRooms())

	msgs, err := h.store.ListMessages(context.Background(), m.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestScheduledMeetingCompletesWhenEveryoneDeclines(t *testing.T) {
	h := newHarness(t)
	host, a, b := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, a, b)

	_, err := h.ledger.UpdateStatus(context.Background(), a, m.ID, a.UserID.String(), model.ParticipantStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusScheduled, h.meeting(t, m.ID).Status, "one guest still pending")

	_, err = h.ledger.UpdateStatus(context.Background(), b, m.ID, b.UserID.String(), model.ParticipantStatusDeclined)
	require.NoError(t, err)

	meeting := h.meeting(t, m.ID)
	assert.Equal(t, model.MeetingStatusCompleted, meeting.Status)
	assert.NotNil(t, meeting.EndTime)
}

func TestMarkMissedAfterAcceptIsNoop(t *testing.T) {
	h := newHarness(t)
	host, callee := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeInstant, callee)

	accepted, err := h.ledger.UpdateStatus(context.Background(), callee, m.ID, callee.UserID.String(), model.ParticipantStatusAccepted)
	require.NoError(t, err)
	require.NotNil(t, accepted.JoinedAt)

	got, err := h.ledger.MarkMissed(context.Background(), host, m.ID, accepted.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusAccepted, got.Status)
	assert.Equal(t, model.MeetingStatusScheduled, h.meeting(t, m.ID).Status, "live call keeps going")
}

func TestOneToOneCompletesWhenCalleeLeaves(t *testing.T) {
	h := newHarness(t)
	host, callee := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeInstant, callee)

	_, err := h.ledger.UpdateStatus(context.Background(), callee, m.ID, callee.UserID.String(), model.ParticipantStatusAccepted)
	require.NoError(t, err)
	_, err = h.tokens.Issue(context.Background(), callee, m.ID)
	require.NoError(t, err)
	require.Equal(t, model.MeetingStatusActive, h.meeting(t, m.ID).Status)

	left, err := h.ledger.Leave(context.Background(), callee, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusDeclined, left.Status)
	assert.NotNil(t, left.LeftAt)

	assert.Equal(t, model.MeetingStatusCompleted, h.meeting(t, m.ID).Status)
}

func TestGroupInstantCallNeedsEveryoneGone(t *testing.T) {
	h := newHarness(t)
	host, a, b := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeInstant, a, b)

	_, err := h.ledger.Leave(context.Background(), a, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusScheduled, h.meeting(t, m.ID).Status)

	row := h.participantOf(t, m.ID, b)
	_, err = h.ledger.MarkMissed(context.Background(), host, m.ID, row.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusCompleted, h.meeting(t, m.ID).Status, "group calls never become not_answered")
}

func TestConcurrentLeaveAndEndTerminateOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t)
		host, a, b := newActor(), newActor(), newActor()
		m := h.createMeeting(t, host, model.MeetingTypeInstant, a, b)

		var wg sync.WaitGroup
		errs := make(chan error, 3)
		for _, guest := range []access.Actor{a, b} {
			wg.Add(1)
			go func(guest access.Actor) {
				defer wg.Done()
				_, err := h.ledger.Leave(context.Background(), guest, m.ID)
				errs <- err
			}(guest)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.registry.End(context.Background(), host, m.ID)
			errs <- err
		}()
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, model.MeetingStatusCompleted, h.meeting(t, m.ID).Status)
		assert.Equal(t, []string{m.RoomName}, h.rooms.deletedRooms())

		statusEvents := 0
		for _, typ := range h.bus.types() {
			if typ == events.TypeMeetingStatus {
				statusEvents++
			}
		}
		assert.Equal(t, 1, statusEvents)
	}
}

func TestLeaveFromInvitedHasNoLeftAt(t *testing.T) {
	h := newHarness(t)
	host, a, b := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, a, b)

	left, err := h.ledger.Leave(context.Background(), a, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantStatusDeclined, left.Status)
	assert.Nil(t, left.LeftAt)

	again, err := h.ledger.Leave(context.Background(), a, m.ID)
	require.NoError(t, err)
	assert.Equal(t, left.UpdatedAt, again.UpdatedAt, "leaving twice changes nothing")
}

func TestHostCannotLeave(t *testing.T) {
	h := newHarness(t)
	host, guest := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)

	_, err := h.ledger.Leave(context.Background(), host, m.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestInviteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	host, guest := newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled)

	first, created, err := h.ledger.Invite(context.Background(), host, m.ID, inviteUser(guest))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := h.ledger.Invite(context.Background(), host, m.ID, inviteUser(guest))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	email := gofakeit.Email()
	byEmail, created, err := h.ledger.Invite(context.Background(), host, m.ID, service.InviteInput{Email: &email})
	require.NoError(t, err)
	require.True(t, created)
	upper := "  " + strings.ToUpper(email) + " "
	again, created, err := h.ledger.Invite(context.Background(), host, m.ID, service.InviteInput{Email: &upper})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, byEmail.ID, again.ID)

	all, err := h.store.ListParticipants(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	var invited int
	for _, e := range h.bus.events {
		if e.Type == events.TypeParticipantInvited && len(e.Recipients) == 1 && e.Recipients[0] == guest.UserID {
			invited++
		}
	}
	assert.Equal(t, 1, invited, "only the first invite notifies")
}

func TestInviteRules(t *testing.T) {
	h := newHarness(t)
	host, guest, stranger := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)

	_, _, err := h.ledger.Invite(context.Background(), guest, m.ID, inviteUser(stranger))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, _, err = h.ledger.Invite(context.Background(), host, m.ID, service.InviteInput{})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = h.registry.End(context.Background(), host, m.ID)
	require.NoError(t, err)
	_, _, err = h.ledger.Invite(context.Background(), host, m.ID, inviteUser(stranger))
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUpdateStatusRules(t *testing.T) {
	h := newHarness(t)
	host, a, b := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, a, b)
	rowB := h.participantOf(t, m.ID, b)

	t.Run("invalid status", func(t *testing.T) {
		_, err := h.ledger.UpdateStatus(context.Background(), a, m.ID, a.UserID.String(), model.ParticipantStatusMissed)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	})

	t.Run("participant cannot touch another row", func(t *testing.T) {
		_, err := h.ledger.UpdateStatus(context.Background(), a, m.ID, rowB.ID.String(), model.ParticipantStatusAccepted)
		require.Error(t, err)
		assert.Equal(t, "not_owner", apperr.As(err).Reason)
	})

	t.Run("host updates by participant id", func(t *testing.T) {
		got, err := h.ledger.UpdateStatus(context.Background(), host, m.ID, rowB.ID.String(), model.ParticipantStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantStatusAccepted, got.Status)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		got, err := h.ledger.UpdateStatus(context.Background(), b, m.ID, b.UserID.String(), model.ParticipantStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, model.ParticipantStatusAccepted, got.Status)
	})

	t.Run("accepted then declined records left_at", func(t *testing.T) {
		got, err := h.ledger.UpdateStatus(context.Background(), b, m.ID, b.UserID.String(), model.ParticipantStatusDeclined)
		require.NoError(t, err)
		assert.NotNil(t, got.LeftAt)
	})

	t.Run("declined is terminal", func(t *testing.T) {
		_, err := h.ledger.UpdateStatus(context.Background(), b, m.ID, b.UserID.String(), model.ParticipantStatusAccepted)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := h.ledger.UpdateStatus(context.Background(), host, m.ID, newActor().UserID.String(), model.ParticipantStatusAccepted)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("host row is fixed", func(t *testing.T) {
		_, err := h.ledger.UpdateStatus(context.Background(), host, m.ID, host.UserID.String(), model.ParticipantStatusDeclined)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	})
}

func TestStrangerIsForbiddenEverywhere(t *testing.T) {
	h := newHarness(t)
	host, guest, stranger := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)
	row := h.participantOf(t, m.ID, guest)
	ctx := context.Background()

	calls := map[string]func() error{
		"token": func() error { _, err := h.tokens.Issue(ctx, stranger, m.ID); return err },
		"invite": func() error {
			_, _, err := h.ledger.Invite(ctx, stranger, m.ID, inviteUser(stranger))
			return err
		},
		"update status": func() error {
			_, err := h.ledger.UpdateStatus(ctx, stranger, m.ID, row.ID.String(), model.ParticipantStatusDeclined)
			return err
		},
		"leave":        func() error { _, err := h.ledger.Leave(ctx, stranger, m.ID); return err },
		"mark missed":  func() error { _, err := h.ledger.MarkMissed(ctx, stranger, m.ID, row.ID.String()); return err },
		"participants": func() error { _, err := h.ledger.ListParticipants(ctx, stranger, m.ID); return err },
		"chat send":    func() error { _, err := h.chat.Send(ctx, stranger, m.ID, "hi"); return err },
		"chat list":    func() error { _, err := h.chat.List(ctx, stranger, m.ID, 0); return err },
		"end":          func() error { _, err := h.registry.End(ctx, stranger, m.ID); return err },

		// 잘못된 입력이어도 권한 거부가 먼저
		"invite without identifier": func() error {
			_, _, err := h.ledger.Invite(ctx, stranger, m.ID, service.InviteInput{})
			return err
		},
		"update to unknown status": func() error {
			_, err := h.ledger.UpdateStatus(ctx, stranger, m.ID, row.ID.String(), model.ParticipantStatus("bogus"))
			return err
		},
		"empty chat message": func() error { _, err := h.chat.Send(ctx, stranger, m.ID, "  "); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		})
	}

	assert.Equal(t, model.ParticipantStatusInvited, h.participantOf(t, m.ID, guest).Status)
}

func TestParticipantByUser(t *testing.T) {
	h := newHarness(t)
	host, a, b := newActor(), newActor(), newActor()
	m := h.createMeeting(t, host, model.MeetingTypeScheduled, a, b)

	got, err := h.ledger.ParticipantByUser(context.Background(), a, m.ID, a.UserID)
	require.NoError(t, err)
	assert.True(t, got.BelongsTo(a.UserID))

	_, err = h.ledger.ParticipantByUser(context.Background(), host, m.ID, b.UserID)
	require.NoError(t, err)

	_, err = h.ledger.ParticipantByUser(context.Background(), a, m.ID, b.UserID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestInvitations(t *testing.T) {
	h := newHarness(t)
	host, guest := newActor(), newActor()
	pending := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)
	ended := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)
	answered := h.createMeeting(t, host, model.MeetingTypeScheduled, guest)

	_, err := h.registry.End(context.Background(), host, ended.ID)
	require.NoError(t, err)
	_, err = h.ledger.UpdateStatus(context.Background(), guest, answered.ID, guest.UserID.String(), model.ParticipantStatusAccepted)
	require.NoError(t, err)

	got, err := h.ledger.Invitations(context.Background(), guest)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].MeetingID)
	require.NotNil(t, got[0].Meeting)
	assert.Equal(t, pending.Title, got[0].Meeting.Title)
}
