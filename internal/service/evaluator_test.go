package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

func row(role model.ParticipantRole, status model.ParticipantStatus) model.Participant {
	uid := uuid.New()
	return model.Participant{ID: uuid.New(), UserID: &uid, Role: role, Status: status}
}

func guestRow(status model.ParticipantStatus) model.Participant {
	return row(model.ParticipantRoleAttendee, status)
}

func hostRow() model.Participant {
	return row(model.ParticipantRoleHost, model.ParticipantStatusAccepted)
}

func emailRow(status model.ParticipantStatus) model.Participant {
	email := "guest@example.com"
	return model.Participant{ID: uuid.New(), Email: &email, Role: model.ParticipantRoleAttendee, Status: status}
}

func TestDecide(t *testing.T) {
	left := time.Now()
	leftRow := guestRow(model.ParticipantStatusAccepted)
	leftRow.LeftAt = &left

	tests := []struct {
		name         string
		typ          model.MeetingType
		status       model.MeetingStatus
		participants []model.Participant
		trigger      service.Trigger
		want         model.MeetingStatus
		wantEnd      bool
	}{
		{
			name:         "1:1 callee declined",
			typ:          model.MeetingTypeInstant,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusDeclined)},
			want:         model.MeetingStatusCompleted, wantEnd: true,
		},
		{
			name:         "1:1 callee still accepted",
			typ:          model.MeetingTypeInstant,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusAccepted)},
			trigger:      service.TriggerMissed,
		},
		{
			name:         "1:1 callee missed",
			typ:          model.MeetingTypeInstant,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusMissed)},
			trigger:      service.TriggerMissed,
			want:         model.MeetingStatusNotAnswered, wantEnd: true,
		},
		{
			name:         "1:1 missed seen by leave trigger completes",
			typ:          model.MeetingTypeInstant,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusMissed)},
			want:         model.MeetingStatusCompleted, wantEnd: true,
		},
		{
			name:         "1:1 missed on active call completes",
			typ:          model.MeetingTypeInstant,
			status:       model.MeetingStatusActive,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusMissed)},
			trigger:      service.TriggerMissed,
			want:         model.MeetingStatusCompleted, wantEnd: true,
		},
		{
			name:         "1:1 callee left after joining",
			typ:          model.MeetingTypeInstant,
			status:       model.MeetingStatusActive,
			participants: []model.Participant{hostRow(), leftRow},
			want:         model.MeetingStatusCompleted, wantEnd: true,
		},
		{
			name: "group instant with one guest left",
			typ:  model.MeetingTypeInstant,
			participants: []model.Participant{
				hostRow(), guestRow(model.ParticipantStatusMissed), guestRow(model.ParticipantStatusInvited),
			},
			trigger: service.TriggerMissed,
		},
		{
			name: "email invitees do not count as users",
			typ:  model.MeetingTypeInstant,
			participants: []model.Participant{
				hostRow(), guestRow(model.ParticipantStatusMissed), emailRow(model.ParticipantStatusInvited),
			},
			trigger: service.TriggerMissed,
			want:    model.MeetingStatusNotAnswered, wantEnd: true,
		},
		{
			name: "email invitee keeps a scheduled meeting open",
			typ:  model.MeetingTypeScheduled,
			participants: []model.Participant{
				hostRow(), guestRow(model.ParticipantStatusDeclined), emailRow(model.ParticipantStatusInvited),
			},
		},
		{
			name: "scheduled with everyone declined",
			typ:  model.MeetingTypeScheduled,
			participants: []model.Participant{
				hostRow(), guestRow(model.ParticipantStatusDeclined), guestRow(model.ParticipantStatusDeclined),
			},
			want: model.MeetingStatusCompleted, wantEnd: true,
		},
		{
			name:         "scheduled 1:1 missed never becomes not_answered",
			typ:          model.MeetingTypeScheduled,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusMissed)},
			trigger:      service.TriggerMissed,
			want:         model.MeetingStatusCompleted, wantEnd: true,
		},
		{
			name: "webinar with an attendee left",
			typ:  model.MeetingTypeWebinar,
			participants: []model.Participant{
				hostRow(), guestRow(model.ParticipantStatusDeclined), guestRow(model.ParticipantStatusAccepted),
			},
		},
		{
			name:         "terminal meeting is left alone",
			typ:          model.MeetingTypeInstant,
			status:       model.MeetingStatusCancelled,
			participants: []model.Participant{hostRow(), guestRow(model.ParticipantStatusDeclined)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.status
			if status == "" {
				status = model.MeetingStatusScheduled
			}
			m := &model.Meeting{ID: uuid.New(), Type: tt.typ, Status: status}

			got, end := service.Decide(m, tt.participants, tt.trigger)
			assert.Equal(t, tt.wantEnd, end)
			assert.Equal(t, tt.want, got)
		})
	}
}
