// Package access decides whether an actor may act on a meeting.
package access

import (
	"github.com/google/uuid"

	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
)

// Action is an operation attempted against a meeting.
type Action string

const (
	ActionView         Action = "view"
	ActionJoin         Action = "join"
	ActionInvite       Action = "invite"
	ActionEnd          Action = "end"
	ActionCancel       Action = "cancel"
	ActionUpdateStatus Action = "update_status"
	ActionLeave        Action = "leave"
	ActionMarkMissed   Action = "mark_missed"
	ActionChat         Action = "chat"
)

// hostOnly actions are never granted to plain participants.
var hostOnly = map[Action]bool{
	ActionInvite: true,
	ActionEnd:    true,
	ActionCancel: true,
}

// Reason explains a denial.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonAccountInactive Reason = "account_inactive"
	ReasonNotInvited      Reason = "not_invited"
	ReasonNotHost         Reason = "not_host"
	ReasonNotOwner        Reason = "not_owner"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Name   string
	Role   model.UserRole
	Status model.UserStatus
}

// ActorFromUser builds an Actor from a profile row.
func ActorFromUser(u *model.User) Actor {
	return Actor{UserID: u.ID, Name: u.DisplayName(), Role: u.Role, Status: u.Status}
}

// Request carries everything the gate looks at.
type Request struct {
	Actor   Actor
	Meeting *model.Meeting
	Action  Action

	// Membership is the actor's own participant row, nil when absent.
	Membership *model.Participant
	// Target is the participant row being mutated, nil when the action has none.
	Target *model.Participant
}

// Decision is Allowed or Denied(reason).
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason Reason) Decision { return Decision{Reason: reason} }

// Err converts a denial into a Forbidden error. Allowed decisions return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	var msg string
	switch d.Reason {
	case ReasonAccountInactive:
		msg = "account is not active"
	case ReasonNotInvited:
		msg = "you are not a participant of this meeting"
	case ReasonNotHost:
		msg = "only the host can perform this action"
	case ReasonNotOwner:
		msg = "you can only change your own participation"
	default:
		msg = "access denied"
	}
	return apperr.Forbidden("%s", msg).WithReason(string(d.Reason))
}

// Authorize evaluates the rules in order. It has no side effects.
func Authorize(req Request) Decision {
	if req.Actor.Status != model.UserStatusActive {
		return deny(ReasonAccountInactive)
	}

	// 1. open meetings can be viewed and joined by any link holder
	if req.Meeting.IsOpen && (req.Action == ActionView || req.Action == ActionJoin) {
		return allow()
	}

	// 2. host can do everything
	if req.Meeting.HostID == req.Actor.UserID {
		return allow()
	}

	// 3. everybody else needs a participant row
	if req.Membership == nil {
		return deny(ReasonNotInvited)
	}

	// 4. participants only touch their own row
	if hostOnly[req.Action] {
		return deny(ReasonNotHost)
	}
	if req.Target != nil && !req.Target.BelongsTo(req.Actor.UserID) {
		return deny(ReasonNotOwner)
	}

	return allow()
}
