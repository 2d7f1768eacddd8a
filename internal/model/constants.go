package model

import "slices"

// UserRole 사용자 역할
type UserRole string

const (
	UserRoleSuperAdmin UserRole = "super_admin"
	UserRoleOrgAdmin   UserRole = "org_admin"
	UserRoleUser       UserRole = "user"
)

// UserStatus 계정 상태
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusPending   UserStatus = "pending"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// MeetingType 미팅 타입
type MeetingType string

const (
	MeetingTypeInstant   MeetingType = "instant"
	MeetingTypeScheduled MeetingType = "scheduled"
	MeetingTypeWebinar   MeetingType = "webinar"
)

// MeetingStatus 미팅 상태
type MeetingStatus string

const (
	MeetingStatusScheduled   MeetingStatus = "scheduled"
	MeetingStatusActive      MeetingStatus = "active"
	MeetingStatusCompleted   MeetingStatus = "completed"
	MeetingStatusCancelled   MeetingStatus = "cancelled"
	MeetingStatusNotAnswered MeetingStatus = "not_answered"
)

// ParticipantRole 참가자 역할
type ParticipantRole string

const (
	ParticipantRoleHost      ParticipantRole = "host"
	ParticipantRoleAssistant ParticipantRole = "assistant"
	ParticipantRoleAttendee  ParticipantRole = "attendee"
)

// ParticipantStatus 참가자 상태
type ParticipantStatus string

const (
	ParticipantStatusInvited  ParticipantStatus = "invited"
	ParticipantStatusAccepted ParticipantStatus = "accepted"
	ParticipantStatusDeclined ParticipantStatus = "declined"
	ParticipantStatusJoined   ParticipantStatus = "joined"
	ParticipantStatusMissed   ParticipantStatus = "missed"
)

// String 메서드
func (r UserRole) String() string {
	return string(r)
}

func (s UserStatus) String() string {
	return string(s)
}

func (t MeetingType) String() string {
	return string(t)
}

func (s MeetingStatus) String() string {
	return string(s)
}

func (r ParticipantRole) String() string {
	return string(r)
}

func (s ParticipantStatus) String() string {
	return string(s)
}

// Valid 알려진 미팅 타입인지 확인
func (t MeetingType) Valid() bool {
	switch t {
	case MeetingTypeInstant, MeetingTypeScheduled, MeetingTypeWebinar:
		return true
	}
	return false
}

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleSuperAdmin, UserRoleOrgAdmin, UserRoleUser:
		return true
	}
	return false
}

func (r ParticipantRole) Valid() bool {
	switch r {
	case ParticipantRoleHost, ParticipantRoleAssistant, ParticipantRoleAttendee:
		return true
	}
	return false
}

func (s MeetingStatus) Valid() bool {
	_, ok := meetingTransitions[s]
	return ok
}

// meetingTransitions 미팅 상태 전이표
// scheduled -> completed 는 활성화 없이 종료되는 회의(아무도 입장하지 않은 채 end/자동 종료)
var meetingTransitions = map[MeetingStatus][]MeetingStatus{
	MeetingStatusScheduled: {
		MeetingStatusActive,
		MeetingStatusCompleted,
		MeetingStatusCancelled,
		MeetingStatusNotAnswered,
	},
	MeetingStatusActive:      {MeetingStatusCompleted},
	MeetingStatusCompleted:   {},
	MeetingStatusCancelled:   {},
	MeetingStatusNotAnswered: {},
}

// IsTerminal 종료 상태 (더 이상 전이 없음)
func (s MeetingStatus) IsTerminal() bool {
	next, ok := meetingTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo 전이 가능 여부
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	return slices.Contains(meetingTransitions[s], next)
}

// NonTerminalMeetingStatuses 조건부 업데이트용 비종료 상태 목록
func NonTerminalMeetingStatuses() []MeetingStatus {
	return []MeetingStatus{MeetingStatusScheduled, MeetingStatusActive}
}

// MeetingStatusesFrom next 로 전이 가능한 모든 이전 상태
func MeetingStatusesFrom(next MeetingStatus) []MeetingStatus {
	var from []MeetingStatus
	for s, targets := range meetingTransitions {
		if slices.Contains(targets, next) {
			from = append(from, s)
		}
	}
	slices.Sort(from)
	return from
}

// participantTransitions 참가자 상태 전이표
// joined 는 accepted 와 동일하게 취급 (퇴장 가능)
var participantTransitions = map[ParticipantStatus][]ParticipantStatus{
	ParticipantStatusInvited: {
		ParticipantStatusAccepted,
		ParticipantStatusDeclined,
		ParticipantStatusMissed,
	},
	ParticipantStatusAccepted: {ParticipantStatusDeclined},
	ParticipantStatusJoined:   {ParticipantStatusDeclined},
	ParticipantStatusDeclined: {},
	ParticipantStatusMissed:   {},
}

func (s ParticipantStatus) Valid() bool {
	_, ok := participantTransitions[s]
	return ok
}

// IsTerminal 참가자 종료 상태 (declined, missed)
func (s ParticipantStatus) IsTerminal() bool {
	next, ok := participantTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo 참가자 상태 전이 가능 여부
func (s ParticipantStatus) CanTransitionTo(next ParticipantStatus) bool {
	return slices.Contains(participantTransitions[s], next)
}

// ParticipantStatusesFrom next 로 전이 가능한 모든 이전 상태
func ParticipantStatusesFrom(next ParticipantStatus) []ParticipantStatus {
	var from []ParticipantStatus
	for s, targets := range participantTransitions {
		if slices.Contains(targets, next) {
			from = append(from, s)
		}
	}
	slices.Sort(from)
	return from
}
