// Package memory is an in-process implementation of the service stores.
// It backs tests and STORE_DRIVER=memory local runs.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"collab-backend/internal/apperr"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// Store holds every table in maps guarded by one mutex.
type Store struct {
	mu           sync.RWMutex
	meetings     map[uuid.UUID]model.Meeting
	participants map[uuid.UUID]model.Participant
	messages     map[uuid.UUID][]model.ChatMessage
	users        map[uuid.UUID]model.User

	// BeforeAddParticipant, when set, can fail individual inserts.
	BeforeAddParticipant func(p *model.Participant) error

	now func() time.Time
}

func New() *Store {
	return &Store{
		meetings:     make(map[uuid.UUID]model.Meeting),
		participants: make(map[uuid.UUID]model.Participant),
		messages:     make(map[uuid.UUID][]model.ChatMessage),
		users:        make(map[uuid.UUID]model.User),
		now:          time.Now,
	}
}

// ---- meetings ----

func (s *Store) CreateMeeting(_ context.Context, meeting *model.Meeting, host *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meeting.ID == uuid.Nil {
		meeting.ID = uuid.New()
	}
	for _, m := range s.meetings {
		if m.RoomName == meeting.RoomName {
			return apperr.Conflict("meeting already exists")
		}
	}
	now := s.now()
	meeting.CreatedAt, meeting.UpdatedAt = now, now

	host.MeetingID = meeting.ID
	if host.ID == uuid.Nil {
		host.ID = uuid.New()
	}
	host.CreatedAt, host.UpdatedAt = now, now

	stored := *meeting
	stored.Participants = nil
	s.meetings[meeting.ID] = stored
	s.participants[host.ID] = *host
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id uuid.UUID) (*model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	return &m, nil
}

func (s *Store) ListMeetingsForUser(_ context.Context, userID uuid.UUID, filter service.MeetingFilter) ([]model.Meeting, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	joined := map[uuid.UUID]bool{}
	for _, p := range s.participants {
		if p.BelongsTo(userID) {
			joined[p.MeetingID] = true
		}
	}

	var out []model.Meeting
	for _, m := range s.meetings {
		if m.HostID != userID && !joined[m.ID] {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b model.Meeting) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := int64(len(out))
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []model.Meeting{}, total, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (s *Store) TransitionMeeting(_ context.Context, id uuid.UUID, from []model.MeetingStatus, to model.MeetingStatus, endTime *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok || !slices.Contains(from, m.Status) {
		return false, nil
	}
	m.Status = to
	if endTime != nil {
		t := *endTime
		m.EndTime = &t
	}
	m.UpdatedAt = s.now()
	s.meetings[id] = m
	return true, nil
}

// ---- participants ----

func (s *Store) AddParticipant(_ context.Context, p *model.Participant) (*model.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findExisting(p); existing != nil {
		return existing, false, nil
	}
	if s.BeforeAddParticipant != nil {
		if err := s.BeforeAddParticipant(p); err != nil {
			return nil, false, err
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	stored := *p
	stored.Meeting = nil
	s.participants[p.ID] = stored
	return p, true, nil
}

func (s *Store) findExisting(p *model.Participant) *model.Participant {
	for _, existing := range s.participants {
		if existing.MeetingID != p.MeetingID {
			continue
		}
		if p.IsUser() && existing.BelongsTo(*p.UserID) {
			return &existing
		}
		if !p.IsUser() && !existing.IsUser() && p.Email != nil && existing.Email != nil &&
			strings.EqualFold(*p.Email, *existing.Email) {
			return &existing
		}
	}
	return nil
}

func (s *Store) GetParticipant(_ context.Context, meetingID, id uuid.UUID) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok || p.MeetingID != meetingID {
		return nil, apperr.NotFound("participant not found")
	}
	return &p, nil
}

func (s *Store) FindParticipantByUser(_ context.Context, meetingID, userID uuid.UUID) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.participants {
		if p.MeetingID == meetingID && p.BelongsTo(userID) {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("participant not found")
}

func (s *Store) ListParticipants(_ context.Context, meetingID uuid.UUID) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Participant{}
	for _, p := range s.participants {
		if p.MeetingID == meetingID {
			out = append(out, p)
		}
	}
	sortByCreated(out, false)
	return out, nil
}

func (s *Store) ListUserParticipations(_ context.Context, userID uuid.UUID, filter service.ParticipationFilter) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Participant{}
	for _, p := range s.participants {
		if !p.BelongsTo(userID) {
			continue
		}
		if len(filter.MeetingIDs) > 0 && !slices.Contains(filter.MeetingIDs, p.MeetingID) {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.PreloadMeeting {
			if m, ok := s.meetings[p.MeetingID]; ok {
				p.Meeting = &m
			}
		}
		out = append(out, p)
	}
	sortByCreated(out, true)
	return out, nil
}

func (s *Store) TransitionParticipant(_ context.Context, id uuid.UUID, from []model.ParticipantStatus, change service.ParticipantChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok || !slices.Contains(from, p.Status) {
		return false, nil
	}
	if change.LeftAt != nil && p.LeftAt != nil {
		return false, nil
	}
	p.Status = change.Status
	if change.JoinedAt != nil {
		t := *change.JoinedAt
		p.JoinedAt = &t
	}
	if change.LeftAt != nil {
		t := *change.LeftAt
		p.LeftAt = &t
	}
	p.UpdatedAt = s.now()
	s.participants[id] = p
	return true, nil
}

func (s *Store) ListStaleInvitations(_ context.Context, before time.Time, limit int) ([]model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Participant{}
	for _, p := range s.participants {
		if p.Status != model.ParticipantStatusInvited || !p.CreatedAt.Before(before) {
			continue
		}
		m, ok := s.meetings[p.MeetingID]
		if !ok || m.Type != model.MeetingTypeInstant || m.Status.IsTerminal() {
			continue
		}
		out = append(out, p)
	}
	sortByCreated(out, false)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByCreated(ps []model.Participant, desc bool) {
	slices.SortStableFunc(ps, func(a, b model.Participant) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = strings.Compare(a.ID.String(), b.ID.String())
		}
		if desc {
			return -c
		}
		return c
	})
}

// ---- chat ----

func (s *Store) AppendMessage(_ context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages[msg.MeetingID] = append(s.messages[msg.MeetingID], *msg)
	return nil
}

func (s *Store) ListMessages(_ context.Context, meetingID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[meetingID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

func (s *Store) PurgeMessages(_ context.Context, meetingID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.messages[meetingID]))
	delete(s.messages, meetingID)
	return n, nil
}

// ---- users ----

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &u, nil
}

func (s *Store) FindUserByAuthID(_ context.Context, authUserID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.AuthUserID == authUserID {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.AuthUserID == u.AuthUserID || strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("user already exists")
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UpdateUser(_ context.Context, id uuid.UUID, changes service.UserChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if changes.Name != nil {
		u.Name = *changes.Name
	}
	if changes.Role != nil {
		u.Role = *changes.Role
	}
	if changes.Status != nil {
		u.Status = *changes.Status
	}
	if changes.OrganizationID != nil {
		org := *changes.OrganizationID
		u.OrganizationID = &org
	}
	if changes.LastLogin != nil {
		t := *changes.LastLogin
		u.LastLogin = &t
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}
