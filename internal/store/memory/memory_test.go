package memory_test

import (
	"testing"

	"collab-backend/internal/store/memory"
	"collab-backend/internal/store/storetest"
)

func TestStore(t *testing.T) {
	s := memory.New()
	storetest.Run(t, storetest.Ports{Meetings: s, Participants: s, Users: s, Chat: s})
}
