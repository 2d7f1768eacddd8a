// Package media talks to the LiveKit media server.
package media

import (
	"time"

	"github.com/livekit/protocol/auth"
)

// Grant is the capability set bound into a join token.
type Grant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"room_join"`
	CanPublish     bool   `json:"can_publish"`
	CanSubscribe   bool   `json:"can_subscribe"`
	CanPublishData bool   `json:"can_publish_data"`
}

// Claims identifies who the token is for.
type Claims struct {
	Identity string
	Name     string
	Grant    Grant
}

// TokenMinter signs LiveKit access tokens with the shared API key/secret.
type TokenMinter struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenMinter(apiKey, apiSecret string, ttl time.Duration) *TokenMinter {
	return &TokenMinter{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}
}

// Mint creates a signed JWT for the given claims.
func (m *TokenMinter) Mint(c Claims) (string, error) {
	at := auth.NewAccessToken(m.apiKey, m.apiSecret)

	grant := &auth.VideoGrant{
		RoomJoin: c.Grant.RoomJoin,
		Room:     c.Grant.Room,
	}
	grant.SetCanPublish(c.Grant.CanPublish)
	grant.SetCanSubscribe(c.Grant.CanSubscribe)
	grant.SetCanPublishData(c.Grant.CanPublishData)

	at.AddGrant(grant).
		SetIdentity(c.Identity).
		SetName(c.Name).
		SetValidFor(m.ttl)

	return at.ToJWT()
}
