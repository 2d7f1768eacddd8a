package media

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "devkey"
	testSecret = "a-secret-long-enough-for-hmac-signing"
)

func parseToken(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(time.Minute))
	require.NoError(t, err)
	return claims
}

func TestMintBindsGrant(t *testing.T) {
	minter := NewTokenMinter(testKey, testSecret, time.Hour)

	token, err := minter.Mint(Claims{
		Identity: "user-1",
		Name:     "Ada",
		Grant: Grant{
			Room:           "room_1_abc",
			RoomJoin:       true,
			CanPublish:     false,
			CanSubscribe:   true,
			CanPublishData: true,
		},
	})
	require.NoError(t, err)

	claims := parseToken(t, token)
	assert.Equal(t, testKey, claims["iss"])
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "Ada", claims["name"])

	video, ok := claims["video"].(map[string]any)
	require.True(t, ok, "video grant missing")
	assert.Equal(t, "room_1_abc", video["room"])
	assert.Equal(t, true, video["roomJoin"])
	assert.Equal(t, false, video["canPublish"])
	assert.Equal(t, true, video["canSubscribe"])
	assert.Equal(t, true, video["canPublishData"])
}

func TestMintHonoursTTL(t *testing.T) {
	minter := NewTokenMinter(testKey, testSecret, 10*time.Minute)

	token, err := minter.Mint(Claims{Identity: "u", Grant: Grant{Room: "r", RoomJoin: true}})
	require.NoError(t, err)

	exp, err := parseToken(t, token).GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp.Time, time.Minute)
}
