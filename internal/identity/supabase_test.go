package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-backend/internal/apperr"
)

const jwtSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return tok
}

func TestVerifyCredentialLocal(t *testing.T) {
	c := NewClient("http://unused", "anon", "service", jwtSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":           "auth-123",
		"email":         "ada@example.com",
		"role":          "authenticated",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"role": "org_admin", "email_verified": true},
	})

	acct, err := c.VerifyCredential(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "auth-123", acct.ID)
	assert.Equal(t, "ada@example.com", acct.Email)
	assert.Equal(t, "org_admin", acct.Role)
	assert.True(t, acct.Verified)
}

func TestVerifyCredentialLocalRejects(t *testing.T) {
	c := NewClient("http://unused", "anon", "service", jwtSecret)

	expired := signToken(t, jwt.MapClaims{"sub": "auth-1", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err := c.VerifyCredential(context.Background(), expired)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.Equal(t, "token_expired", apperr.As(err).Reason)

	_, err = c.VerifyCredential(context.Background(), "not-a-jwt")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = c.VerifyCredential(context.Background(), "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func newGoTrue(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "anon-key", "service-key", "")
}

func TestVerifyCredentialRemote(t *testing.T) {
	c := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 "auth-9",
			"email":              "bob@example.com",
			"role":               "authenticated",
			"email_confirmed_at": time.Now(),
		})
	})

	acct, err := c.VerifyCredential(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "auth-9", acct.ID)
	assert.Equal(t, "authenticated", acct.Role)
	assert.True(t, acct.Verified)

	_, err = c.VerifyCredential(context.Background(), "bad-token")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestIssueCredential(t *testing.T) {
	c := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct-horse" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"token_type":    "bearer",
			"expires_in":    3600,
			"user":          map[string]any{"id": "auth-1", "email": body["email"]},
		})
	})

	sess, err := c.IssueCredential(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Equal(t, "rt", sess.RefreshToken)
	assert.Equal(t, 3600, sess.ExpiresIn)
	require.NotNil(t, sess.Account)
	assert.Equal(t, "auth-1", sess.Account.ID)

	_, err = c.IssueCredential(context.Background(), "ada@example.com", "wrong")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAdminCreateAccountConflict(t *testing.T) {
	c := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
	})

	_, err := c.AdminCreateAccount(context.Background(), "ada@example.com", "pw", nil)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAdminGenerateLink(t *testing.T) {
	c := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/generate_link", r.URL.Path)
		_, _ = w.Write([]byte(`{"properties":{"action_link":"https://example.com/verify?token=abc"}}`))
	})

	link, err := c.AdminGenerateLink(context.Background(), LinkRecovery, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/verify?token=abc", link.ActionLink)
}

func TestServerErrorIsInternal(t *testing.T) {
	c := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.AdminDeleteAccount(context.Background(), "auth-1")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
