// Package identity is a client for the Supabase GoTrue auth API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"collab-backend/internal/apperr"
)

// Account is the identity provider's view of a user.
type Account struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Role     string         `json:"role"`
	Verified bool           `json:"verified"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is an issued credential pair.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	Account      *Account `json:"-"`
}

// LinkType is a one-time link kind understood by GoTrue.
type LinkType string

const (
	LinkSignup    LinkType = "signup"
	LinkMagicLink LinkType = "magiclink"
	LinkRecovery  LinkType = "recovery"
	LinkInvite    LinkType = "invite"
)

// Link is a generated one-time link.
type Link struct {
	ActionLink string `json:"action_link"`
}

// Client wraps the GoTrue REST API. Admin calls use the service role key.
type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	jwtSecret      []byte
	httpClient     *http.Client
}

// NewClient creates a client. When jwtSecret is set access tokens are verified
// locally instead of calling /user.
func NewClient(baseURL, anonKey, serviceRoleKey, jwtSecret string) *Client {
	c := &Client{
		baseURL:        baseURL,
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if jwtSecret != "" {
		c.jwtSecret = []byte(jwtSecret)
	}
	return c
}

// gotrueUser is the user object returned by GoTrue.
type gotrueUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	AppMetadata      map[string]any `json:"app_metadata"`
}

func (u *gotrueUser) account() *Account {
	return &Account{
		ID:       u.ID,
		Email:    u.Email,
		Role:     roleClaim(u.Role, u.UserMetadata, u.AppMetadata),
		Verified: u.EmailConfirmedAt != nil,
		Metadata: u.UserMetadata,
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         *gotrueUser `json:"user"`
}

func (t *tokenResponse) session() *Session {
	s := &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
	}
	if t.User != nil {
		s.Account = t.User.account()
	}
	return s
}

// supabaseClaims access token claims issued by GoTrue
type supabaseClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	jwt.RegisteredClaims
}

// VerifyCredential validates an access token and returns its account.
func (c *Client) VerifyCredential(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, apperr.Unauthorized("missing authorization token")
	}
	if c.jwtSecret != nil {
		return c.verifyLocal(token)
	}

	var user gotrueUser
	if err := c.do(ctx, http.MethodGet, "/user", token, nil, &user); err != nil {
		if apperr.Is(err, apperr.KindInternal) {
			return nil, err
		}
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	return user.account(), nil
}

func (c *Client) verifyLocal(token string) (*Account, error) {
	claims := &supabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("token expired").WithReason("token_expired")
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, apperr.Unauthorized("invalid token")
	}

	verified := true
	if v, ok := claims.UserMetadata["email_verified"].(bool); ok {
		verified = v
	}

	return &Account{
		ID:       claims.Subject,
		Email:    claims.Email,
		Role:     roleClaim(claims.Role, claims.UserMetadata, claims.AppMetadata),
		Verified: verified,
		Metadata: claims.UserMetadata,
	}, nil
}

// IssueCredential signs in with email and password.
func (c *Client) IssueCredential(ctx context.Context, email, password string) (*Session, error) {
	var res tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &res); err != nil {
		return nil, credentialError(err, "invalid email or password")
	}
	return res.session(), nil
}

// RefreshCredential exchanges a refresh token for a new session.
func (c *Client) RefreshCredential(ctx context.Context, refreshToken string) (*Session, error) {
	var res tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &res); err != nil {
		return nil, credentialError(err, "invalid refresh token")
	}
	return res.session(), nil
}

// SignOut revokes the session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// AdminCreateAccount creates a confirmed account.
func (c *Client) AdminCreateAccount(ctx context.Context, email, password string, metadata map[string]any) (*Account, error) {
	body := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": metadata,
	}
	var user gotrueUser
	if err := c.do(ctx, http.MethodPost, "/admin/users", c.serviceRoleKey, body, &user); err != nil {
		return nil, err
	}
	return user.account(), nil
}

// AdminDeleteAccount removes an account.
func (c *Client) AdminDeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), c.serviceRoleKey, nil, nil)
}

// AdminUpdateMetadata merges data into the account's user metadata.
func (c *Client) AdminUpdateMetadata(ctx context.Context, id string, data map[string]any) error {
	body := map[string]any{"user_metadata": data}
	return c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), c.serviceRoleKey, body, nil)
}

// AdminGenerateLink creates a one-time link of the given type.
func (c *Client) AdminGenerateLink(ctx context.Context, linkType LinkType, email string) (*Link, error) {
	body := map[string]string{"type": string(linkType), "email": email}
	var res struct {
		ActionLink string `json:"action_link"`
		Properties struct {
			ActionLink string `json:"action_link"`
		} `json:"properties"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/generate_link", c.serviceRoleKey, body, &res); err != nil {
		return nil, err
	}
	link := res.ActionLink
	if link == "" {
		link = res.Properties.ActionLink
	}
	return &Link{ActionLink: link}, nil
}

// gotrueError error body variants returned by GoTrue
type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "identity provider error"
}

// do executes a request against /auth/v1 and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return apperr.Internal(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/auth/v1"+path, reqBody)
	if err != nil {
		return apperr.Internal(err, "failed to create request")
	}

	req.Header.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Internal(err, "identity provider unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Internal(err, "failed to read identity provider response")
	}

	if resp.StatusCode >= 400 {
		var ge gotrueError
		_ = json.Unmarshal(respBody, &ge)
		return statusError(resp.StatusCode, ge)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperr.Internal(err, "failed to parse identity provider response")
		}
	}
	return nil
}

func statusError(status int, ge gotrueError) error {
	msg := ge.text()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Unauthorized("%s", msg)
	case status == http.StatusNotFound:
		return apperr.NotFound("%s", msg)
	case status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		if ge.ErrorCode == "email_exists" || strings.Contains(strings.ToLower(msg), "already") {
			return apperr.Conflict("email already registered")
		}
		return apperr.BadRequest("%s", msg)
	case status < 500:
		return apperr.BadRequest("%s", msg).WithReason(ge.ErrorCode)
	default:
		return apperr.Internal(fmt.Errorf("status %d: %s", status, msg), "identity provider error")
	}
}

// credentialError collapses client-side failures on token endpoints into Unauthorized.
func credentialError(err error, msg string) error {
	if apperr.Is(err, apperr.KindInternal) {
		return err
	}
	return apperr.Unauthorized("%s", msg).WithReason(apperr.As(err).Reason)
}

func roleClaim(claim string, userMeta, appMeta map[string]any) string {
	if r, ok := appMeta["role"].(string); ok && r != "" {
		return r
	}
	if r, ok := userMeta["role"].(string); ok && r != "" {
		return r
	}
	return claim
}
