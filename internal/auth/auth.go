// Package auth resolves a bearer token into an identity snapshot.
package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/parley/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/microcosm-cc/bluemonday"
)

const TokenCookie = "token"

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("user not found")
)

// UserFinder is the slice of persistence auth needs.
type UserFinder interface {
	FindUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Claims are issued elsewhere; only userId is required here.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

type Authenticator struct {
	secret  []byte
	users   UserFinder
	policy  *bluemonday.Policy
	Timeout time.Duration
}

func New(secret string, users UserFinder) *Authenticator {
	return &Authenticator{
		secret:  []byte(secret),
		users:   users,
		policy:  bluemonday.StrictPolicy(),
		Timeout: 2 * time.Second,
	}
}

// Verify checks an HS256 token and returns the user id it names.
func (a *Authenticator) Verify(tokenString string) (domain.UserID, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return domain.UserID(claims.UserID), nil
}

// Identity loads the user row and returns a snapshot safe to echo to other
// clients: markup is stripped from the display fields.
func (a *Authenticator) Identity(ctx context.Context, uid domain.UserID) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()
	u, err := a.users.FindUser(ctx, uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user %s: %w", uid, err)
	}
	if u == nil {
		return domain.User{}, ErrUnknownUser
	}
	snap := *u
	snap.Username = a.stripTags(snap.Username)
	snap.Discriminator = a.stripTags(snap.Discriminator)
	snap.Avatar = a.stripTags(snap.Avatar)
	return snap, nil
}

// stripTags removes markup and decodes the entities Sanitize escapes, so
// plain text such as "a & b" comes back unchanged.
func (a *Authenticator) stripTags(s string) string {
	return html.UnescapeString(a.policy.Sanitize(s))
}

// Authenticate is Verify followed by Identity.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (domain.User, error) {
	uid, err := a.Verify(tokenString)
	if err != nil {
		return domain.User{}, err
	}
	return a.Identity(ctx, uid)
}

// TokenFromRequest looks in the Authorization header, the token query
// parameter and the token cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}
