package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/parley/internal/auth"
	"github.com/dkeye/parley/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userKey       = "user"
	sessionUIDKey = "uid"
)

// AuthMiddleware resolves the caller from a token (header, query, cookie)
// or from the cookie session, and aborts with 401 otherwise.
func AuthMiddleware(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			uid domain.UserID
			err error
		)
		if token := auth.TokenFromRequest(c.Request); token != "" {
			uid, err = a.Verify(token)
		} else if v, ok := sessions.Default(c).Get(sessionUIDKey).(string); ok && v != "" {
			uid = domain.UserID(v)
		} else {
			err = auth.ErrNoToken
		}
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthenticated request")
			abortWithError(c, domain.ErrNotAuthenticated)
			return
		}

		user, err := a.Identity(c.Request.Context(), uid)
		if err != nil {
			if !errors.Is(err, auth.ErrUnknownUser) {
				log.Warn().Err(err).Str("module", "adapters.http").Str("user", string(uid)).Msg("identity lookup failed")
			}
			abortWithError(c, domain.ErrNotAuthenticated)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.User {
	u, _ := c.Get(userKey)
	user, _ := u.(domain.User)
	return user
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindWrongChannelType, domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindNotAMember:
		return http.StatusForbidden
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized
	case domain.KindRoomFull:
		return http.StatusConflict
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	de := domain.AsError(err)
	c.AbortWithStatusJSON(statusFor(de.Kind), gin.H{"error": de})
}
