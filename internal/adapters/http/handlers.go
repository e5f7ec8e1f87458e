package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/parley/internal/app/orch"
	"github.com/dkeye/parley/internal/auth"
	"github.com/dkeye/parley/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch       *orch.Orchestrator
	auth       *auth.Authenticator
	health     Pinger
	iceServers []webrtc.ICEServer
}

type SessionRequest struct {
	Token string `json:"token"`
}

func (h *handlers) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("health ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	conns, users := h.orch.Registry.Count()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": conns, "online": users, "rooms": h.orch.Voice.RoomCount()})
}

// createSession verifies a token once and remembers the identity in the
// cookie session, so later requests and the WS handshake need no token.
func (h *handlers) createSession(c *gin.Context) {
	var req SessionRequest
	_ = c.ShouldBindJSON(&req)
	token := req.Token
	if token == "" {
		token = auth.TokenFromRequest(c.Request)
	}
	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.http").Msg("session rejected")
		abortWithError(c, domain.ErrNotAuthenticated)
		return
	}
	s := sessions.Default(c)
	s.Set(sessionUIDKey, string(user.ID))
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		abortWithError(c, domain.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) deleteSession(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session clear")
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) channelParticipants(c *gin.Context) {
	user := currentUser(c)
	room := domain.RoomID(c.Param("id"))
	list, err := h.orch.ChannelParticipants(c.Request.Context(), user.ID, room)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channelId": room, "participants": list, "count": len(list)})
}

func (h *handlers) serverRooms(c *gin.Context) {
	user := currentUser(c)
	server := domain.ServerID(c.Param("id"))
	rooms, err := h.orch.ServerRooms(c.Request.Context(), user.ID, server)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"serverId": server, "rooms": rooms})
}

func (h *handlers) voiceState(c *gin.Context) {
	user := currentUser(c)
	flags := h.orch.IdentityVoiceState(c.Request.Context(), user.ID)
	resp := gin.H{"identityId": user.ID, "mute": flags.Mute, "deafen": flags.Deafen, "speaking": flags.Speaking}
	if room, _, ok := h.orch.Voice.RoomOf(user.ID); ok {
		resp["channelId"] = room
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) ice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

func (h *handlers) online(c *gin.Context) {
	users := h.orch.OnlineUsers()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *handlers) serverOnline(c *gin.Context) {
	user := currentUser(c)
	server := domain.ServerID(c.Param("id"))
	users, err := h.orch.ServerOnline(c.Request.Context(), user.ID, server)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"serverId": server, "users": users, "count": len(users)})
}
