package http

import (
	"context"
	"net/http"

	"github.com/dkeye/parley/internal/adapters/signal"
	"github.com/dkeye/parley/internal/app/orch"
	"github.com/dkeye/parley/internal/auth"
	"github.com/dkeye/parley/internal/config"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const sessionName = "ParleySessions"

// Pinger is satisfied by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Orch   *orch.Orchestrator
	Auth   *auth.Authenticator
	Signal *signal.SignalWSController
	// Gatherer enables /metrics when set.
	Gatherer prometheus.Gatherer
	// Health is optional; /healthz only reports the process otherwise.
	Health Pinger
}

// SetupRouter wires HTTP routes (REST + WS).
//   - Static files are served from cfg.StaticPath.
//   - REST views are under /api/* and require authentication.
//   - WebSocket upgrade lives at /api/ws.
func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = cfg.JWTSecret
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	h := &handlers{orch: d.Orch, auth: d.Auth, health: d.Health, iceServers: signal.ICEServers(cfg.ICEServers)}

	r.GET("/healthz", h.healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.POST("/session", h.createSession)
	api.DELETE("/session", h.deleteSession)

	authed := api.Group("", AuthMiddleware(d.Auth))
	authed.GET("/ws", func(c *gin.Context) {
		user := currentUser(c)
		log.Debug().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("ws signal endpoint hit")
		d.Signal.HandleSignal(ctx, c, user)
	})

	voice := authed.Group("/voice")
	voice.GET("/channels/:id/participants", h.channelParticipants)
	voice.GET("/servers/:id/rooms", h.serverRooms)
	voice.GET("/state", h.voiceState)
	voice.GET("/ice", h.ice)

	presence := authed.Group("/presence")
	presence.GET("/online", h.online)
	presence.GET("/servers/:id/online", h.serverOnline)

	return r
}
