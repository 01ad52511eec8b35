package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/middleware"
	"github.com/lalith-99/tradielink/internal/observ"
	"go.uber.org/zap"
)

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handlers struct {
	Auth      *AuthHandler
	Messages  *MessageHandler
	Directory *DirectoryHandler
	Jobs      *JobHandler
	Stats     *StatsHandler

	// Health lists named dependencies for GET /health. The database is
	// always there; Redis only when it backs typing.
	Health map[string]Pinger
}

type RouterConfig struct {
	JWTSecret   string
	CORSOrigins []string
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h Handlers, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observ.RequestID())
	r.Use(observ.AccessLog(logger))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	// Health is public so load balancers can reach it.
	r.GET("/health", healthHandler(h.Health, logger))

	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)

	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	authed.GET("/me", h.Auth.Me)
	authed.PUT("/me", h.Auth.UpdateProfile)
	authed.GET("/me/stats", h.Stats.Get)

	authed.GET("/builders", h.Directory.Builders)
	authed.GET("/tradies", h.Directory.Tradies)

	authed.GET("/builder/jobs", h.Jobs.ListMine)
	authed.POST("/builder/jobs", h.Jobs.Create)
	authed.GET("/jobs", h.Jobs.Board)
	authed.POST("/jobs/:id/enquire", h.Jobs.Enquire)

	msgs := authed.Group("/messages")
	msgs.GET("/threads", h.Messages.ListThreads)
	msgs.POST("/threads", h.Messages.StartThread)
	msgs.GET("/threads/:id", h.Messages.GetThread)
	msgs.POST("/threads/:id/messages", h.Messages.SendMessage)
	msgs.POST("/threads/:id/close", h.Messages.CloseThread)
	msgs.POST("/read", h.Messages.MarkRead)
	msgs.POST("/typing", h.Messages.SetTyping)
	msgs.GET("/typing/:id", h.Messages.GetTyping)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Route not found."})
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// healthHandler answers {ok:true} when every dependency pings, and 500
// naming the first one that does not.
func healthHandler(deps map[string]Pinger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{
					"ok":    false,
					"error": name + " connection failed.",
				})
				return
			}
		}
		respond(c, http.StatusOK, nil)
	}
}
