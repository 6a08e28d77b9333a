package rest

import (
	"log/slog"
	"net/http"
	"time"

	"vibehive/auth"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// NewEngine wires the REST routes and mounts the realtime handler on /ws.
func NewEngine(log *slog.Logger, controller *MessageController, verifier *auth.Verifier, realtime http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if realtime != nil {
		r.GET("/ws", gin.WrapH(realtime))
	}

	api := r.Group("/")
	api.Use(authMiddleware(verifier))
	api.GET("/messages/:userId/:receiverId", controller.History)
	api.POST("/messages", controller.Send)
	api.GET("/conversations/:viewer", controller.Conversations)
	return r
}

// authMiddleware resolves the caller from the bearer token when authentication is on.
func authMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Enabled() {
			c.Next()
			return
		}
		identity, err := verifier.Identify(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(userIDKey, identity)
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
