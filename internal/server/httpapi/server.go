// Package httpapi exposes the REST surface: login, feedback intake, and
// administrative user management.
package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/auditlog"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/feedback"
)

type Server struct {
	accounts  *accounts.Service
	feedback  *feedback.Service
	audit     *auditlog.Recorder
	secretKey []byte
	logger    logging.Logger

	globalLimiter *LimiterSet
	authLimiter   *LimiterSet
}

func NewServer(accountsSvc *accounts.Service, feedbackSvc *feedback.Service, audit *auditlog.Recorder, cfg *config.Config, logger logging.Logger) *Server {
	return &Server{
		accounts:      accountsSvc,
		feedback:      feedbackSvc,
		audit:         audit,
		secretKey:     []byte(cfg.SecretKey),
		logger:        logger,
		globalLimiter: NewLimiterSet(cfg.GlobalRateLimit),
		authLimiter:   NewLimiterSet(cfg.AuthRateLimit),
	}
}

// Router assembles the gin engine with recovery, request logging, and the
// baseline rate limit applied to every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(),
		RateLimit(s.globalLimiter, "Too many requests. Please try again later.", true))

	r.GET("/ping", s.ping)
	r.GET("/health", s.ping)

	r.POST("/login",
		RateLimit(s.authLimiter, "Too many login attempts. Please try again in 15 minutes.", false),
		s.login)

	r.POST("/feedback", s.createFeedback)
	r.GET("/feedback", s.listFeedback)
	r.GET("/feedback/:id", s.getFeedback)

	users := r.Group("/users", s.Authenticate(), s.RequireRole(accounts.RoleAdministrator))
	users.GET("", s.listUsers)
	users.POST("", s.createUser)
	users.GET("/:id", s.getUser)
	users.PUT("/:id", s.updateUser)
	users.PATCH("/:id/status", s.setUserStatus)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID, err := common.MakeRandHexString(8)
		if err != nil {
			requestID = "unknown"
		}
		c.Next()
		s.logger.Info(c.Request.Context(), "http request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// clientAddr mirrors the rate-limit key resolution minus the API-key
// branch: first forwarded hop, otherwise the peer address.
func clientAddr(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return c.ClientIP()
}
