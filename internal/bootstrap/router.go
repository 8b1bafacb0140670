package bootstrap

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/talkitive/talkitive-backend/internal/api/http"
	apimw "github.com/talkitive/talkitive-backend/internal/api/http/middleware"
	"github.com/talkitive/talkitive-backend/internal/auth"
	authmw "github.com/talkitive/talkitive-backend/internal/auth/middleware"
	usershttp "github.com/talkitive/talkitive-backend/internal/users/http"
	"github.com/talkitive/talkitive-backend/internal/users/repository"
	"github.com/talkitive/talkitive-backend/internal/users/service"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string
	Logger      *zap.Logger

	Store    repository.ProfileStore
	Presence service.Presence
	Verifier auth.TokenVerifier

	// DB is only pinged by the health endpoint; nil disables the check.
	DB httpapi.Pinger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	logger := dep.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(apimw.RequestIDMiddleware(logger))
	r.Use(gin.Recovery())

	if len(dep.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = dep.CORSOrigins
		corsCfg.AllowCredentials = true
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-Id")
		r.Use(cors.New(corsCfg))
	}

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")

	users := service.NewUserService(dep.Store, dep.Verifier, dep.Presence, logger)
	handler := usershttp.New(users, logger)

	requireAuth := authmw.RequireAuth(dep.Verifier)
	checkLimiter := apimw.RateLimitMiddleware(5, 10)

	handler.Register(api, requireAuth, checkLimiter)

	return r
}
