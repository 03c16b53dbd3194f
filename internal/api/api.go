// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/docsync/internal/api/handlers"
	"github.com/andresuchdata/docsync/internal/api/middleware"
	"github.com/andresuchdata/docsync/internal/auth"
	"github.com/andresuchdata/docsync/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Sync   handlers.SyncTrigger
	Ledger handlers.RunLedger
	Auth   auth.Method
	Config config.Public
	// Drive serves the /api/drive routes; nil disables them.
	Drive http.Handler
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		infoHandler := handlers.NewInfoHandler(services.Auth, services.Config)
		apiGroup.GET("/auth", infoHandler.AuthInfo)
		apiGroup.GET("/config", infoHandler.Config)

		if services.Sync != nil {
			syncHandler := handlers.NewSyncHandler(services.Sync, services.Ledger)
			syncGroup := apiGroup.Group("/sync")
			{
				syncGroup.POST("", syncHandler.TriggerSync)
				syncGroup.GET("/last", syncHandler.LastSync)
				syncGroup.GET("/runs", syncHandler.ListRuns)
				syncGroup.GET("/runs/:id", syncHandler.RunOutcomes)
			}
		}

		if services.Drive != nil {
			router.Any("/api/drive/*path", gin.WrapH(services.Drive))
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
