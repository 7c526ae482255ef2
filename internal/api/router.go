package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"event-signup-backend/config"
	"event-signup-backend/internal/mw"
	"event-signup-backend/internal/notification"
	"event-signup-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, notifier *notification.WorkerPool, webpushOptions *webpush.Options, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, notifier, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Read-mostly endpoints (event list, counts) get short-lived caching.
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/events", handler.CreateEvent)
		api.GET("/events", caching, handler.ListEvents)
		api.GET("/events/:event_id", handler.GetEvent)

		api.POST("/events/:event_id/registrations", handler.Register)
		api.GET("/events/:event_id/registrations/counts", caching, handler.RegistrationCounts)
		api.DELETE("/registrations/:id", handler.Cancel)
		api.GET("/registrations", handler.ListActive)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
