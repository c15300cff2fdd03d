package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"battery-swap-backend/internal/inventory"
	"battery-swap-backend/internal/model"
	"battery-swap-backend/internal/mw"
	"battery-swap-backend/internal/realtime"
	"battery-swap-backend/internal/store"
	"battery-swap-backend/internal/subscription"
)

// Options bundles the router's collaborators and tunables.
type Options struct {
	Store     store.Store
	Inventory *inventory.Service
	Enforcer  *subscription.Enforcer
	Sockets   *realtime.Handler
	WebPush   *webpush.Options
	Logger    zerolog.Logger

	RateLimit     rate.Limit
	RateBurst     int
	CacheTTL      time.Duration
	ExposeMetrics bool
}

// NewRouter creates and configures a new Gin router.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestID(), mw.Logger(opts.Logger), gin.Recovery())

	handler := NewHandler(opts.Store, opts.Inventory, opts.Enforcer, opts.WebPush)

	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(10)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	rateLimiter := mw.RateLimiter(opts.RateLimit, opts.RateBurst)
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	identity := mw.Identity(opts.Store)
	authed := mw.RequireUser()
	producer := mw.RequireUserType(model.UserTypeProducer)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.ExposeMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(identity, rateLimiter)
	{
		// Plans and subscriptions
		api.GET("/plans", caching, handler.ListPlans)
		api.POST("/subscribe", authed, handler.Subscribe)
		api.GET("/my-subscription", authed, handler.MySubscription)
		api.GET("/subscription-status", authed, handler.SubscriptionStatus)

		// Stations and inventory
		api.GET("/stations", handler.ListStations)
		api.GET("/stations/nearby", handler.NearbyStations)
		api.GET("/stations/:id", handler.GetStation)
		api.POST("/stations", producer, handler.CreateStation)
		api.POST("/batteries", producer, handler.CreateBattery)
		api.POST("/stations/:id/batteries", producer, handler.AddBattery)
		api.DELETE("/stations/:id/batteries", producer, handler.ClearStation)
		api.DELETE("/stations/:id/batteries/:battery_id", producer, handler.RemoveBattery)
		api.PUT("/stations/:id/status", producer, handler.SetStationStatus)
		api.POST("/stations/:id/broadcast", producer, handler.TestBroadcast)

		// Orders
		api.POST("/stations/:id/book", authed, handler.BookBattery)
		api.POST("/orders/:id/collect", authed, handler.CollectOrder)
		api.POST("/orders/:id/ready", producer, handler.OrderReady)
		api.POST("/notifications", producer, handler.SendNotification)

		// Web push
		api.GET("/push-subscriptions", authed, handler.GetPushSubscription)
		api.PUT("/push-subscriptions", authed, handler.PutPushSubscription)
		api.DELETE("/push-subscriptions", authed, handler.DeletePushSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	if opts.Sockets != nil {
		ws := r.Group("/ws")
		ws.Use(identity)
		{
			ws.GET("/stations/", opts.Sockets.Stations)
			ws.GET("/stations/:station_id/", opts.Sockets.Stations)
			ws.GET("/notifications/", opts.Sockets.Notifications)
		}
	}

	return r
}
