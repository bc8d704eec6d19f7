package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"slotswap-backend/internal/apperr"
	"slotswap-backend/internal/auth"
	"slotswap-backend/internal/logging"
	"slotswap-backend/internal/metrics"
)

// RouterOptions carries the settings the router needs beyond the handler.
type RouterOptions struct {
	ServiceName string
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the gin engine with its middleware stack and routes.
func NewRouter(h *Handler, issuer *auth.Issuer, m *metrics.Metrics, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(opts.Logger))
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(CORSMiddleware(opts.CORSOrigins))

	SetupRoutes(r, h, issuer, m)
	return r
}

func SetupRoutes(r *gin.Engine, h *Handler, issuer *auth.Issuer, m *metrics.Metrics) {
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.NoRoute(func(c *gin.Context) {
		jsonError(c, http.StatusNotFound, apperr.KindNotFound, "route not found")
	})

	api := r.Group("/api")

	// Public Routes
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)

	// Protected Routes
	authorized := api.Group("")
	authorized.Use(auth.Middleware(issuer))
	{
		// EVENTS
		authorized.POST("/events", h.CreateEvent)
		authorized.GET("/events", h.ListMyEvents)
		authorized.GET("/events/:id", h.GetEvent)
		authorized.PUT("/events/:id", h.UpdateEvent)
		authorized.DELETE("/events/:id", h.DeleteEvent)
		authorized.GET("/calendar.ics", h.ExportCalendar)

		// MARKETPLACE
		authorized.GET("/swappable-slots", h.ListSwappableSlots)
		authorized.GET("/requests", h.ListSwapRequests)

		// SWAPS
		authorized.POST("/swap-request", h.ProposeSwap)
		authorized.POST("/swap-request/:requestId/cancel", h.CancelSwap)
		authorized.POST("/swap-response/:requestId", h.RespondToSwap)
	}
}
