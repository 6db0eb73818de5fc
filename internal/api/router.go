package api

import (
	"net/http"

	"parkease/internal/api/handler"
	"parkease/internal/api/middleware"
	"parkease/internal/domain"
	"parkease/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

type Services struct {
	Auth         *service.AuthService
	Spots        *service.SpotService
	Reservations *service.ReservationService
	Reconciler   *service.Reconciler
}

func SetupRouter(svc Services, authMw *middleware.AuthMiddleware, reserveLimiter *middleware.RateLimiter,
	wsManager *handler.WebSocketManager) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(gin.Recovery())

	// Realtime feed is public; events carry no credentials.
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(svc.Auth)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		spotH := handler.NewSpotHandler(svc.Spots, svc.Reconciler)
		adminOnly := authMw.AuthorizeRole(domain.RoleAdmin)
		spotRoutes := v1.Group("/spots")
		{
			spotRoutes.GET("", spotH.ListSpots)
			spotRoutes.GET("/:id", spotH.GetSpot)
			spotRoutes.POST("", adminOnly, spotH.CreateSpot)
			spotRoutes.PUT("/:id", adminOnly, spotH.UpdateSpot)
			spotRoutes.DELETE("/:id", adminOnly, spotH.DeleteSpot)
			spotRoutes.POST("/:id/reconcile", adminOnly, spotH.ReconcileSpot)
			spotRoutes.POST("/reconcile", adminOnly, spotH.ReconcileAll)
		}

		profileRoutes := v1.Group("/profile")
		{
			profileRoutes.GET("", authHandler.Profile)
			profileRoutes.PUT("/username", authHandler.UpdateUsername)
		}

		resH := handler.NewReservationHandler(svc.Reservations)
		resRoutes := v1.Group("/reservations")
		{
			resRoutes.POST("", reserveLimiter.Middleware(), resH.Reserve)
			resRoutes.PUT("/check-in", resH.CheckIn)
			resRoutes.PUT("/check-out", resH.CheckOut)
			resRoutes.GET("", resH.List)
			resRoutes.GET("/current", resH.GetCurrent)
			resRoutes.GET("/:id", resH.Get)
			resRoutes.GET("/:id/qr", resH.QRCode)
			resRoutes.DELETE("/:id", resH.Cancel)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// WithCORS wraps the router with the configured CORS policy.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(h)
}
