package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/obs"
)

type Handlers struct {
	Booking        BookingHandler
	Property       PropertyHandler
	Admin          AdminHandler
	AuthMiddleware gin.HandlerFunc
}

// NewRouter builds the gin engine with the /api/v1 routes.
func NewRouter(env string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}
	router.Use(obsMW.AccessLog())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")

	bookings := api.Group("/bookings")
	bookings.POST("", h.Booking.Create)
	bookings.GET("/:id", h.Booking.Get)
	bookings.POST("/:id/approve", h.Booking.Approve)
	bookings.POST("/:id/payment-proof", h.Booking.UploadProof)
	bookings.POST("/:id/mark-paid", h.Booking.MarkPaid)
	bookings.POST("/:id/confirm-payment", h.Booking.ConfirmPayment)
	bookings.POST("/:id/reject-payment", h.Booking.RejectPayment)
	bookings.POST("/:id/cancel", h.Booking.Cancel)
	bookings.POST("/:id/complete", h.Booking.Complete)

	api.GET("/me/bookings", h.Booking.ListMine)
	api.GET("/host/properties/:id/bookings", h.Property.Bookings)
	api.GET("/properties/:id/availability", h.Property.Availability)
	api.GET("/properties/:id/quote", h.Property.Quote)

	api.POST("/admin/sweeps/payments", h.Admin.SweepPayments)

	return router
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
