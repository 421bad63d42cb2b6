package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trx_discount_back/pkg/converter"
	"trx_discount_back/pkg/middleware"
	"trx_discount_back/pkg/service"
)

type Handler struct {
	service   *service.Service
	converter *converter.Converter
	origins   []string
	token     string
}

// NewHandler serves s. An empty token leaves the state-changing routes open.
func NewHandler(s *service.Service, origins []string, token string) *Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return &Handler{
		service:   s,
		converter: converter.NewConverter(s.Config.DiscountFactor),
		origins:   origins,
		token:     token,
	}
}

func (h *Handler) InitRoute() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     h.origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.TokenHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/rate", h.GetRate)
		api.POST("/convert", h.Convert)
		api.POST("/input", h.SetInput)
		api.GET("/balance", h.GetBalance)
		api.GET("/transfers", h.GetTransfers)
		api.GET("/payment-request", h.GetPaymentRequest)

		wallet := api.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.GET("/stream", h.StreamWallet)
		}

		purchase := api.Group("/purchase")
		{
			purchase.GET("/status", h.GetPurchaseStatus)
		}

		guarded := api.Group("", middleware.TokenMiddleware(h.token))
		{
			guarded.POST("/rate/refresh", h.RefreshRate)
			guarded.POST("/wallet/reconnect", h.ReconnectWallet)
			guarded.POST("/purchase", h.Purchase)
			guarded.POST("/copy", h.Copy)
		}
	}
	return router
}
