package handler

import (
	"coinmarket/internal/config"
	"coinmarket/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(svc *service.Services, cfg *config.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.Server))

	h := NewHandler(svc)

	api := r.Group("/api/v1", AuthMiddleware(cfg.Auth))
	{
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/leaderboard", h.Leaderboard)
		}

		income := api.Group("/income")
		{
			income.GET("/status", h.IncomeStatus)
			income.POST("/claim", h.ClaimIncome)
		}

		cart := api.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.POST("/items", h.AddCartItem)
			cart.PUT("/items/:product_id", h.SetCartQuantity)
			cart.DELETE("", h.ClearCart)
		}

		api.POST("/checkout", h.Checkout)

		market := api.Group("/market")
		{
			market.GET("", h.ListProducts)
			market.GET("/:product_id", h.GetProduct)
			market.POST("/:product_id/buy", h.BuyNow)
		}

		api.GET("/inventory", h.ListInventory)

		orders := api.Group("/orders")
		{
			orders.GET("", h.ListOrders)
			orders.GET("/:order_no", h.GetOrder)
		}

		admin := api.Group("/admin", RequireRole(RoleAdmin))
		{
			admin.POST("/products", h.CreateProduct)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
