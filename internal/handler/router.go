package handler

import (
	"cafeteria/internal/config"
	"cafeteria/internal/infrastructure/lock"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, locker lock.Locker, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(MetricsMiddleware())

	h := NewHandler(db, locker, cfg)

	api := r.Group("/api/v1")
	{
		employee := api.Group("/employee")
		{
			employee.POST("/register", h.Register)
			employee.GET("/detail", h.GetEmployee)
			employee.GET("/list", h.ListEmployees)
		}

		ledger := api.Group("/ledger")
		{
			ledger.POST("/deposit", h.Deposit)
			ledger.POST("/charge", h.Charge)
			ledger.GET("/history", h.GetHistory)
			ledger.GET("/statement", h.GetStatement)
			ledger.GET("/reconcile", h.Reconcile)
		}

		order := api.Group("/order")
		{
			order.POST("/place", h.PlaceOrder)
			order.GET("/detail", h.GetOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/status", h.UpdateOrderStatus)
			order.POST("/cancel", h.CancelOrder)
		}

		restaurant := api.Group("/restaurant")
		{
			restaurant.POST("/add", h.AddRestaurant)
			restaurant.GET("/list", h.ListRestaurants)
			restaurant.GET("/detail", h.GetRestaurant)
			restaurant.POST("/menu/add", h.AddMenuItem)
			restaurant.GET("/menu/list", h.ListMenuItems)
			restaurant.POST("/menu/availability", h.SetMenuItemAvailability)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
