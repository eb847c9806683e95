package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"creditdesk/internal/auth"
	"creditdesk/internal/config"
	"creditdesk/internal/infrastructure/lock"
	"creditdesk/internal/model"
	"creditdesk/internal/repository"
	"creditdesk/internal/service"
	"creditdesk/pkg/clock"
)

// SetupRouter 装配依赖并配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, clk *clock.Clock, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	store := repository.NewStore(db)
	tokenTTL := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenTTL)
	gate := auth.NewGate(tokens, store, auth.CookieOptions{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.Auth.CookieSecure,
	})

	transfer := service.NewTransferService(store, lock.NewTransferLocker(rdb), clk, cfg.Kafka.Topic.CreditEvents)
	accounts := service.NewAccountService(store, tokens, transfer, clk)

	h := NewHandler(accounts, gate, int(tokenTTL.Seconds()))

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", h.Login)

		// 建号：admin 建 admin/subadmin，subadmin 建 user
		signup := api.Group("/signup")
		{
			signup.POST("/admin", gate.RequireRole(model.RoleAdmin), h.SignUpAdmin)
			signup.POST("/subadmin", gate.RequireRole(model.RoleAdmin), h.SignUpSubAdmin)
			signup.POST("/user", gate.RequireRole(model.RoleSubAdmin), h.SignUpUser)
		}

		// 账户变更与视图
		account := api.Group("/account")
		{
			account.PUT("/admin/:uuid", gate.RequireRole(model.RoleAdmin), h.UpdateAdmin)
			account.PUT("/subadmin/:uuid", gate.RequireRole(model.RoleAdmin), h.UpdateSubAdmin)
			account.PUT("/user/:uuid", gate.RequireRole(model.RoleSubAdmin), h.UpdateUser)
			account.GET("/balance", gate.RequireRole(model.RoleSubAdmin), h.GetBalance)
			account.GET("/history", gate.RequireRole(model.RoleSubAdmin), h.GetHistory)
		}

		// 自助维护
		profile := api.Group("/profile", gate.RequireRole(model.RoleUser))
		{
			profile.GET("", h.GetProfile)
			profile.POST("/username", h.ChangeUsername)
			profile.POST("/name", h.ChangeName)
			profile.POST("/password", h.ChangePassword)
			profile.POST("/commission", h.ChangeCommission)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
