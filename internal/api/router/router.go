package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sorsulyap/backend/config"
	"sorsulyap/backend/internal/api/handler"
	"sorsulyap/backend/internal/api/middleware"
	"sorsulyap/backend/internal/model"
	"sorsulyap/backend/pkg/jwt"
	"sorsulyap/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	staff := middleware.RoleAuth(model.RoleAdmin, model.RoleFaculty)
	admin := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login",
			middleware.RateLimit(rdb, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow),
			h.Auth.Login,
		)

		// 公开内容
		v1.GET("/events", h.Event.ListEvents)
		v1.GET("/events/calendar.ics", h.Event.Calendar)
		v1.GET("/events/:id", h.Event.GetEvent)
		v1.GET("/announcements", h.Announcement.ListAnnouncements)
		v1.GET("/announcements/:id", h.Announcement.GetAnnouncement)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 活动模块
			events := authorized.Group("/events", staff)
			{
				events.POST("", h.Event.CreateEvent)
				events.PUT("/:id", h.Event.UpdateEvent)
				events.DELETE("/:id", h.Event.DeleteEvent)
			}

			// 公告模块
			announcements := authorized.Group("/announcements", staff)
			{
				announcements.POST("", h.Announcement.CreateAnnouncement)
				announcements.PUT("/:id", h.Announcement.UpdateAnnouncement)
				announcements.DELETE("/:id", h.Announcement.DeleteAnnouncement)
			}

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListNotifications)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
				notifications.PUT("/:id/unread", h.Notification.MarkUnread)
				notifications.DELETE("/:id", h.Notification.DeleteNotification)
				notifications.POST("/broadcast", admin, h.Notification.Broadcast)
				notifications.GET("/report", admin, h.Notification.Report)
			}

			// 通知面板
			panel := authorized.Group("/panel")
			{
				panel.GET("", h.Panel.GetPanel)
				panel.POST("/read-all", h.Panel.ReadAll)
				panel.POST("/items/:id/toggle-read", h.Panel.ToggleRead)
				panel.DELETE("/items/:id", h.Panel.RemoveItem)
			}

			// 用户模块
			users := authorized.Group("/users")
			{
				users.PUT("/profile", h.User.UpdateProfile)
				users.PUT("/change-password", h.User.ChangePassword)
				users.GET("", admin, h.User.ListUsers)
				users.GET("/:id", admin, h.User.GetUser)
				users.PUT("/:id/activate", admin, h.User.Activate)
				users.PUT("/:id/deactivate", admin, h.User.Deactivate)
				users.PUT("/:id/approve", admin, h.User.Approve)
			}
		}
	}

	return r
}
