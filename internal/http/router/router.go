package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/youth-governance-backend/internal/config"
	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers"
	"github.com/ignatzorin/youth-governance-backend/internal/http/middleware"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// webhookMaxBodyBytes bounds a Zapier batch (1000 flat rows fit comfortably).
const webhookMaxBodyBytes = 4 << 20

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Proposals     *handlers.ProposalHandler
	YouthProfiles *handlers.YouthProfileHandler
	Notifications *handlers.NotificationHandler
	Dashboards    *handlers.DashboardHandler
	Committees    *handlers.CommitteeHandler
	Activity      *handlers.ActivityHandler
	Users         *handlers.UserHandler
	Webhooks      *handlers.WebhookHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokenManager *service.TokenManager,
	m *metrics.Metrics,
	metricsHandler http.Handler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.Metrics(m))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/sessions", h.Auth.ListSessions)
		protectedAuth.DELETE("/sessions/:id", middleware.UUIDValidator("id"), h.Auth.DeleteSession)
		protectedAuth.DELETE("/sessions", h.Auth.DeleteAllSessionsExcept)
	}

	// Public routes
	api.GET("/committees", h.Committees.ListCommittees)
	api.GET("/ws", h.WS.Handle)

	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit*10, cfg.RateLimitPeriod))
	webhooks.POST("/zapier/youth-profiles",
		middleware.ZapierSignature(cfg.ZapierWebhookSecret, webhookMaxBodyBytes),
		h.Webhooks.ImportYouthProfiles)

	// Any authenticated user
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/me/dashboard", h.Dashboards.MySummary)

		protected.GET("/proposals", h.Proposals.ListProposals)
		protected.POST("/proposals", h.Proposals.CreateProposal)
		protected.GET("/proposals/:id", middleware.UUIDValidator("id"), h.Proposals.GetProposal)
		protected.PUT("/proposals/:id", middleware.UUIDValidator("id"), h.Proposals.UpdateProposal)
		protected.DELETE("/proposals/:id", middleware.UUIDValidator("id"), h.Proposals.DeleteProposal)
		protected.POST("/proposals/:id/submit", middleware.UUIDValidator("id"), h.Proposals.SubmitProposal)
		protected.GET("/proposals/:id/attachments", middleware.UUIDValidator("id"), h.Proposals.ListAttachments)
		protected.POST("/proposals/:id/attachments", middleware.UUIDValidator("id"), h.Proposals.UploadAttachment)
		protected.GET("/proposals/:id/attachments/:attachmentId", middleware.UUIDValidator("id"), middleware.UUIDValidator("attachmentId"), h.Proposals.DownloadAttachment)
		protected.DELETE("/proposals/:id/attachments/:attachmentId", middleware.UUIDValidator("id"), middleware.UUIDValidator("attachmentId"), h.Proposals.DeleteAttachment)

		protected.GET("/youth-profiles/draft", h.YouthProfiles.GetDraft)
		protected.PUT("/youth-profiles/draft", h.YouthProfiles.SaveDraft)
		protected.GET("/youth-profiles/me", h.YouthProfiles.GetMine)
		protected.POST("/youth-profiles/:id/submit", middleware.UUIDValidator("id"), h.YouthProfiles.Submit)

		protected.GET("/notifications", h.Notifications.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notifications.CountUnread)
		protected.GET("/notifications/:id", middleware.UUIDValidator("id"), h.Notifications.GetNotification)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), h.Notifications.DeleteNotification)
	}

	// Staff and admins
	review := api.Group("/admin")
	review.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleStaff, models.RoleAdmin))
	{
		review.POST("/proposals/:id/approve", middleware.UUIDValidator("id"), h.Proposals.ApproveProposal)
		review.POST("/proposals/:id/reject", middleware.UUIDValidator("id"), h.Proposals.RejectProposal)

		review.GET("/youth-profiles/pending", h.YouthProfiles.ListPending)
		review.GET("/youth-profiles/pending/:id", middleware.UUIDValidator("id"), h.YouthProfiles.GetPending)
		review.POST("/youth-profiles/pending/:id/approve", middleware.UUIDValidator("id"), h.YouthProfiles.Approve)
		review.POST("/youth-profiles/pending/:id/reject", middleware.UUIDValidator("id"), h.YouthProfiles.Reject)
		review.GET("/youth-profiles/records", h.YouthProfiles.ListRecords)
		review.GET("/youth-profiles/records/:id", middleware.UUIDValidator("id"), h.YouthProfiles.GetRecord)

		review.GET("/dashboard", h.Dashboards.AdminSummary)
		review.GET("/activity-logs", h.Activity.ListActivity)
		review.GET("/activity-logs/:subjectType/:subjectId", h.Activity.SubjectHistory)
	}

	// Admins only
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", h.Users.ListUsers)
		admin.POST("/users", h.Users.CreateUser)
		admin.PUT("/users/:id/active", middleware.UUIDValidator("id"), h.Users.SetActive)
		admin.POST("/committees", h.Committees.CreateCommittee)
		admin.PUT("/committees/:id", middleware.UUIDValidator("id"), h.Committees.UpdateCommittee)
	}

	return r
}
