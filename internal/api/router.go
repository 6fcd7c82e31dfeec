package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/hospital-ops/internal/auth"
	"github.com/mesikahq/hospital-ops/internal/config"
	"github.com/mesikahq/hospital-ops/internal/middleware"
)

type Router struct {
	handler     *Handler
	authService auth.Service
	cfg         *config.Config
}

func NewRouter(handler *Handler, authService auth.Service, cfg *config.Config) *Router {
	return &Router{
		handler:     handler,
		authService: authService,
		cfg:         cfg,
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggerMiddleware(logger),
		middleware.RateLimitMiddleware(rate.Limit(r.cfg.RateLimit.RequestsPerSecond), r.cfg.RateLimit.Burst),
		middleware.CORSMiddleware(r.cfg.AllowedOrigins),
		middleware.AuditContextMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", r.handler.Login)
			authGroup.POST("/refresh", r.handler.RefreshToken)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(r.authService))
		{
			user := protected.Group("/user")
			{
				user.GET("/profile", r.handler.GetProfile)
				user.PUT("/password", r.handler.ChangePassword)
			}

			users := protected.Group("/users")
			users.Use(middleware.RoleMiddleware("admin"))
			{
				users.GET("", r.handler.ListUsers)
				users.POST("", r.handler.RegisterUser)
				users.DELETE("/:id", r.handler.DeactivateUser)
			}

			patients := protected.Group("/patients")
			{
				patients.GET("", r.handler.ListPatients)
				patients.POST("", r.handler.RegisterPatient)
				patients.GET("/:id", r.handler.GetPatient)
				patients.PUT("/:id", r.handler.UpdatePatient)
				patients.DELETE("/:id", r.handler.ArchivePatient)
				patients.GET("/:id/medical-records", r.handler.PatientHistory)
			}

			providers := protected.Group("/providers")
			{
				providers.GET("", r.handler.ListProviders)
				providers.POST("", r.handler.RegisterProvider)
				providers.GET("/:id", r.handler.GetProvider)
				providers.DELETE("/:id", r.handler.DeactivateProvider)
			}

			appointments := protected.Group("/appointments")
			{
				appointments.GET("", r.handler.ListAppointments)
				appointments.POST("", r.handler.BookAppointment)
				appointments.GET("/:id", r.handler.GetAppointment)
				appointments.POST("/:id/cancel", r.handler.CancelAppointment)
				appointments.POST("/:id/complete", r.handler.CompleteAppointment)
				appointments.POST("/:id/reschedule", r.handler.RescheduleAppointment)
			}

			bills := protected.Group("/bills")
			{
				bills.GET("", r.handler.ListBills)
				bills.POST("", r.handler.GenerateBill)
				bills.GET("/:id", r.handler.GetBill)
				bills.POST("/:id/pay", r.handler.PayBill)
				bills.POST("/:id/void", r.handler.VoidBill)
			}

			records := protected.Group("/medical-records")
			{
				records.POST("", r.handler.AddMedicalRecord)
				records.GET("/:id", r.handler.GetMedicalRecord)
			}

			reports := protected.Group("/reports")
			{
				reports.GET("/patients", r.handler.PatientStatistics)
				reports.GET("/appointments", r.handler.AppointmentAnalytics)
				reports.GET("/financial", r.handler.FinancialReport)
				reports.GET("/medical", r.handler.MedicalAnalytics)
				reports.GET("/dashboard", r.handler.Dashboard)
				reports.GET("/export", r.handler.ExportData)
			}

			auditGroup := protected.Group("/audit")
			auditGroup.Use(middleware.RoleMiddleware("admin"))
			{
				auditGroup.GET("/logs", r.handler.GetAuditLogs)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}
