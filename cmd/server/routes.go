package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"school-onboarding.backend/internal/interfaces/http/handlers"
	"school-onboarding.backend/internal/interfaces/http/middleware"
)

const (
	serviceName    = "school-onboarding-backend"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	authHandler     *handlers.AuthHandler
	profileHandler  *handlers.ProfileHandler
	approvalHandler *handlers.ApprovalHandler
	adminHandler    *handlers.AdminHandler
	authMiddleware  gin.HandlerFunc
	idempotencyTTL  time.Duration
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID, X-Session-ID")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

// registerHealthRoute reports degraded rather than failing when the
// database does not answer a ping.
func registerHealthRoute(r *gin.Engine, db *gorm.DB) {
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", middleware.IdempotencyMiddleware(d.idempotencyTTL), d.authHandler.Register)
			auth.POST("/verify-email", d.authHandler.VerifyEmail)
			auth.POST("/resend-verification", d.authHandler.ResendVerification)
			auth.POST("/login", d.authHandler.Login)
			auth.GET("/me", d.authMiddleware, d.authHandler.GetMe)
		}

		profiles := v1.Group("/profiles")
		profiles.Use(d.authMiddleware)
		{
			profiles.GET("/me", d.profileHandler.GetMyProfile)
		}

		// Review routes (approved admins and teachers)
		approvals := v1.Group("/approvals")
		approvals.Use(d.authMiddleware)
		{
			reviewer := middleware.RequireReviewer()
			approvals.GET("/pending", reviewer, d.approvalHandler.ListPending)
			approvals.POST("/bulk/approve", reviewer, middleware.IdempotencyMiddleware(d.idempotencyTTL), d.approvalHandler.BulkApprove)
			approvals.POST("/bulk/reject", reviewer, middleware.IdempotencyMiddleware(d.idempotencyTTL), d.approvalHandler.BulkReject)
			approvals.POST("/:id/approve", reviewer, d.approvalHandler.Approve)
			approvals.POST("/:id/reject", reviewer, d.approvalHandler.Reject)
			// owners may read their own history
			approvals.GET("/:id/history", d.approvalHandler.History)
		}

		admin := v1.Group("/admin")
		admin.Use(d.authMiddleware, middleware.RequireAdmin())
		{
			admin.DELETE("/profiles/:id", d.adminHandler.DeleteProfile)
			admin.POST("/accounts/:id/provision", d.adminHandler.ProvisionAccount)
		}
	}
}
