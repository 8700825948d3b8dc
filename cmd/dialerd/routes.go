package main

import (
	"database/sql"
	"time"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/telephony"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authManager *auth.Manager, observer telephony.StatusObserver, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: This endpoint should be protected by provider signature validation in production.
	wh := telephony.StatusWebhookHandler{Observer: observer}
	r.POST("/webhooks/provider/status", wh.HandleStatusCallback)

	r.POST("/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(authManager))
	v1.Use(rbac.RequireTeam())
	{
		v1.GET("/me", func(c *gin.Context) {
			aid, _ := auth.AgentID(c.Request.Context())
			tid, _ := auth.TeamID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"agent_id": aid, "team_id": tid, "role": role})
		})

		// CALL routes
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor))
		{
			calls.GET("", h.ListSessions)
			calls.POST("", h.PlaceCall)
			calls.POST("/hangup", h.HangupAll)
			calls.POST("/:subject_id/hangup", h.Hangup)
			calls.POST("/:subject_id/mute", h.ToggleMute)
			calls.POST("/:subject_id/speaker", h.ToggleSpeaker)
		}

		// CONFERENCE routes
		v1.POST("/conference/join",
			rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor), h.JoinConference)

		// QUEUE routes: agents pull, supervisors push
		queueGroup := v1.Group("/queue")
		{
			queueGroup.POST("", rbac.RequireAnyRole(rbac.RoleSupervisor), h.Enqueue)
			queueGroup.POST("/next", rbac.RequireAnyRole(rbac.RoleAgent), h.DequeueNext)
			queueGroup.GET("/pending",
				rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor), h.PendingCount)
		}

		// AGENT routes
		agents := v1.Group("/agents")
		{
			agents.POST("/register", rbac.RequireAnyRole(rbac.RoleAgent), h.RegisterAgent)
			agents.POST("/offline", rbac.RequireAnyRole(rbac.RoleAgent), h.AgentOffline)
			agents.GET("", rbac.RequireAnyRole(rbac.RoleSupervisor), h.ListAgents)
		}

		// AUTO DIALER routes
		dialerGroup := v1.Group("/dialer")
		dialerGroup.Use(rbac.RequireAnyRole(rbac.RoleAgent))
		{
			dialerGroup.POST("/start", h.StartDialer)
			dialerGroup.POST("/stop", h.StopDialer)
		}

		// REPORTING routes
		v1.GET("/reports/dials",
			rbac.RequireAnyRole(rbac.RoleSupervisor), h.DialSummary)
	}
}
