package main

import (
	"resilience-platform/internal/auth"
	"resilience-platform/internal/httpapi"
	"resilience-platform/internal/incident"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW, ready gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/readyz", ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// EVENT routes
		v1.POST("/events", h.IngestEvent)

		// INCIDENT routes
		incidents := v1.Group("/incidents")
		{
			incidents.GET("", h.ListIncidents)
			incidents.GET("/:incident_id", h.GetIncident)
			incidents.GET("/:incident_id/decisions", h.ListDecisions)
			incidents.GET("/:incident_id/similar", h.SimilarIncidents)
			incidents.POST("/:incident_id/retry-evaluation", h.EvaluateRetry)
			incidents.POST("/:incident_id/classify", h.ClassifyIncident)
			incidents.POST("/:incident_id/analyze", h.TransitionIncident(incident.StatusAnalyzing))
			incidents.POST("/:incident_id/resolve", h.TransitionIncident(incident.StatusResolved))
			incidents.POST("/:incident_id/escalate", h.TransitionIncident(incident.StatusEscalated))
			incidents.POST("/:incident_id/ignore", h.TransitionIncident(incident.StatusIgnored))
		}

		// VENDOR routes
		vendors := v1.Group("/vendors")
		{
			vendors.GET("/:vendor_id/circuit-breaker", h.GetVendorBreaker)
			vendors.POST("/:vendor_id/result", h.ReportVendorResult)
		}
		limits := v1.Group("/rate-limits")
		{
			limits.GET("/:vendor_name", h.CheckVendorRateLimit)
			limits.POST("/:vendor_name/consume", h.ConsumeVendorToken)
		}

		// ACTION routes
		v1.POST("/actions/:action_id/transition", h.TransitionAction)

		// ADMIN routes
		// Only operators can touch kill switches.
		admin := v1.Group("/admin")
		admin.Use(auth.RequireRole(auth.RoleOperator))
		{
			admin.GET("/kill-switches", h.ListKillSwitches)
			admin.POST("/kill-switches", h.ActivateKillSwitch)
			admin.POST("/kill-switches/:switch_id/deactivate", h.DeactivateKillSwitch)
		}
	}
}
