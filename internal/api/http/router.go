package http

import (
	"github.com/EternisAI/zone-orchestrator/internal/api/http/handler"
	"github.com/EternisAI/zone-orchestrator/internal/api/http/middleware"
	"github.com/EternisAI/zone-orchestrator/internal/credentials"
	"github.com/EternisAI/zone-orchestrator/internal/okta"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Workflows   handler.Workflows
	Statuses    status.Store
	Credentials *credentials.Store
	// Introspector, when set, guards the zone partner, workbench and status routes.
	Introspector okta.Introspector
	Ready        handler.ReadinessCheck
	LogLevel     string
}

func SetupRoute(engine *gin.Engine, cfg Config, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler(srvs.Ready, srvs.LogLevel)
	engine.GET("/health", healthHandler.Check)
	engine.GET("/readiness", healthHandler.Readiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := engine.Group("")
	if srvs.Introspector != nil {
		protected.Use(middleware.TokenAuth(srvs.Introspector))
	}

	zonePartnerHandler := handler.NewZonePartnerHandler(srvs.Workflows)
	zonePartners := protected.Group("/zone-partners")
	zonePartners.POST("", zonePartnerHandler.Create)
	zonePartners.PUT("/:partner_id", zonePartnerHandler.Update)
	zonePartners.DELETE("/:partner_id", zonePartnerHandler.Delete)
	zonePartners.POST("/re-deploy/:partner_id", zonePartnerHandler.Redeploy)

	mlWorkbenchHandler := handler.NewMLWorkbenchHandler(srvs.Workflows)
	protected.POST("/ml-workbench/deploy", mlWorkbenchHandler.Deploy)

	statusHandler := handler.NewStatusHandler(srvs.Statuses)
	protected.GET("/status/:partner_id", statusHandler.Get)

	credentialsHandler := handler.NewCredentialsHandler(srvs.Credentials)
	auth := engine.Group("/auth")
	auth.Use(middleware.APIKeyAuth(cfg.AdminAPIKey))
	auth.POST("/set_aws_credentials", credentialsHandler.SetAWSCredentials)
}
