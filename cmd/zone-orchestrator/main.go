package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/zone-orchestrator/internal/api/http"
	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/credentials"
	"github.com/EternisAI/zone-orchestrator/internal/db"
	"github.com/EternisAI/zone-orchestrator/internal/okta"
	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/EternisAI/zone-orchestrator/internal/poll"
	"github.com/EternisAI/zone-orchestrator/internal/provider"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/EternisAI/zone-orchestrator/internal/workflow"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Zone Orchestrator", "version", AppVersion)

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.AWS.Region))
	if err != nil {
		slog.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}

	if config.Jenkins.TokenSecretARN != "" {
		if err := loadJenkinsSecret(ctx, secretsmanager.NewFromConfig(awsCfg), &config.Jenkins); err != nil {
			slog.Error("Failed to load Jenkins credentials", "error", err)
			os.Exit(1)
		}
	}

	credStore := credentials.NewStore(config.AWS.CredentialTTL, config.AWS.UseAssumedRoles)
	defer credStore.Close()

	var roles workflow.RoleAssumer
	if config.AWS.UseAssumedRoles {
		roles = credentials.NewRoleAssumer(sts.NewFromConfig(awsCfg), credStore)
	}

	statuses, closeStatuses, err := newStatusStore(ctx)
	if err != nil {
		slog.Error("Failed to initialise status store", "backend", config.State.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStatuses()

	trigger := pipeline.NewJenkinsTrigger(config.Jenkins)
	pollOptions := []poll.Option{
		poll.WithInterval(config.Poll.Interval),
		poll.WithTimeout(config.Poll.Timeout),
	}
	connect := cluster.NewConnector(config.State.Path, credStore)

	engine := workflow.NewEngine(workflow.Deps{
		Descriptors: zonepartner.NewRepository(config.State.Path),
		Statuses:    statuses,
		Resolve: provider.NewResolver(provider.Deps{
			Trigger:     trigger,
			Connect:     connect,
			PollOptions: pollOptions,
		}),
		Connect: connect,
		Roles:   roles,
	}, workflow.Config{
		UseAssumedRoles: config.AWS.UseAssumedRoles,
		PollOptions:     pollOptions,
		Workbench:       config.Workbench,
	})

	services := &internalhttp.Services{
		Workflows:   engine,
		Statuses:    statuses,
		Credentials: credStore,
		Ready: func() error {
			if !trigger.Configured() {
				return pipeline.ErrNotConfigured
			}
			return nil
		},
		LogLevel: config.Log.Level,
	}
	if config.Okta.Enabled {
		introspector, err := okta.NewClient(config.Okta)
		if err != nil {
			slog.Error("Failed to initialise Okta client", "error", err)
			os.Exit(1)
		}
		services.Introspector = introspector
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gin.Recovery())
	internalhttp.SetupRoute(router, config.Http, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down...")
	shutdownTimeout := 10 * time.Second

	httpCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	engineCtx, cancelEngine := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelEngine()
	if err := engine.Shutdown(engineCtx); err != nil {
		slog.Error("Workflow engine shutdown error", "error", err)
	} else {
		slog.Info("Workflow engine stopped")
	}

	slog.Info("Shutdown complete")
}

func newStatusStore(ctx context.Context) (status.Store, func(), error) {
	switch config.State.Backend {
	case STATE_BACKEND_POSTGRES:
		if err := db.RunMigrations(ctx, config.DB); err != nil {
			return nil, nil, err
		}
		pool, err := db.InitDB(ctx, config.DB)
		if err != nil {
			return nil, nil, err
		}
		return status.NewPostgresStore(pool), pool.Close, nil
	case STATE_BACKEND_FILE, "":
		return status.NewFileStore(config.State.Path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", config.State.Backend)
	}
}
