package systemtest

import (
	"context"
	"testing"

	"github.com/EternisAI/zone-orchestrator/internal/db"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/EternisAI/zone-orchestrator/systemtest/postgres"
	"github.com/EternisAI/zone-orchestrator/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping system test in short mode")
	}
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	instance, err := postgres.Start(ctx, "zone_orchestrator", "orchestrator")
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = instance.Terminate(context.Background())
	})

	cfg := instance.Config
	require.NoError(t, db.RunMigrations(ctx, cfg))
	// applying twice must be a no-op
	require.NoError(t, db.RunMigrations(ctx, cfg))

	pool, err := db.InitDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := status.NewPostgresStore(pool)
	env := tests.NewEnvironment(t, store)

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, env.Router) })
	t.Run("StatusStore", func(t *testing.T) { tests.TestStatusStore(t, store) })
	t.Run("ZonePartnerLifecycle", func(t *testing.T) { tests.TestZonePartnerLifecycle(t, env) })
	t.Run("ZonePartnerRejections", func(t *testing.T) { tests.TestZonePartnerRejections(t, env) })
	t.Run("Credentials", func(t *testing.T) { tests.TestSetAWSCredentials(t, env) })
}
