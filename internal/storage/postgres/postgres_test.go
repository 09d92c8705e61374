package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/chronicle/internal/storage/postgres"
	"github.com/cory-johannsen/chronicle/internal/testutil"
)

func TestPool_Health(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pc.Pool.Health(ctx, 5*time.Second)
	assert.ErrorContains(t, err, "counting campaigns", "campaigns table does not exist before migrations")

	pc.ApplyMigrations(t)
	st, err := pc.Pool.Health(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Zero(t, st.Campaigns)
	assert.GreaterOrEqual(t, st.TotalConns, int32(1))

	repo := postgres.NewCampaignRepository(pc.RawPool)
	for _, id := range []string{uniqueID("health_a"), uniqueID("health_b")} {
		_, err := repo.CreateCampaign(ctx, id, map[string]any{})
		require.NoError(t, err)
	}
	st, err = pc.Pool.Health(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Campaigns)

	var app string
	require.NoError(t, pc.RawPool.QueryRow(ctx, `SELECT current_setting('application_name')`).Scan(&app))
	assert.Equal(t, postgres.ApplicationName, app)
}
