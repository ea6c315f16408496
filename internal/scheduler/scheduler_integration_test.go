//go:build integration

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekow-ghana/payroll-core/internal/testutil"
)

func TestPostgresRepository_ListActiveTenants(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	tenant1 := testutil.CreateTestTenant(t, pool)
	tenant2 := testutil.CreateTestTenant(t, pool)

	tenants, err := repo.ListActiveTenants(ctx)
	require.NoError(t, err)

	found1, found2 := false, false
	for _, tn := range tenants {
		if tn.ID == tenant1.ID {
			found1 = true
			require.Equal(t, tenant1.SchemaName, tn.SchemaName)
		}
		if tn.ID == tenant2.ID {
			found2 = true
		}
	}
	require.True(t, found1, "tenant1 not found in active tenants list")
	require.True(t, found2, "tenant2 not found in active tenants list")
}

func TestPostgresRepository_ListActiveTenants_ExcludesInactive(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	activeTenant := testutil.CreateTestTenant(t, pool)

	_, err := pool.Exec(ctx, "UPDATE tenants SET is_active = false WHERE id = $1", activeTenant.ID)
	require.NoError(t, err)

	tenants, err := repo.ListActiveTenants(ctx)
	require.NoError(t, err)

	for _, tn := range tenants {
		require.NotEqual(t, activeTenant.ID, tn.ID, "inactive tenant should not be in active tenants list")
	}
}

func TestScheduler_WithRealRepository(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := NewPostgresRepository(pool)
	config := DefaultConfig()

	s := NewScheduler(repo, nil, nil, nil, config)

	require.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	require.True(t, s.IsRunning())

	ctx := s.Stop()
	require.NotNil(t, ctx)
	require.False(t, s.IsRunning())
}
