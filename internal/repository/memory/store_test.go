package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustBalanceKeepsCents(t *testing.T) {
	s := New()
	ctx := context.Background()
	tenant, _ := s.SeedTenant("Paula")
	before, err := s.Repositories().Tenants.Get(ctx, tenant.ID)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Repositories().Tenants.AdjustBalance(ctx, tenant.ID, 0.1))
	}
	require.NoError(t, s.Repositories().Tenants.AdjustBalance(ctx, tenant.ID, -0.35))

	got, err := s.Repositories().Tenants.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.65, got.AccountBalance)
	assert.Equal(t, before.Version+11, got.Version)
}
