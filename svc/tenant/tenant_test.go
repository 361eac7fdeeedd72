package tenant_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officekit/accountd/svc/tenant"
)

func TestStatusIsOperational(t *testing.T) {
	t.Parallel()

	assert.True(t, tenant.StatusActive.IsOperational())
	assert.False(t, tenant.StatusProvisioning.IsOperational())
	assert.False(t, tenant.StatusProvisioningFailed.IsOperational())
	assert.False(t, tenant.StatusIncomplete.IsOperational())
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := tenant.FromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, tenant.IDFromContext(ctx))

	ctx = tenant.WithTenant(ctx, tenant.Tenant{ID: "acme-corp"})
	got, ok := tenant.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "acme-corp", got.ID)
	assert.Equal(t, "acme-corp", tenant.IDFromContext(ctx))
}

func TestCacheHitsAvoidLookup(t *testing.T) {
	t.Parallel()

	var calls int
	cache := tenant.NewCache(func(_ context.Context, id string) (tenant.Tenant, error) {
		calls++
		return tenant.Tenant{ID: id, Status: tenant.StatusActive}, nil
	}, 10, time.Minute)

	ctx := context.Background()
	for n := 0; n < 3; n++ {
		got, err := cache.Get(ctx, "acme-corp")
		require.NoError(t, err)
		assert.Equal(t, "acme-corp", got.ID)
	}
	assert.Equal(t, 1, calls)
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	var calls int
	cache := tenant.NewCache(func(_ context.Context, id string) (tenant.Tenant, error) {
		calls++
		return tenant.Tenant{ID: id}, nil
	}, 10, time.Minute)

	ctx := context.Background()
	_, err := cache.Get(ctx, "acme-corp")
	require.NoError(t, err)

	cache.Invalidate("acme-corp")

	_, err = cache.Get(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	var calls int
	cache := tenant.NewCache(func(_ context.Context, id string) (tenant.Tenant, error) {
		calls++
		return tenant.Tenant{ID: id}, nil
	}, 10, 10*time.Millisecond)

	ctx := context.Background()
	_, err := cache.Get(ctx, "acme-corp")
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)

	_, err = cache.Get(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	cache := tenant.NewCache(func(_ context.Context, id string) (tenant.Tenant, error) {
		return tenant.Tenant{ID: id}, nil
	}, 2, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cache.Get(ctx, fmt.Sprintf("tenant-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	var calls int
	cache := tenant.NewCache(func(context.Context, string) (tenant.Tenant, error) {
		calls++
		return tenant.Tenant{}, errors.New("db down")
	}, 10, time.Minute)

	ctx := context.Background()
	_, err := cache.Get(ctx, "acme-corp")
	require.Error(t, err)
	_, err = cache.Get(ctx, "acme-corp")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
