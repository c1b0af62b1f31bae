package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pribylovaa/go-community-board/internal/models"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/redis -v -race -count=1

func startRedis(t *testing.T) (*Storage, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	st, err := New(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "test:rt:")
	require.NoError(t, err)

	cleanup := func() {
		_ = st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

func rt(subject, hash string, ttl time.Duration) *models.RefreshToken {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.RefreshToken{Subject: subject, TokenHash: hash, ExpiresAt: now.Add(ttl), UpdatedAt: now}
}

func TestIntegration_Put_Get_ByValue(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	in := rt("a@x.com", "h1", time.Hour)
	require.NoError(t, st.PutRefreshToken(ctx, in))

	got, err := st.RefreshToken(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, *in, *got)

	byVal, err := st.RefreshTokenByValue(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", byVal.Subject)
}

func TestIntegration_Put_Overwrites_AndDropsOldIndex(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, st.PutRefreshToken(ctx, rt("a@x.com", "h1", time.Hour)))
	require.NoError(t, st.PutRefreshToken(ctx, rt("a@x.com", "h2", time.Hour)))

	got, err := st.RefreshToken(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "h2", got.TokenHash)

	_, err = st.RefreshTokenByValue(ctx, "h1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	exists, err := st.rdb.Exists(ctx, st.valKey("h1")).Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}

func TestIntegration_Delete_Idempotent(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, st.PutRefreshToken(ctx, rt("a@x.com", "h1", time.Hour)))

	require.NoError(t, st.DeleteRefreshToken(ctx, "a@x.com"))
	require.NoError(t, st.DeleteRefreshToken(ctx, "a@x.com"))

	_, err := st.RefreshToken(ctx, "a@x.com")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = st.RefreshTokenByValue(ctx, "h1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_KeysExpireWithRecord(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, st.PutRefreshToken(ctx, rt("a@x.com", "h1", time.Hour)))

	ttl, err := st.rdb.TTL(ctx, st.subKey("a@x.com")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 59*time.Minute)

	ttl, err = st.rdb.TTL(ctx, st.valKey("h1")).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 59*time.Minute)

	n, err := st.DeleteExpiredTokens(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, n)
}
