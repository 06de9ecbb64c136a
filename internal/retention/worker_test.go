package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/codeando/internal/domain"
	"github.com/ashureev/codeando/internal/metrics"
	"github.com/ashureev/codeando/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo *storetest.Repo, id string, lastSeen time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.UpsertUser(ctx, &domain.User{UserID: id, LastSeenAt: lastSeen}))
	require.NoError(t, repo.SaveProgress(ctx, &domain.Progress{
		UserID: id, Kind: domain.KindLesson, Slug: "html-base", UpdatedAt: lastSeen,
	}))
}

func TestSweep_DeletesIdleUsers(t *testing.T) {
	repo := storetest.New()
	now := time.Now()
	seed(t, repo, "old", now.Add(-200*24*time.Hour))
	seed(t, repo, "fresh", now.Add(-time.Hour))

	users, progress := Sweep(context.Background(), repo, metrics.NewMetrics(), 180*24*time.Hour)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), progress)

	old, err := repo.GetUser(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, old)
	fresh, err := repo.GetUser(context.Background(), "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestSweep_ErrorIsSwallowed(t *testing.T) {
	repo := storetest.New()
	repo.Fail(errors.New("disk full"))

	users, progress := Sweep(context.Background(), repo, nil, time.Hour)
	assert.Zero(t, users)
	assert.Zero(t, progress)
}

func TestStartWorker_RunsOnTickAndStops(t *testing.T) {
	repo := storetest.New()
	seed(t, repo, "old", time.Now().Add(-48*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartWorker(ctx, repo, nil, 24*time.Hour, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		u, err := repo.GetUser(context.Background(), "old")
		return err == nil && u == nil
	}, 2*time.Second, 10*time.Millisecond)
}
