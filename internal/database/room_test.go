package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/thereayou/matchmaker/internal/matchmaking"
	"github.com/thereayou/matchmaker/internal/models"
)

// setupDatabase поднимает Postgres в контейнере. Без Docker тест пропускается.
func setupDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("matchmaker"),
		tcpostgres.WithUsername("matchmaker"),
		tcpostgres.WithPassword("matchmaker"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	d := &Database{}
	require.NoError(t, d.Connect(dsn))
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func seed(t *testing.T, d *Database, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := d.Upsert(context.Background(), models.Room{
			Name:      name,
			MemberIDs: []string{"p-" + name},
			CreatedBy: "p-" + name,
		})
		require.NoError(t, err)
	}
}

func TestDatabase(t *testing.T) {
	d := setupDatabase(t)
	ctx := context.Background()

	reset := func(t *testing.T) {
		t.Helper()
		require.NoError(t, d.db.Exec("TRUNCATE matchmaking_rooms").Error)
		d.WithClock(time.Now)
	}

	t.Run("upsert keeps creator and target", func(t *testing.T) {
		reset(t)
		seed(t, d, "A", "B")
		require.NoError(t, d.SetTarget(ctx, "A", "B"))

		room, err := d.Upsert(ctx, models.Room{Name: "A", MemberIDs: []string{"x", "y"}, CreatedBy: "x"})
		require.NoError(t, err)
		assert.Equal(t, "p-A", room.CreatedBy)
		assert.Equal(t, "B", room.Target())
		assert.Equal(t, []string{"x", "y"}, []string(room.MemberIDs))
	})

	t.Run("set target is all or nothing", func(t *testing.T) {
		reset(t)
		seed(t, d, "A", "B", "C")

		require.NoError(t, d.SetTarget(ctx, "A", "B"))
		assert.ErrorIs(t, d.SetTarget(ctx, "C", "B"), matchmaking.ErrConflictLost)
		assert.ErrorIs(t, d.SetTarget(ctx, "C", "nope"), matchmaking.ErrRoomNotFound)

		c, err := d.Get(ctx, "C")
		require.NoError(t, err)
		assert.False(t, c.Matched())
	})

	t.Run("concurrent set target has one winner", func(t *testing.T) {
		reset(t)
		seed(t, d, "hub", "r1", "r2", "r3", "r4")

		var wg sync.WaitGroup
		results := make([]error, 4)
		for i, name := range []string{"r1", "r2", "r3", "r4"} {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				results[i] = d.SetTarget(ctx, name, "hub")
			}(i, name)
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, matchmaking.ErrConflictLost)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("find by player and oldest waiting", func(t *testing.T) {
		reset(t)
		seed(t, d, "A", "B", "C")

		_, err := d.FindByPlayer(ctx, "p-A")
		assert.ErrorIs(t, err, matchmaking.ErrRoomNotFound)

		oldest, err := d.FindOldestWaiting(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "B", oldest.Name)

		require.NoError(t, d.SetTarget(ctx, "A", "B"))

		room, err := d.FindByPlayer(ctx, "p-A")
		require.NoError(t, err)
		assert.Equal(t, "B", room.Target())

		oldest, err = d.FindOldestWaiting(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "C", oldest.Name)
	})

	t.Run("clear target and deletes", func(t *testing.T) {
		reset(t)
		seed(t, d, "A", "B")
		require.NoError(t, d.SetTarget(ctx, "A", "B"))

		removed, err := d.DeleteByCreator(ctx, "p-A")
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "B", removed[0].Target())

		b, err := d.ClearTarget(ctx, "B", "A")
		require.NoError(t, err)
		assert.False(t, b.Matched())

		_, err = d.ClearTarget(ctx, "B", "A")
		assert.ErrorIs(t, err, matchmaking.ErrRoomNotFound)

		_, err = d.DeleteByName(ctx, "A")
		assert.ErrorIs(t, err, matchmaking.ErrRoomNotFound)

		room, err := d.DeleteByName(ctx, "B")
		require.NoError(t, err)
		assert.Equal(t, "B", room.Name)
	})

	t.Run("delete older than", func(t *testing.T) {
		reset(t)
		past := time.Now().Add(-time.Hour)
		d.WithClock(func() time.Time { return past })
		seed(t, d, "stale")
		d.WithClock(time.Now)
		seed(t, d, "fresh")

		removed, err := d.DeleteOlderThan(ctx, 10*time.Minute)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "stale", removed[0].Name)

		_, err = d.Get(ctx, "fresh")
		require.NoError(t, err)
	})
}
