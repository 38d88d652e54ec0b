package distlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockExclusive(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "attribution-worker", time.Minute)
	b := NewRedisLock(client, "attribution-worker", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, b.Release(ctx), ErrNotHeld)
	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "k", time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, 5*time.Second))
	mr.FastForward(6 * time.Second)

	assert.ErrorIs(t, a.Extend(ctx, time.Second), ErrNotHeld)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "attribution-worker")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(AdvisoryKey("attribution-worker")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(AdvisoryKey("attribution-worker")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryKeyStable(t *testing.T) {
	assert.Equal(t, AdvisoryKey("promoter:p1"), AdvisoryKey("promoter:p1"))
	assert.NotEqual(t, AdvisoryKey("promoter:p1"), AdvisoryKey("promoter:p2"))
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("p1")
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, km.locks)
}
