package seq

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/djmd/internal/store"
	"github.com/roach88/djmd/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), testutil.NewEmptyLibraryFile(t), testutil.Passphrase, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCounter_NextIncrementsByOne(t *testing.T) {
	s := openStore(t)
	c := New(s.DB())
	ctx := context.Background()

	first, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.CounterStart+1, first)

	second, err := c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	current, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, current)
}

func TestCounter_CurrentDoesNotIncrement(t *testing.T) {
	s := openStore(t)
	c := New(s.DB())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := c.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, testutil.CounterStart, v)
	}
}

func TestCounter_ConcurrentCallersGetDistinctConsecutiveValues(t *testing.T) {
	s := openStore(t)
	c := New(s.DB())
	const callers = 40

	values := make(chan int64, callers)
	errs := make(chan error, callers)
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Next(context.Background())
			if err != nil {
				errs <- err
				return
			}
			values <- v
		}()
	}

	wg.Wait()
	close(values)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var got []int64
	for v := range values {
		got = append(got, v)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })

	want := make([]int64, callers)
	for i := range want {
		want[i] = testutil.CounterStart + int64(i) + 1
	}
	assert.Equal(t, want, got)
	assert.Equal(t, testutil.CounterStart+callers, testutil.CounterValue(t, s.DB()))
}

func TestCounter_ConcurrentHandlesOnSameFile(t *testing.T) {
	path := testutil.NewEmptyLibraryFile(t)
	ctx := context.Background()

	a, err := store.Open(ctx, path, testutil.Passphrase, store.Options{})
	require.NoError(t, err)
	defer a.Close()
	b, err := store.Open(ctx, path, testutil.Passphrase, store.Options{})
	require.NoError(t, err)
	defer b.Close()

	const perHandle = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool)

	for _, s := range []*store.Store{a, b} {
		c := New(s.DB())
		for i := 0; i < perHandle; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := c.Next(ctx)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, seen[v], "value %d returned twice", v)
				seen[v] = true
			}()
		}
	}
	wg.Wait()

	assert.Len(t, seen, 2*perHandle)
	assert.Equal(t, testutil.CounterStart+2*perHandle, testutil.CounterValue(t, a.DB()))
}

func TestCounter_RolledBackWithTransaction(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	abort := errors.New("abort")

	var inside int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		v, err := New(tx).Next(ctx)
		if err != nil {
			return err
		}
		inside = v
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.Equal(t, testutil.CounterStart+1, inside)
	assert.Equal(t, testutil.CounterStart, testutil.CounterValue(t, s.DB()))
}

func TestCounter_MissingRow(t *testing.T) {
	s := openStore(t)
	testutil.Exec(t, s.DB(), `DELETE FROM agentRegistry`)

	_, err := New(s.DB()).Next(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "got %v", err)
	assert.ErrorIs(t, err, ErrCounterMissing)

	_, err = New(s.DB()).Current(context.Background())
	assert.ErrorIs(t, err, ErrCounterMissing)
}

func TestCounter_StoreClosed(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Close())

	_, err := New(s.DB()).Next(context.Background())
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err), "got %v", err)
}

func TestBind(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	var src Source = Bind
	a := src(s.DB())
	require.IsType(t, &Counter{}, a)

	got, err := a.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.CounterStart+1, got)
}
