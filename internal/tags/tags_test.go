package tags

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/seq"
	"github.com/roach88/djmd/internal/store"
	"github.com/roach88/djmd/internal/testutil"
)

type fixture struct {
	st    *store.Store
	m     *Manager
	clock *testutil.Clock
	glue  content.Content
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, testutil.NewLibraryFile(t), testutil.Passphrase, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	glue, err := content.NewFinder(st.DB()).FindByRef(ctx, testutil.GlueRef)
	require.NoError(t, err)

	clock := testutil.NewClock()
	return &fixture{st: st, m: NewManager(st, clock.Now, nil), clock: clock, glue: glue}
}

func (f *fixture) names(t *testing.T, c content.Content) []string {
	t.Helper()
	tags, err := f.m.List(context.Background(), c)
	require.NoError(t, err)
	return Names(tags)
}

func TestTagUntagScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.Equal(t, "43970339", f.glue.ID)

	_, err := f.m.Clear(ctx, f.glue)
	require.NoError(t, err)
	assert.Equal(t, []string{}, f.names(t, f.glue))

	usn, inserted, err := f.m.Tag(ctx, f.glue, "eatmos")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, testutil.CounterStart+1, usn)
	assert.Equal(t, []string{"eatmos"}, f.names(t, f.glue))

	removed, err := f.m.Untag(ctx, f.glue, "eatmos")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, []string{}, f.names(t, f.glue))
}

func TestTag_WritesStampedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wantTS := store.Timestamp(f.clock.Peek())

	usn, _, err := f.m.Tag(ctx, f.glue, "vocals")
	require.NoError(t, err)

	var id, tagID, uuidCol, created, updated string
	var rowUSN int64
	err = f.st.DB().QueryRow(`
		SELECT ID, MyTagID, UUID, rb_local_usn, CAST(created_at AS TEXT), CAST(updated_at AS TEXT)
		FROM djmdSongMyTag WHERE ContentID = ?
	`, f.glue.ID).Scan(&id, &tagID, &uuidCol, &rowUSN, &created, &updated)
	require.NoError(t, err)

	assert.Equal(t, "1002", tagID)
	assert.Equal(t, usn, rowUSN)
	assert.Equal(t, wantTS, created)
	assert.Equal(t, wantTS, updated)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, id, uuidCol)
}

func TestTag_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, inserted, err := f.m.Tag(ctx, f.glue, "eatmos")
	require.NoError(t, err)
	require.True(t, inserted)

	usn, inserted, err := f.m.Tag(ctx, f.glue, "eatmos")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, usn)

	assert.Equal(t, 1, testutil.CountRows(t, f.st.DB(),
		`SELECT COUNT(*) FROM djmdSongMyTag WHERE ContentID = ? AND MyTagID = ?`, f.glue.ID, testutil.EatmosTagID))
	assert.Equal(t, testutil.CounterStart+1, testutil.CounterValue(t, f.st.DB()))
}

func TestTag_ExistingAssociationDoesNotBumpCounter(t *testing.T) {
	f := newFixture(t)
	soUKno := content.Content{ID: testutil.SoUKnoID}

	_, inserted, err := f.m.Tag(context.Background(), soUKno, "dark")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, testutil.CounterStart, testutil.CounterValue(t, f.st.DB()))
}

func TestTag_ConcurrentSamePair(t *testing.T) {
	f := newFixture(t)
	const callers = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	insertedCount := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, inserted, err := f.m.Tag(context.Background(), f.glue, "peak time")
			if !assert.NoError(t, err) {
				return
			}
			if inserted {
				mu.Lock()
				insertedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, insertedCount)
	assert.Equal(t, 1, testutil.CountRows(t, f.st.DB(),
		`SELECT COUNT(*) FROM djmdSongMyTag WHERE ContentID = ?`, f.glue.ID))
	assert.Equal(t, testutil.CounterStart+1, testutil.CounterValue(t, f.st.DB()))
}

func TestTag_UnknownTag(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.m.Tag(context.Background(), f.glue, "no-such-tag")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "got %v", err)
	assert.Equal(t, testutil.CounterStart, testutil.CounterValue(t, f.st.DB()))
}

func TestTag_UnknownContent(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.m.Tag(context.Background(), content.Content{ID: "ghost"}, "eatmos")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "got %v", err)
	assert.Equal(t, 0, testutil.CountRows(t, f.st.DB(), `SELECT COUNT(*) FROM djmdSongMyTag WHERE ContentID = 'ghost'`))
}

func TestTag_MissingCounterWritesNothing(t *testing.T) {
	f := newFixture(t)
	testutil.Exec(t, f.st.DB(), `DELETE FROM agentRegistry`)

	_, _, err := f.m.Tag(context.Background(), f.glue, "eatmos")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "got %v", err)
	assert.Equal(t, 0, testutil.CountRows(t, f.st.DB(),
		`SELECT COUNT(*) FROM djmdSongMyTag WHERE ContentID = ?`, f.glue.ID))
}

func TestUntag_AbsentIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	removed, err := f.m.Untag(ctx, f.glue, "eatmos")
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = f.m.Untag(ctx, f.glue, "no-such-tag")
	require.NoError(t, err)
	assert.Zero(t, removed)

	assert.Equal(t, testutil.CounterStart, testutil.CounterValue(t, f.st.DB()))
	assert.Equal(t, []string{}, f.names(t, f.glue))
}

func TestUntag_LeavesOtherTags(t *testing.T) {
	f := newFixture(t)
	soUKno := content.Content{ID: testutil.SoUKnoID}

	removed, err := f.m.Untag(context.Background(), soUKno, "dark")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, []string{"vocals"}, f.names(t, soUKno))
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	soUKno := content.Content{ID: testutil.SoUKnoID}

	removed, err := f.m.Clear(context.Background(), soUKno)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, []string{}, f.names(t, soUKno))
}

func TestList_OrderedByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"vocals", "peak time", "dark", "eatmos"} {
		_, _, err := f.m.Tag(ctx, f.glue, name)
		require.NoError(t, err)
	}

	tags, err := f.m.List(ctx, f.glue)
	require.NoError(t, err)
	assert.Equal(t, []string{"dark", "eatmos", "peak time", "vocals"}, Names(tags))
	assert.Equal(t, "1003", tags[0].ID)
}

func TestExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soUKno := content.Content{ID: testutil.SoUKnoID}

	ok, err := f.m.Exists(ctx, soUKno, "dark")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.m.Exists(ctx, soUKno, "eatmos")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.m.Exists(ctx, f.glue, "dark")
	require.NoError(t, err)
	assert.False(t, ok)
}

// fixedAllocator returns usn, or err when set.
type fixedAllocator struct {
	usn int64
	err error
}

func (a fixedAllocator) Next(context.Context) (int64, error) {
	return a.usn, a.err
}

func TestTag_UsesInjectedCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := NewManager(f.st, f.clock.Now, nil, WithCounter(func(store.Querier) seq.Allocator {
		return fixedAllocator{usn: 7777}
	}))

	usn, inserted, err := m.Tag(ctx, f.glue, "vocals")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(7777), usn)
	assert.Equal(t, testutil.CounterStart, testutil.CounterValue(t, f.st.DB()))
}

func TestTag_CounterFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("counter offline")
	m := NewManager(f.st, f.clock.Now, nil, WithCounter(func(store.Querier) seq.Allocator {
		return fixedAllocator{err: boom}
	}))

	_, inserted, err := m.Tag(context.Background(), f.glue, "vocals")
	require.ErrorIs(t, err, boom)
	assert.False(t, inserted)
	assert.NotContains(t, f.names(t, f.glue), "vocals")
}
