package history

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

func rec(id, question string) query.Record {
	return query.Record{
		QueryID:   id,
		Question:  question,
		Answer:    "answer to " + question,
		Provider:  query.ProviderGemini,
		CreatedAt: time.Now(),
	}
}

func ids(records []query.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.QueryID
	}
	return out
}

func TestAppend_NewestFirst(t *testing.T) {
	s := New("session_1")
	require.NoError(t, s.Append(rec("q1", "first")))
	require.NoError(t, s.Append(rec("q2", "second")))
	require.NoError(t, s.Append(rec("q3", "third")))

	assert.Equal(t, []string{"q3", "q2", "q1"}, ids(s.All()))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "session_1", s.SessionID())
}

func TestAppend_DuplicateLeavesStoreUnchanged(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("q1", "first")))
	require.NoError(t, s.Append(rec("q2", "second")))
	before := s.All()

	err := s.Append(rec("q1", "replayed"))
	var dup *query.DuplicateRecordError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "q1", dup.QueryID)
	assert.Equal(t, before, s.All())
}

func TestAll_ReturnsDefensiveCopy(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("q1", "first")))

	snapshot := s.All()
	snapshot[0].Question = "mutated"

	assert.Equal(t, "first", s.All()[0].Question)
}

func TestSearch_CaseInsensitiveNewestFirst(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("q1", "What is the MEAN of price?")))
	require.NoError(t, s.Append(rec("q2", "Show missing values")))
	require.NoError(t, s.Append(rec("q3", "mean of quantity")))

	got := slices.Collect(s.Search("Mean"))
	assert.Equal(t, []string{"q3", "q1"}, ids(got))

	all := slices.Collect(s.Search(""))
	assert.Len(t, all, 3)
}

func TestFilter_IsRestartable(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("q1", "alpha")))
	require.NoError(t, s.Append(rec("q2", "beta")))

	seq := s.Filter(func(string) bool { return true })
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, ids(first), ids(second))

	// A later pass sees records appended after the sequence was created.
	require.NoError(t, s.Append(rec("q3", "gamma")))
	assert.Equal(t, []string{"q3", "q2", "q1"}, ids(slices.Collect(seq)))
}

func TestFilter_StopsEarly(t *testing.T) {
	s := New("s")
	for i := range 5 {
		require.NoError(t, s.Append(rec(fmt.Sprintf("q%d", i), "question")))
	}

	var seen int
	for range s.Filter(func(string) bool { return true }) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestSelect(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("q1", "first")))
	require.NoError(t, s.Append(rec("q2", "second")))

	_, ok := s.Selected()
	assert.False(t, ok)

	got, err := s.Select("q1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Question)

	// Unknown id is a no-op.
	_, err = s.Select("nope")
	assert.ErrorIs(t, err, query.ErrNotFound)

	cur, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "q1", cur.QueryID)
}

func TestClear_ResetsSelection(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("q1", "first")))
	_, err := s.Select("q1")
	require.NoError(t, err)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, ok := s.Selected()
	assert.False(t, ok)
	// Ids become available again after a clear.
	assert.NoError(t, s.Append(rec("q1", "first again")))
}

func TestReplace(t *testing.T) {
	s := New("s")
	require.NoError(t, s.Append(rec("old", "old question")))
	_, err := s.Select("old")
	require.NoError(t, err)

	s.Replace([]query.Record{rec("q3", "c"), rec("q2", "b"), rec("q3", "dup"), rec("q1", "a")})

	assert.Equal(t, []string{"q3", "q2", "q1"}, ids(s.All()))
	_, ok := s.Selected()
	assert.False(t, ok, "selection of a vanished record must be dropped")

	require.NoError(t, s.Append(rec("q4", "d")))
	assert.Equal(t, "q4", s.All()[0].QueryID)
}

func TestAppend_ConcurrentWritersKeepIDsUnique(t *testing.T) {
	s := New("s")
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Append(rec("same", "q"))
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, s.Len())
}
