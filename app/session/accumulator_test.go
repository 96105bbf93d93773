package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/festival-comb/app/festival"
)

func records(ids ...string) []festival.SummaryRecord {
	out := make([]festival.SummaryRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, festival.SummaryRecord{ID: id, Title: "title-" + id})
	}
	return out
}

func recordIDs(rs []festival.SummaryRecord) []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestAccumulator_AppendPage_DeduplicatesKeepingFirstPosition(t *testing.T) {
	acc := NewAccumulator()

	assert.Equal(t, 3, acc.AppendPage(records("A", "B", "C")))
	assert.Equal(t, 2, acc.AppendPage(records("D", "B", "E", "A")))
	assert.Equal(t, 1, acc.AppendPage(records("F", "F")))

	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, recordIDs(acc.Records()))
}

func TestAccumulator_AppendPage_KeepsFirstRecordForDuplicateID(t *testing.T) {
	acc := NewAccumulator()

	acc.AppendPage([]festival.SummaryRecord{{ID: "A", Title: "first"}})
	acc.AppendPage([]festival.SummaryRecord{{ID: "A", Title: "second"}})

	record, ok := acc.Get("A")
	require.True(t, ok)
	assert.Equal(t, "first", record.Title)
	assert.Equal(t, 1, acc.Len())
}

func TestAccumulator_RecordsIsACopy(t *testing.T) {
	acc := NewAccumulator()
	acc.AppendPage(records("A"))

	snapshot := acc.Records()
	snapshot[0].ID = "mutated"

	assert.True(t, acc.Contains("A"))
	assert.Equal(t, "A", acc.Records()[0].ID)
}

func TestAccumulator_BeginFetch_SingleInFlight(t *testing.T) {
	acc := NewAccumulator()

	page, epoch, ok := acc.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 1, page)
	assert.True(t, acc.IsFetching())

	_, _, ok = acc.BeginFetch()
	assert.False(t, ok, "second BeginFetch while fetching must be a no-op")

	require.True(t, acc.CompleteFetch(epoch, records("A", "B"), 2))
	assert.False(t, acc.IsFetching())

	page, _, ok = acc.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 2, page)
}

func TestAccumulator_CompleteFetch_ShortPageExhausts(t *testing.T) {
	acc := NewAccumulator()

	_, epoch, _ := acc.BeginFetch()
	acc.CompleteFetch(epoch, records("A", "B"), 2)
	assert.True(t, acc.HasMore())

	_, epoch, _ = acc.BeginFetch()
	acc.CompleteFetch(epoch, records("C"), 2)
	assert.False(t, acc.HasMore())
	assert.Equal(t, 2, acc.PagesLoaded())

	_, _, ok := acc.BeginFetch()
	assert.False(t, ok, "exhausted accumulator must not start a fetch")
}

func TestAccumulator_CompleteFetch_EmptyPageExhausts(t *testing.T) {
	acc := NewAccumulator()

	_, epoch, _ := acc.BeginFetch()
	acc.CompleteFetch(epoch, nil, 12)

	assert.False(t, acc.HasMore())
	assert.Equal(t, 0, acc.Len())
}

func TestAccumulator_FailFetch_KeepsSequenceAndCursor(t *testing.T) {
	acc := NewAccumulator()

	_, epoch, _ := acc.BeginFetch()
	acc.CompleteFetch(epoch, records("A", "B"), 2)

	page, epoch, _ := acc.BeginFetch()
	require.Equal(t, 2, page)

	fetchErr := errors.New("timeout")
	require.True(t, acc.FailFetch(epoch, fetchErr))

	assert.Equal(t, []string{"A", "B"}, recordIDs(acc.Records()))
	assert.ErrorIs(t, acc.Err(), fetchErr)
	assert.False(t, acc.IsFetching())

	page, _, ok := acc.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 2, page, "failed page is requested again")
	assert.NoError(t, acc.Err(), "a new attempt clears the error")
}

func TestAccumulator_Reset_DiscardsStaleResults(t *testing.T) {
	acc := NewAccumulator()

	_, epoch, _ := acc.BeginFetch()
	acc.CompleteFetch(epoch, records("A"), 1)
	_, staleEpoch, _ := acc.BeginFetch()

	acc.Reset()

	assert.Equal(t, 0, acc.Len())
	assert.True(t, acc.HasMore())
	assert.False(t, acc.IsFetching())
	assert.NotEqual(t, staleEpoch, acc.Epoch())

	assert.False(t, acc.CompleteFetch(staleEpoch, records("B"), 1))
	assert.False(t, acc.FailFetch(staleEpoch, errors.New("late")))
	assert.Equal(t, 0, acc.Len())
	assert.NoError(t, acc.Err())

	page, _, ok := acc.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 1, page)
}
