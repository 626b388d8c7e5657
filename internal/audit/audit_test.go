package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogAndRecent(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		err := s.LogPrediction(Record{
			Task:      "regression",
			Output:    fmt.Sprintf("%d", i),
			LatencyMS: float64(i),
			At:        base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	records, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// newest first
	assert.Equal(t, "2", records[0].Output)
	assert.Equal(t, "0", records[2].Output)
}

func TestRecent_RespectsLimit(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.LogPrediction(Record{
			Task: "classification",
			At:   base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	records, err := s.Recent(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLogPrediction_FillsTimestamp(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.LogPrediction(Record{Task: "regression", Output: "x"}))

	records, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].At.IsZero())
}

func TestNilStore_IsNoOp(t *testing.T) {
	var s *Store

	assert.NoError(t, s.Close())
	assert.NoError(t, s.LogPrediction(Record{Task: "regression"}))

	records, err := s.Recent(10)
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestRecent_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.LogPrediction(Record{Task: "regression", Output: "persisted"}))
	require.NoError(t, s.Close())

	s2, err := New(dir)
	require.NoError(t, err)
	defer s2.Close()

	records, err := s2.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].Output)
}
