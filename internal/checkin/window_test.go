package checkin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeWindows_SortsAndSplits(t *testing.T) {
	now := mustTime("2099-01-01T00:00:00Z")
	departures := []time.Time{
		mustTime("2099-08-22T07:35:05-05:00"),
		mustTime("2099-08-18T18:50:05-05:00"),
		mustTime("2099-08-20T10:00:00-07:00"),
	}

	w := ComputeWindows(departures, now)

	require.NotNil(t, w.Next)
	assert.Equal(t, "2099-08-17T18:50:05-05:00", w.Next.Format(time.RFC3339))
	require.Len(t, w.Remaining, 2)
	assert.Equal(t, "2099-08-19T10:00:00-07:00", w.Remaining[0].Format(time.RFC3339))
	assert.Equal(t, "2099-08-21T07:35:05-05:00", w.Remaining[1].Format(time.RFC3339))
}

func TestComputeWindows_DropsPastWindows(t *testing.T) {
	now := mustTime("2099-08-18T00:00:00-05:00")
	departures := []time.Time{
		mustTime("2099-08-18T18:50:05-05:00"), // opens 2099-08-17, already past
		mustTime("2099-08-19T00:00:00-05:00"), // opens exactly now, not strictly future
		mustTime("2099-08-22T07:35:05-05:00"),
	}

	w := ComputeWindows(departures, now)

	require.NotNil(t, w.Next)
	assert.Equal(t, "2099-08-21T07:35:05-05:00", w.Next.Format(time.RFC3339))
	assert.Empty(t, w.Remaining)
}

func TestComputeWindows_NothingLeft(t *testing.T) {
	now := mustTime("2099-12-31T00:00:00Z")
	w := ComputeWindows([]time.Time{mustTime("2099-08-18T18:50:05-05:00")}, now)

	assert.Nil(t, w.Next)
	assert.NotNil(t, w.Remaining)
	assert.Empty(t, w.Remaining)

	w = ComputeWindows(nil, now)
	assert.Nil(t, w.Next)
	assert.Empty(t, w.Remaining)
}

func TestComputeWindows_NextIsMinimum(t *testing.T) {
	now := mustTime("2050-01-01T00:00:00Z")
	base := mustTime("2060-03-01T12:00:00+02:00")
	offsets := []int{17, 3, 42, 3, 8, 120, 1}

	var departures []time.Time
	for _, h := range offsets {
		departures = append(departures, base.Add(time.Duration(h)*time.Hour))
	}
	w := ComputeWindows(departures, now)

	require.NotNil(t, w.Next)
	assert.True(t, w.Next.Equal(EligibleAt(base.Add(time.Hour))))
	require.Len(t, w.Remaining, len(offsets)-1)
	prev := *w.Next
	for _, r := range w.Remaining {
		assert.False(t, r.Before(prev), "remaining must be ascending and not before next")
		prev = r
	}
}

func TestEligibleAt_PreservesOffset(t *testing.T) {
	dep := mustTime("2099-05-13T15:10:05+09:30")
	got := EligibleAt(dep)

	assert.Equal(t, "2099-05-12T15:10:05+09:30", got.Format(time.RFC3339))
}

func TestWindows_Advance(t *testing.T) {
	a := mustTime("2099-05-12T08:55:05-05:00")
	b := mustTime("2099-05-13T15:10:05-05:00")
	c := mustTime("2099-05-14T15:10:05-05:00")
	w := Windows{Next: timePtr(a), Remaining: []time.Time{b, c}}

	next, ok := w.Advance()
	require.True(t, ok)
	assert.True(t, next.Next.Equal(b))
	assert.Equal(t, []time.Time{c}, next.Remaining)
	// the receiver is not modified
	assert.Len(t, w.Remaining, 2)

	last, ok := next.Advance()
	require.True(t, ok)
	assert.True(t, last.Next.Equal(c))
	assert.Empty(t, last.Remaining)

	_, ok = last.Advance()
	assert.False(t, ok)
}
