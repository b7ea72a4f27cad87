package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/timetrack/pkg/tracking"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func closedSession(t *testing.T, userID, taskID string, start, end time.Time) *tracking.Session {
	t.Helper()
	iv, err := tracking.ClosedSpan(start, end)
	require.NoError(t, err)
	return &tracking.Session{ID: userID + "-" + start.Format("150405"), UserID: userID, TaskID: taskID, Interval: iv}
}

func TestBucketStart(t *testing.T) {
	noon := day.Add(12*time.Hour + 34*time.Minute)

	assert.Equal(t, day, BucketStart(Daily, noon))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), BucketStart(Monthly, noon))

	// Non-UTC instants land in their UTC bucket.
	loc := time.FixedZone("UTC-5", -5*3600)
	lateEvening := time.Date(2025, 3, 9, 23, 0, 0, 0, loc) // 04:00 UTC on the 10th
	assert.Equal(t, day, BucketStart(Daily, lateEvening))
}

func TestTotalsByUser(t *testing.T) {
	now := day.Add(18 * time.Hour)
	sessions := []*tracking.Session{
		closedSession(t, "u1", "t1", day.Add(9*time.Hour), day.Add(12*time.Hour)),
		closedSession(t, "u1", "t2", day.Add(13*time.Hour), day.Add(15*time.Hour)),
		closedSession(t, "u2", "t1", day.Add(9*time.Hour), day.Add(10*time.Hour)),
	}

	totals := TotalsByUser(sessions, Daily, now)
	require.Len(t, totals, 2)
	assert.Equal(t, 5*time.Hour, totals[UserKey{UserID: "u1", Bucket: day}])
	assert.Equal(t, time.Hour, totals[UserKey{UserID: "u2", Bucket: day}])
}

func TestTotalsByUser_OpenSessionMeasuredAgainstNow(t *testing.T) {
	now := day.Add(11 * time.Hour)
	sessions := []*tracking.Session{
		{ID: "s1", UserID: "u1", TaskID: "t1", Interval: tracking.OpenSince(day.Add(9 * time.Hour))},
	}

	totals := TotalsByUser(sessions, Daily, now)
	assert.Equal(t, 2*time.Hour, totals[UserKey{UserID: "u1", Bucket: day}])
}

// A session spanning midnight is attributed entirely to the day it started.
func TestTotalsByUser_MidnightAttribution(t *testing.T) {
	nextDay := day.AddDate(0, 0, 1)
	sessions := []*tracking.Session{
		closedSession(t, "u1", "t1", day.Add(22*time.Hour), nextDay.Add(2*time.Hour)),
	}

	totals := TotalsByUser(sessions, Daily, nextDay.Add(12*time.Hour))
	require.Len(t, totals, 1)
	assert.Equal(t, 4*time.Hour, totals[UserKey{UserID: "u1", Bucket: day}])
}

func TestTotalsByUser_MonthlyBuckets(t *testing.T) {
	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	sessions := []*tracking.Session{
		closedSession(t, "u1", "t1", march.Add(9*time.Hour), march.Add(17*time.Hour)),
		closedSession(t, "u1", "t1", march.AddDate(0, 0, 20).Add(9*time.Hour), march.AddDate(0, 0, 20).Add(13*time.Hour)),
		closedSession(t, "u1", "t1", april.Add(9*time.Hour), april.Add(10*time.Hour)),
	}

	totals := TotalsByUser(sessions, Monthly, april.AddDate(0, 0, 5))
	require.Len(t, totals, 2)
	assert.Equal(t, 12*time.Hour, totals[UserKey{UserID: "u1", Bucket: march}])
	assert.Equal(t, time.Hour, totals[UserKey{UserID: "u1", Bucket: april}])
}

func TestTotalsByUserTask(t *testing.T) {
	now := day.Add(18 * time.Hour)
	sessions := []*tracking.Session{
		closedSession(t, "u1", "t1", day.Add(9*time.Hour), day.Add(12*time.Hour)),
		closedSession(t, "u1", "t2", day.Add(13*time.Hour), day.Add(15*time.Hour)),
		closedSession(t, "u1", "t1", day.Add(15*time.Hour), day.Add(16*time.Hour)),
	}

	totals := TotalsByUserTask(sessions, Daily, now)
	require.Len(t, totals, 2)
	assert.Equal(t, 4*time.Hour, totals[TaskKey{UserID: "u1", TaskID: "t1", Bucket: day}])
	assert.Equal(t, 2*time.Hour, totals[TaskKey{UserID: "u1", TaskID: "t2", Bucket: day}])
}

func TestTotalsByUser_Empty(t *testing.T) {
	assert.Empty(t, TotalsByUser(nil, Daily, day))
}
