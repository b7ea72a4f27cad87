// Package report turns sessions into per-user, per-day and per-month
// totals, and renders the daily and monthly summaries consumed by the
// notification sink. Aggregation is pure: it never mutates session state,
// and open sessions are measured provisionally against a caller-supplied
// "now".
package report

import (
	"time"

	"github.com/txn2/timetrack/pkg/tracking"
)

// Period selects the aggregation bucket width.
type Period int

// Supported aggregation periods.
const (
	Daily Period = iota
	Monthly
)

// BucketStart truncates an instant to the start of its UTC day or month.
// A session is attributed to the bucket of its start instant, so a session
// spanning midnight counts entirely toward the day it started.
func BucketStart(p Period, t time.Time) time.Time {
	t = t.UTC()
	if p == Monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UserKey buckets a total by user.
type UserKey struct {
	UserID string
	Bucket time.Time
}

// TaskKey buckets a total by user and task.
type TaskKey struct {
	UserID string
	TaskID string
	Bucket time.Time
}

// TotalsByUser sums session durations per user per bucket.
func TotalsByUser(sessions []*tracking.Session, p Period, now time.Time) map[UserKey]time.Duration {
	totals := make(map[UserKey]time.Duration)
	for _, s := range sessions {
		key := UserKey{UserID: s.UserID, Bucket: BucketStart(p, s.Interval.Start())}
		totals[key] += s.Interval.Elapsed(now)
	}
	return totals
}

// TotalsByUserTask sums session durations per user and task per bucket.
func TotalsByUserTask(sessions []*tracking.Session, p Period, now time.Time) map[TaskKey]time.Duration {
	totals := make(map[TaskKey]time.Duration)
	for _, s := range sessions {
		key := TaskKey{
			UserID: s.UserID,
			TaskID: s.TaskID,
			Bucket: BucketStart(p, s.Interval.Start()),
		}
		totals[key] += s.Interval.Elapsed(now)
	}
	return totals
}
