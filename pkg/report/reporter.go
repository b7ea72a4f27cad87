package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/txn2/timetrack/pkg/catalog"
	"github.com/txn2/timetrack/pkg/directory"
	"github.com/txn2/timetrack/pkg/tracking"
)

// Reporter renders and dispatches daily and monthly time summaries.
type Reporter struct {
	store            tracking.Store
	catalog          catalog.Store
	directory        directory.Directory
	notifier         Notifier
	excludeProtected bool
}

// NewReporter creates a reporter. When excludeProtected is set, sessions on
// protected (non-working) task types are left out of the summaries.
func NewReporter(store tracking.Store, cat catalog.Store, dir directory.Directory, notifier Notifier, excludeProtected bool) *Reporter {
	return &Reporter{
		store:            store,
		catalog:          cat,
		directory:        dir,
		notifier:         notifier,
		excludeProtected: excludeProtected,
	}
}

// SendDaily dispatches one summary per user who tracked time on the given
// UTC day. Open sessions are measured against now.
func (r *Reporter) SendDaily(ctx context.Context, day, now time.Time) error {
	dayStart := BucketStart(Daily, day)
	sessions, err := r.loadSessions(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	totals := TotalsByUser(sessions, Daily, now)
	for _, key := range sortedUserKeys(totals) {
		user := r.resolveUser(ctx, key.UserID)
		subject := fmt.Sprintf("Daily time report %s", dayStart.Format("2006-01-02"))
		body := fmt.Sprintf("Hello %s,\n\nYour total tracked time on %s: %s.",
			user.Username, dayStart.Format("2006-01-02"), formatDuration(totals[key]))
		if err := r.notifier.Notify(ctx, user.Email, subject, body); err != nil {
			slog.Warn("daily report delivery failed", "user_id", key.UserID, "error", err)
		}
	}
	return nil
}

// SendMonthly dispatches one summary per user for the given UTC month,
// including a per-task breakdown.
func (r *Reporter) SendMonthly(ctx context.Context, month, now time.Time) error {
	monthStart := BucketStart(Monthly, month)
	sessions, err := r.loadSessions(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return err
	}

	userTotals := TotalsByUser(sessions, Monthly, now)
	taskTotals := TotalsByUserTask(sessions, Monthly, now)

	for _, key := range sortedUserKeys(userTotals) {
		user := r.resolveUser(ctx, key.UserID)

		var sb strings.Builder
		fmt.Fprintf(&sb, "Hello %s,\n", user.Username)
		fmt.Fprintf(&sb, "Here is your tracked time report for %s:\n", monthStart.Format("January 2006"))
		fmt.Fprintf(&sb, "Total time: %s\n", formatDuration(userTotals[key]))
		for _, tk := range sortedTaskKeysFor(taskTotals, key) {
			fmt.Fprintf(&sb, " - %s: %s\n", r.taskName(ctx, tk.TaskID), formatDuration(taskTotals[tk]))
		}

		subject := fmt.Sprintf("Monthly time report %s", monthStart.Format("January 2006"))
		if err := r.notifier.Notify(ctx, user.Email, subject, sb.String()); err != nil {
			slog.Warn("monthly report delivery failed", "user_id", key.UserID, "error", err)
		}
	}
	return nil
}

// loadSessions fetches the sessions started in [from, to), dropping those
// on protected task types when configured to.
func (r *Reporter) loadSessions(ctx context.Context, from, to time.Time) ([]*tracking.Session, error) {
	sessions, err := r.store.ListSessions(ctx, tracking.Filter{StartedAfter: from, StartedBefore: to})
	if err != nil {
		return nil, fmt.Errorf("loading report sessions: %w", err)
	}
	if !r.excludeProtected {
		return sessions, nil
	}

	kept := sessions[:0]
	for _, s := range sessions {
		task, err := r.catalog.Get(ctx, s.TaskID)
		if err != nil {
			return nil, fmt.Errorf("resolving task type for report: %w", err)
		}
		if task != nil && task.IsProtected {
			continue
		}
		kept = append(kept, s)
	}
	return kept, nil
}

// resolveUser falls back to the bare id when the directory has no record.
func (r *Reporter) resolveUser(ctx context.Context, userID string) *directory.User {
	user, err := r.directory.Get(ctx, userID)
	if err != nil {
		slog.Warn("user lookup failed for report", "user_id", userID, "error", err)
	}
	if user == nil {
		return &directory.User{ID: userID, Username: userID, Email: userID}
	}
	return user
}

func (r *Reporter) taskName(ctx context.Context, taskID string) string {
	task, err := r.catalog.Get(ctx, taskID)
	if err != nil || task == nil {
		return taskID
	}
	return task.Name
}

func sortedUserKeys(totals map[UserKey]time.Duration) []UserKey {
	keys := make([]UserKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].UserID < keys[j].UserID })
	return keys
}

func sortedTaskKeysFor(totals map[TaskKey]time.Duration, user UserKey) []TaskKey {
	var keys []TaskKey
	for k := range totals {
		if k.UserID == user.UserID && k.Bucket.Equal(user.Bucket) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].TaskID < keys[j].TaskID })
	return keys
}

// formatDuration renders a duration as hh:mm:ss.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
