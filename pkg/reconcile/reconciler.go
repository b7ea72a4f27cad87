// Package reconcile implements the periodic sweep that repairs session
// state the request path cannot guarantee: abandoned sessions are closed at
// a duration ceiling, daily aggregate time is capped by truncation, and
// dead clients are detected by a staleness timeout. Each rule toggles
// independently.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/txn2/timetrack/pkg/catalog"
	"github.com/txn2/timetrack/pkg/report"
	"github.com/txn2/timetrack/pkg/tracking"
)

// Config holds the sweep policy. The three rules are mutually non-exclusive
// strategies; deployments enable the combination they want.
type Config struct {
	// Interval is the sweep period.
	Interval time.Duration

	// SessionCeiling closes any open session whose elapsed time reaches it
	// (rule 1). Zero disables the rule.
	SessionCeiling time.Duration

	// DailyCap truncates the open session that pushes a user's same-day
	// total over it (rule 2). Zero disables the rule.
	DailyCap time.Duration

	// ExcludeProtectedFromCap leaves sessions on protected task types out
	// of the daily cap walk.
	ExcludeProtectedFromCap bool

	// LivenessTimeout force-closes open sessions older than it (rule 3),
	// a dead-client detector distinct from the much larger ceiling. Zero
	// disables the rule.
	LivenessTimeout time.Duration
}

// Reconciler runs the sweep against the session store.
type Reconciler struct {
	store    tracking.Store
	catalog  catalog.Store
	reporter *report.Reporter
	cfg      Config
	now      func() time.Time

	lastDay time.Time
}

// New creates a reconciler. The reporter may be nil when summary dispatch
// is handled elsewhere.
func New(store tracking.Store, cat catalog.Store, reporter *report.Reporter, cfg Config) *Reconciler {
	return &Reconciler{
		store:    store,
		catalog:  cat,
		reporter: reporter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces the reconciler's clock. Tests use this to pin "now".
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Sweep runs one reconciliation pass. Each user's adjustments are committed
// in their own store transaction; a failing user is logged and skipped so
// one bad row never aborts the whole sweep. Running the sweep twice without
// intervening activity writes nothing on the second pass.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.now().UTC()
	dayStart := report.BucketStart(report.Daily, now)

	open, err := r.store.ListSessions(ctx, tracking.Filter{OnlyOpen: true})
	if err != nil {
		return fmt.Errorf("loading open sessions: %w", err)
	}
	today, err := r.store.ListSessions(ctx, tracking.Filter{
		StartedAfter:  dayStart,
		StartedBefore: dayStart.AddDate(0, 0, 1),
	})
	if err != nil {
		return fmt.Errorf("loading today's sessions: %w", err)
	}

	protected, err := r.protectedTaskIDs(ctx)
	if err != nil {
		return err
	}

	openByUser := groupByUser(open)
	todayByUser := groupByUser(today)

	for _, userID := range affectedUsers(openByUser, todayByUser) {
		closures := r.plan(openByUser[userID], todayByUser[userID], protected, now)
		if len(closures) == 0 {
			continue
		}
		if err := r.store.CloseSessions(ctx, closures); err != nil {
			slog.Error("sweep adjustment failed, skipping user", "user_id", userID, "error", err)
			continue
		}
		slog.Info("sweep closed sessions", "user_id", userID, "count", len(closures))
	}
	return nil
}

// plan computes the closures for one user. Every rule proposes an end
// instant per session and the earliest proposal wins, so a session hit by
// both the daily cap and the ceiling ends at the cap's truncation point.
func (r *Reconciler) plan(open, today []*tracking.Session, protected map[string]bool, now time.Time) []tracking.Closure {
	proposals := make(map[string]time.Time)
	byID := make(map[string]*tracking.Session)

	propose := func(s *tracking.Session, end time.Time) {
		if end.Before(s.Interval.Start()) {
			end = s.Interval.Start()
		}
		if cur, ok := proposals[s.ID]; !ok || end.Before(cur) {
			proposals[s.ID] = end
		}
		byID[s.ID] = s
	}

	// Rule 1: single-session duration ceiling.
	if r.cfg.SessionCeiling > 0 {
		for _, s := range open {
			if s.Interval.Elapsed(now) >= r.cfg.SessionCeiling {
				propose(s, now)
			}
		}
	}

	// Rule 3: staleness fallback for dead clients.
	if r.cfg.LivenessTimeout > 0 {
		for _, s := range open {
			if now.Sub(s.Interval.Start()) >= r.cfg.LivenessTimeout {
				propose(s, now)
			}
		}
	}

	// Rule 2: daily aggregate cap. Walk the user's same-day sessions in
	// start order; the session whose duration would cross the cap is
	// truncated at start + remaining budget if it is still open. Sessions
	// after the crossing point are left to future sweeps.
	if r.cfg.DailyCap > 0 {
		var total time.Duration
		for _, s := range today {
			if r.cfg.ExcludeProtectedFromCap && protected[s.TaskID] {
				continue
			}
			d := s.Interval.Elapsed(now)
			if total+d > r.cfg.DailyCap {
				if s.Open() {
					propose(s, s.Interval.Start().Add(r.cfg.DailyCap-total))
				}
				break
			}
			total += d
		}
	}

	closures := make([]tracking.Closure, 0, len(proposals))
	for id, end := range proposals {
		closures = append(closures, tracking.Closure{SessionID: id, End: end})
	}
	sort.Slice(closures, func(i, j int) bool {
		return byID[closures[i].SessionID].Interval.Start().Before(byID[closures[j].SessionID].Interval.Start())
	})
	return closures
}

// Tick runs a sweep and, when the UTC day has rolled over since the last
// tick, dispatches the previous day's summary — plus the previous month's
// on the first day of a month.
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.now().UTC()
	day := report.BucketStart(report.Daily, now)

	if err := r.Sweep(ctx); err != nil {
		slog.Error("sweep failed", "error", err)
	}

	if r.reporter == nil {
		return
	}
	if r.lastDay.IsZero() {
		r.lastDay = day
		return
	}
	if day.After(r.lastDay) {
		prevDay := day.AddDate(0, 0, -1)
		if err := r.reporter.SendDaily(ctx, prevDay, now); err != nil {
			slog.Error("daily report failed", "day", prevDay.Format("2006-01-02"), "error", err)
		}
		if day.Day() == 1 {
			prevMonth := day.AddDate(0, -1, 0)
			if err := r.reporter.SendMonthly(ctx, prevMonth, now); err != nil {
				slog.Error("monthly report failed", "month", prevMonth.Format("2006-01"), "error", err)
			}
		}
		r.lastDay = day
	}
}

func (r *Reconciler) protectedTaskIDs(ctx context.Context) (map[string]bool, error) {
	types, err := r.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading task types: %w", err)
	}
	protected := make(map[string]bool)
	for _, t := range types {
		if t.IsProtected {
			protected[t.ID] = true
		}
	}
	return protected, nil
}

func groupByUser(sessions []*tracking.Session) map[string][]*tracking.Session {
	grouped := make(map[string][]*tracking.Session)
	for _, s := range sessions {
		grouped[s.UserID] = append(grouped[s.UserID], s)
	}
	return grouped
}

// affectedUsers returns the union of both groupings, sorted for a
// deterministic sweep order.
func affectedUsers(a, b map[string][]*tracking.Session) []string {
	seen := make(map[string]bool)
	for u := range a {
		seen[u] = true
	}
	for u := range b {
		seen[u] = true
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
