// Package server wires the stores, the session manager, the reconciler,
// and the HTTP surface into a runnable service.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"

	"github.com/txn2/timetrack/pkg/auth"
	"github.com/txn2/timetrack/pkg/catalog"
	catalogpg "github.com/txn2/timetrack/pkg/catalog/postgres"
	"github.com/txn2/timetrack/pkg/config"
	"github.com/txn2/timetrack/pkg/database/migrate"
	"github.com/txn2/timetrack/pkg/directory"
	directorypg "github.com/txn2/timetrack/pkg/directory/postgres"
	"github.com/txn2/timetrack/pkg/health"
	"github.com/txn2/timetrack/pkg/reconcile"
	"github.com/txn2/timetrack/pkg/report"
	"github.com/txn2/timetrack/pkg/tracking"
	trackingpg "github.com/txn2/timetrack/pkg/tracking/postgres"
)

// Version is set at build time.
var Version = "dev"

// Server is the assembled timetrack service.
type Server struct {
	cfg       *config.Config
	db        *sql.DB
	checker   *health.Checker
	scheduler *reconcile.Scheduler
	store     tracking.Store
	httpSrv   *http.Server
}

// New builds the service from configuration. An empty database DSN selects
// the in-memory stores, used for local development and tests.
func New(cfg *config.Config) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		checker: health.NewChecker(),
	}

	var (
		sessions tracking.Store
		cat      catalog.Store
		dir      directory.Directory
	)

	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		if err := migrate.Run(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		s.db = db
		sessions = trackingpg.New(db)
		cat = catalogpg.New(db)
		dir = directorypg.New(db)
	} else {
		slog.Warn("no database configured, using in-memory stores")
		sessions = tracking.NewMemoryStore()
		memCat := catalog.NewMemoryStore()
		seedProtected(memCat)
		cat = memCat
		dir = directory.NewMemoryDirectory()
	}
	s.store = sessions

	manager := tracking.NewManager(sessions, cat)

	var reporter *report.Reporter
	if *cfg.Reports.Enabled {
		reporter = report.NewReporter(sessions, cat, dir, report.LogNotifier{}, *cfg.Reports.ExcludeProtected)
	}

	reconciler := reconcile.New(sessions, cat, reporter, reconcileConfig(cfg))
	s.scheduler = reconcile.NewScheduler(reconciler, cfg.Reconcile.Interval.Std())

	authenticator, err := buildAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      s.routes(manager, cat, dir, authenticator),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}
	return s, nil
}

// routes assembles the HTTP mux: health probes are open, everything else
// sits behind the authentication middleware, and the admin surface adds a
// role check.
func (s *Server) routes(manager *tracking.Manager, cat catalog.Store, dir directory.Directory, authenticator auth.Authenticator) http.Handler {
	taskHandler := tracking.NewHandler(manager, cat, dir)
	adminHandler := catalog.NewAdminHandler(cat)
	authMW := auth.Middleware(authenticator)

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", s.checker.LivenessHandler())
	mux.Handle("GET /readyz", s.checker.ReadinessHandler())
	mux.Handle("/task/", authMW(taskHandler))
	mux.Handle("/admin/status/users", authMW(taskHandler))
	mux.Handle("/admin/tasks", authMW(auth.RequireAdmin(adminHandler)))
	mux.Handle("/admin/tasks/", authMW(auth.RequireAdmin(adminHandler)))
	return mux
}

// Run starts the reconciler and serves HTTP until the context is
// cancelled, then shuts down gracefully: the probe goes draining, the
// scheduler finishes its in-flight sweep, and open requests get the
// shutdown timeout to complete.
func (s *Server) Run(ctx context.Context) error {
	s.scheduler.Start()
	s.checker.SetReady()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", s.httpSrv.Addr, "version", Version)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.checker.SetDraining()
	s.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// Close releases store and database resources.
func (s *Server) Close() error {
	if err := s.store.Close(); err != nil {
		return err
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	var authenticators []auth.Authenticator
	if cfg.Auth.JWTSecret != "" {
		authenticators = append(authenticators, auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)))
	}
	if len(cfg.Auth.APIKeys) > 0 {
		keys := make([]auth.APIKey, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, auth.APIKey{Name: k.Name, Hash: k.Hash, UserID: k.UserID, Role: k.Role})
		}
		authenticators = append(authenticators, auth.NewAPIKeyAuthenticator(keys))
	}
	if len(authenticators) == 0 {
		return nil, fmt.Errorf("no authentication configured: set auth.jwt_secret or auth.api_keys")
	}
	return auth.NewChain(authenticators...), nil
}

func reconcileConfig(cfg *config.Config) reconcile.Config {
	rc := reconcile.Config{
		Interval:                cfg.Reconcile.Interval.Std(),
		ExcludeProtectedFromCap: *cfg.Reconcile.ExcludeProtectedFromCap,
	}
	if *cfg.Reconcile.CeilingEnabled {
		rc.SessionCeiling = cfg.Reconcile.SessionCeiling.Std()
	}
	if *cfg.Reconcile.DailyCapEnabled {
		rc.DailyCap = cfg.Reconcile.DailyCap.Std()
	}
	if *cfg.Reconcile.StalenessEnabled {
		rc.LivenessTimeout = cfg.Reconcile.LivenessTimeout.Std()
	}
	return rc
}

// seedProtected mirrors the protected types the database migration seeds.
func seedProtected(cat *catalog.MemoryStore) {
	for _, t := range []catalog.TaskType{
		{ID: "11111111-1111-4111-8111-111111111111", Name: "Lunch", IsProtected: true},
		{ID: "22222222-2222-4222-8222-222222222222", Name: "Break", IsProtected: true},
		{ID: "33333333-3333-4333-8333-333333333333", Name: "Day Off", IsProtected: true},
	} {
		tt := t
		_ = cat.Create(context.Background(), &tt)
	}
}
