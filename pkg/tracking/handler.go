package tracking

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/txn2/timetrack/pkg/auth"
	"github.com/txn2/timetrack/pkg/catalog"
	"github.com/txn2/timetrack/pkg/directory"
)

// Handler exposes the session lifecycle over HTTP. The caller's identity
// comes from the auth middleware; no user id is ever read from the request
// body.
type Handler struct {
	mux       *http.ServeMux
	manager   *Manager
	catalog   catalog.Store
	directory directory.Directory
}

// NewHandler creates the task HTTP handler.
func NewHandler(manager *Manager, cat catalog.Store, dir directory.Directory) *Handler {
	h := &Handler{
		mux:       http.NewServeMux(),
		manager:   manager,
		catalog:   cat,
		directory: dir,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /task/start", h.startTask)
	h.mux.HandleFunc("POST /task/end", h.endTask)
	h.mux.HandleFunc("POST /task/break", h.goOnBreak)
	h.mux.HandleFunc("GET /task/active", h.activeTask)
	h.mux.HandleFunc("GET /task/status/my", h.statusMy)
	h.mux.HandleFunc("GET /task/history", h.history)
	h.mux.HandleFunc("GET /task/dashboard", h.dashboard)
	h.mux.Handle("GET /task/admin/history/{userId}", auth.RequireAdmin(http.HandlerFunc(h.adminHistory)))
	h.mux.Handle("GET /admin/status/users", auth.RequireAdmin(http.HandlerFunc(h.adminStatuses)))
}

// sessionJSON is the wire form of a session.
type sessionJSON struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TaskID    string     `json:"taskId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

func toSessionJSON(s *Session) sessionJSON {
	out := sessionJSON{
		ID:        s.ID,
		UserID:    s.UserID,
		TaskID:    s.TaskID,
		StartTime: s.Interval.Start(),
	}
	if end, ok := s.Interval.End(); ok {
		out.EndTime = &end
	}
	return out
}

func (h *Handler) startTask(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())

	var body struct {
		TaskTypeID string `json:"taskTypeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.manager.Start(r.Context(), uc.UserID, body.TaskTypeID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}

func (h *Handler) endTask(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())

	err := h.manager.End(r.Context(), uc.UserID)
	if errors.Is(err, ErrNoOpenSession) {
		writeError(w, http.StatusNotFound, "no active task session found")
		return
	}
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task ended successfully"})
}

func (h *Handler) goOnBreak(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())

	var breakKind string
	if err := json.NewDecoder(r.Body).Decode(&breakKind); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.manager.GoOnBreak(r.Context(), uc.UserID, breakKind)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}

func (h *Handler) activeTask(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())

	sess, err := h.manager.Active(r.Context(), uc.UserID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	taskName := ""
	if task, err := h.catalog.Get(r.Context(), sess.TaskID); err == nil && task != nil {
		taskName = task.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"taskId":    sess.TaskID,
		"taskName":  taskName,
		"startTime": sess.Interval.Start(),
	})
}

func (h *Handler) statusMy(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())

	logged, err := h.manager.LoggedToday(r.Context(), uc.UserID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged": logged})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())
	h.writeHistory(w, r, uc.UserID)
}

func (h *Handler) adminHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	user, err := h.directory.Get(r.Context(), userID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	h.writeHistory(w, r, userID)
}

func (h *Handler) writeHistory(w http.ResponseWriter, r *http.Request, userID string) {
	sessions, err := h.manager.History(r.Context(), userID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	out := make([]sessionJSON, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionJSON(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	uc := auth.UserFromContext(r.Context())

	tasks, err := h.catalog.ListForUser(r.Context(), uc.UserID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*catalog.TaskType{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// adminStatuses reports per-user whether any session was logged today.
func (h *Handler) adminStatuses(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.List(r.Context())
	if err != nil {
		h.writeManagerError(w, err)
		return
	}

	type userStatus struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		Email       string `json:"email"`
		LoggedToday bool   `json:"loggedToday"`
	}
	statuses := make([]userStatus, 0, len(users))
	for _, u := range users {
		logged, err := h.manager.LoggedToday(r.Context(), u.ID)
		if err != nil {
			h.writeManagerError(w, err)
			return
		}
		statuses = append(statuses, userStatus{
			ID:          u.ID,
			Username:    u.Username,
			Email:       u.Email,
			LoggedToday: logged,
		})
	}
	writeJSON(w, http.StatusOK, statuses)
}

// writeManagerError maps the error taxonomy onto status codes. Validation
// problems are 4xx with no mutation behind them; everything else is a 5xx
// transient surfaced to the caller without retry.
func (h *Handler) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoOpenSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("task handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
