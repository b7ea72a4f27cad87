package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// AdminHandler exposes task type CRUD and assignment over HTTP. Every
// route requires the admin role; the server wires auth.RequireAdmin in
// front of this handler.
type AdminHandler struct {
	mux   *http.ServeMux
	store Store
}

// NewAdminHandler creates the admin catalog handler.
func NewAdminHandler(store Store) *AdminHandler {
	h := &AdminHandler{
		mux:   http.NewServeMux(),
		store: store,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *AdminHandler) registerRoutes() {
	h.mux.HandleFunc("GET /admin/tasks", h.listTasks)
	h.mux.HandleFunc("POST /admin/tasks", h.createTask)
	h.mux.HandleFunc("GET /admin/tasks/assignments", h.listAssignments)
	h.mux.HandleFunc("POST /admin/tasks/assign", h.assignTask)
	h.mux.HandleFunc("DELETE /admin/tasks/assign/{taskId}/{userId}", h.unassignTask)
	h.mux.HandleFunc("GET /admin/tasks/{id}", h.getTask)
	h.mux.HandleFunc("PUT /admin/tasks/{id}", h.updateTask)
	h.mux.HandleFunc("DELETE /admin/tasks/{id}", h.deleteTask)
}

func (h *AdminHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.List(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*TaskType{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *AdminHandler) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "task name is required")
		return
	}

	task := &TaskType{ID: uuid.NewString(), Name: body.Name}
	if err := h.store.Create(r.Context(), task); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *AdminHandler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task type not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *AdminHandler) updateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "task name is required")
		return
	}

	task, err := h.store.Update(r.Context(), r.PathValue("id"), body.Name)
	if err != nil {
		if errors.Is(err, ErrProtected) {
			writeError(w, http.StatusBadRequest, "cannot update protected task type")
			return
		}
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *AdminHandler) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, ErrProtected) {
			writeError(w, http.StatusBadRequest, "cannot delete protected task type")
			return
		}
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) assignTask(w http.ResponseWriter, r *http.Request) {
	var body Assignment
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TaskID == "" || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "taskId and userId are required")
		return
	}

	task, err := h.store.Get(r.Context(), body.TaskID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if task == nil {
		writeError(w, http.StatusBadRequest, "invalid task type")
		return
	}

	if err := h.store.Assign(r.Context(), body.TaskID, body.UserID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"taskId":  body.TaskID,
		"userId":  body.UserID,
		"message": "task assigned successfully",
	})
}

func (h *AdminHandler) unassignTask(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.Unassign(r.Context(), r.PathValue("taskId"), r.PathValue("userId"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.Assignments(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if assignments == nil {
		assignments = []*Assignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *AdminHandler) writeStoreError(w http.ResponseWriter, err error) {
	slog.Error("catalog handler error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
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
