package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/aatumaykin/taskrunner/internal/manager"
	"github.com/aatumaykin/taskrunner/internal/scheduler"
	"github.com/aatumaykin/taskrunner/internal/task"
)

// taskJSON is a task with its name inlined.
type taskJSON struct {
	Name string `json:"name"`
	task.Task
}

type schedulerJSON struct {
	Running bool              `json:"running"`
	Entries []scheduler.Entry `json:"entries"`
}

type healthJSON struct {
	Status           string `json:"status"`
	SchedulerRunning bool   `json:"scheduler_running"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorJSON{Error: msg})
}

func taskName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if u, err := url.PathUnescape(name); err == nil {
		return u
	}
	return name
}

func sortedTasks(tasks map[string]task.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for name, t := range tasks {
		out = append(out, taskJSON{Name: name, Task: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthJSON{
			Status:           "ok",
			SchedulerRunning: s.tasks.Running(),
		})
	}
}

func (s *Server) handleListTasks() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sortedTasks(s.tasks.List()))
	}
}

func (s *Server) handleGetTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := taskName(r)
		t, ok := s.tasks.Get(name)
		if !ok {
			writeError(w, http.StatusNotFound, "task not found: "+name)
			return
		}
		writeJSON(w, http.StatusOK, taskJSON{Name: t.Name, Task: t})
	}
}

func (s *Server) handleAddTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manager.AddRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		if err := s.tasks.Add(r.Context(), req); err != nil {
			if manager.IsValidation(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.logger.Error("add task failed", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		t, _ := s.tasks.Get(req.Name)
		writeJSON(w, http.StatusCreated, taskJSON{Name: t.Name, Task: t})
	}
}

func (s *Server) handleRemoveTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := taskName(r)
		ok, err := s.tasks.Remove(name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "task not found: "+name)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleToggleTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := taskName(r)
		ok, err := s.tasks.Toggle(name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "task not found: "+name)
			return
		}
		t, _ := s.tasks.Get(name)
		writeJSON(w, http.StatusOK, taskJSON{Name: t.Name, Task: t})
	}
}

func (s *Server) handleRunTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := taskName(r)
		if _, ok := s.tasks.Get(name); !ok {
			writeError(w, http.StatusNotFound, "task not found: "+name)
			return
		}

		ok, err := s.tasks.Execute(r.Context(), name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusConflict, "task is disabled: "+name)
			return
		}

		t, _ := s.tasks.Get(name)
		writeJSON(w, http.StatusOK, taskJSON{Name: t.Name, Task: t})
	}
}

func (s *Server) schedulerState() schedulerJSON {
	entries := s.tasks.Schedules()
	if entries == nil {
		entries = []scheduler.Entry{}
	}
	return schedulerJSON{Running: s.tasks.Running(), Entries: entries}
}

func (s *Server) handleSchedulerStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.schedulerState())
	}
}

func (s *Server) handleSchedulerStart() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.tasks.Start(s.lifetime())
		writeJSON(w, http.StatusOK, s.schedulerState())
	}
}

func (s *Server) handleSchedulerStop() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.tasks.Stop()
		writeJSON(w, http.StatusOK, s.schedulerState())
	}
}
