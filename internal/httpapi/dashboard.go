package httpapi

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"time"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

const dashboardTimeLayout = "2006-01-02 15:04"

type dashboardTask struct {
	Name       string
	Type       string
	Schedule   string
	Enabled    bool
	Next       string
	LastRun    string
	LastResult string
}

type dashboardData struct {
	Running bool
	Tasks   []dashboardTask
}

func (s *Server) dashboardData() dashboardData {
	next := map[string]time.Time{}
	for _, e := range s.tasks.Schedules() {
		if e.Valid {
			next[e.Name] = e.Next
		}
	}

	tasks := sortedTasks(s.tasks.List())
	data := dashboardData{Running: s.tasks.Running(), Tasks: make([]dashboardTask, 0, len(tasks))}
	for _, t := range tasks {
		row := dashboardTask{
			Name:     t.Name,
			Type:     string(t.Type),
			Schedule: t.Schedule,
			Enabled:  t.Enabled,
		}
		if n, ok := next[t.Name]; ok && t.Enabled {
			row.Next = n.Format(dashboardTimeLayout)
		}
		if t.LastRun != nil {
			row.LastRun = t.LastRun.Format(dashboardTimeLayout)
		}
		if t.LastResult != nil {
			row.LastResult = *t.LastResult
		}
		data.Tasks = append(data.Tasks, row)
	}
	return data
}

func (s *Server) handleDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		if err := dashboardTmpl.Execute(&buf, s.dashboardData()); err != nil {
			s.logger.Error("render dashboard failed", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
