package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/task"
)

const alertTimeLayout = "2006-01-02 15:04:05"

// Notifier forwards alert messages to an external channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// AlertLog appends alert lines to a log file and optionally forwards them
// to a Notifier.
type AlertLog struct {
	mu       sync.Mutex
	path     string
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewAlertLog creates the alert action writing to path. notifier may be nil.
func NewAlertLog(path string, notifier Notifier, log *logger.Logger) *AlertLog {
	return &AlertLog{
		path:     path,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// Path returns the alert log location.
func (a *AlertLog) Path() string {
	return a.path
}

// Type returns task.TypeAlert.
func (a *AlertLog) Type() task.Type {
	return task.TypeAlert
}

// Execute appends "[YYYY-MM-DD HH:MM:SS] ALERT: <message>" to the log.
// Notifier failures are logged and do not fail the alert.
func (a *AlertLog) Execute(ctx context.Context, t task.Task) (string, error) {
	line := fmt.Sprintf("[%s] ALERT: %s\n", a.now().Format(alertTimeLayout), t.Message)

	if err := a.append(line); err != nil {
		return "", err
	}

	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, t.Message); err != nil {
			a.logger.Warn("alert notification failed",
				logger.Field{Key: "task", Value: t.Name},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	return fmt.Sprintf("Alert logged: %s", t.Message), nil
}

func (a *AlertLog) append(line string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create alert log directory: %w", err)
		}
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write alert log: %w", err)
	}
	return f.Close()
}
