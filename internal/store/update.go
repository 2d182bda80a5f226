package store

import (
	"fmt"

	"github.com/aatumaykin/taskrunner/internal/task"
)

// Update runs a read-modify-write cycle: it reloads the current document,
// lets fn change it and saves the result. When st is a Locker the whole
// cycle holds its lock, so writers in other processes are not overwritten.
//
// An error from fn aborts the cycle without saving and is returned as is.
// On success the saved mapping is returned.
func Update(st Store, fn func(tasks map[string]task.Task) error) (map[string]task.Task, error) {
	if l, ok := st.(Locker); ok {
		unlock, err := l.Lock()
		if err != nil {
			return nil, fmt.Errorf("lock task store: %w", err)
		}
		defer unlock()
	}

	tasks := st.Load()
	if err := fn(tasks); err != nil {
		return nil, err
	}
	if err := st.Save(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
