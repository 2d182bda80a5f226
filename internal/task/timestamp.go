package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are tried in order. Documents written by older tools
// store local times without a zone, optionally with microseconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an RFC 3339 timestamp or a zone-less local one.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// UnmarshalJSON decodes a task record, accepting zone-less timestamps in
// created and last_run.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		Created *string `json:"created"`
		LastRun *string `json:"last_run"`
	}{plain: (*plain)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	t.Created = time.Time{}
	if aux.Created != nil && *aux.Created != "" {
		created, err := ParseTimestamp(*aux.Created)
		if err != nil {
			return fmt.Errorf("created: %w", err)
		}
		t.Created = created
	}

	t.LastRun = nil
	if aux.LastRun != nil && *aux.LastRun != "" {
		lastRun, err := ParseTimestamp(*aux.LastRun)
		if err != nil {
			return fmt.Errorf("last_run: %w", err)
		}
		t.LastRun = &lastRun
	}
	return nil
}
