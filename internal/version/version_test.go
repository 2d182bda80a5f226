package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore(t *testing.T) {
	v, bt, gc, gv := Version, BuildTime, GitCommit, GoVersion
	t.Cleanup(func() {
		Version, BuildTime, GitCommit, GoVersion = v, bt, gc, gv
	})
}

func TestSetInfo(t *testing.T) {
	restore(t)

	SetInfo("1.0.0", "2026-01-01T00:00:00Z", "abc123", "go1.26")

	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "2026-01-01T00:00:00Z", BuildTime)
	assert.Equal(t, "abc123", GitCommit)
	assert.Equal(t, "go1.26", GoVersion)
}

func TestSetInfo_EmptyValuesKeepCurrent(t *testing.T) {
	restore(t)

	Version = "test-version"
	SetInfo("", "", "", "")

	assert.Equal(t, "test-version", Version)
}

func TestString(t *testing.T) {
	restore(t)
	SetInfo("2.3.4", "today", "deadbeef", "go1.26")

	out := String()
	assert.Contains(t, out, "taskrunner 2.3.4")
	assert.Contains(t, out, "commit: deadbeef")
	assert.Contains(t, FormatStartupMessage(), "2.3.4")
}
