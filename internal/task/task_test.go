package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "cleanup", want: TypeCleanup},
		{in: "file_cleanup", want: TypeCleanup},
		{in: " Backup ", want: TypeBackup},
		{in: "file_backup", want: TypeBackup},
		{in: "alert", want: TypeAlert},
		{in: "email", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams_Defaults(t *testing.T) {
	var p Params
	assert.Equal(t, DefaultDaysOld, p.CleanupAge())
	assert.Equal(t, "*", p.Pattern())

	zero := 0
	p = Params{DaysOld: &zero, FilePattern: "*.log"}
	assert.Equal(t, 0, p.CleanupAge())
	assert.Equal(t, "*.log", p.Pattern())
}

func TestParams_Validate(t *testing.T) {
	negative := -1
	tests := []struct {
		name    string
		typ     Type
		params  Params
		wantErr bool
	}{
		{name: "cleanup ok", typ: TypeCleanup, params: Params{SourceDir: "/tmp"}},
		{name: "cleanup missing dir", typ: TypeCleanup, wantErr: true},
		{name: "cleanup negative age", typ: TypeCleanup, params: Params{SourceDir: "/tmp", DaysOld: &negative}, wantErr: true},
		{name: "backup ok", typ: TypeBackup, params: Params{SourceDir: "/a", BackupDir: "/b"}},
		{name: "backup missing target", typ: TypeBackup, params: Params{SourceDir: "/a"}, wantErr: true},
		{name: "alert ok", typ: TypeAlert, params: Params{Message: "hi"}},
		{name: "alert empty", typ: TypeAlert, wantErr: true},
		{name: "unknown", typ: Type("sync"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate(tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	days := 3
	orig := Task{Name: "a", Params: Params{DaysOld: &days}}
	orig.Record(time.Now(), "ok")

	c := orig.Clone()
	*c.LastResult = "changed"
	*c.DaysOld = 10

	assert.Equal(t, "ok", *orig.LastResult)
	assert.Equal(t, 3, *orig.DaysOld)
}

func TestNormalizeName(t *testing.T) {
	_, err := NormalizeName("   ")
	assert.ErrorIs(t, err, ErrEmptyName)

	// "é" precomposed vs "e" + combining acute accent
	a, err := NormalizeName("caf\u00e9")
	require.NoError(t, err)
	b, err := NormalizeName(" cafe\u0301 ")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParams_ValidateDaysOldLimit(t *testing.T) {
	limit := MaxDaysOld
	assert.NoError(t, Params{SourceDir: "/tmp", DaysOld: &limit}.Validate(TypeCleanup))

	tooLarge := 200000
	assert.Error(t, Params{SourceDir: "/tmp", DaysOld: &tooLarge}.Validate(TypeCleanup))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-01T12:00:00Z", want: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{in: "2024-01-01T12:00:00.123456", want: time.Date(2024, 1, 1, 12, 0, 0, 123456000, time.Local)},
		{in: "2024-01-01T12:00:00", want: time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)},
		{in: "2024-01-01 12:00:00", want: time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestTask_UnmarshalJSONZonelessTimestamps(t *testing.T) {
	data := []byte(`{
  "type": "file_cleanup",
  "schedule": "every 30m",
  "created": "2024-01-01T12:00:00.123456",
  "enabled": true,
  "last_run": null,
  "source_dir": "/tmp/x",
  "days_old": 3
}`)

	var got Task
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, time.Date(2024, 1, 1, 12, 0, 0, 123456000, time.Local).Equal(got.Created))
	assert.Nil(t, got.LastRun)
	assert.Equal(t, "/tmp/x", got.SourceDir)
	require.NotNil(t, got.DaysOld)
	assert.Equal(t, 3, *got.DaysOld)

	got.Record(time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), "done")
	encoded, err := json.Marshal(got)
	require.NoError(t, err)

	var again Task
	require.NoError(t, json.Unmarshal(encoded, &again))
	require.NotNil(t, again.LastRun)
	assert.True(t, got.LastRun.Equal(*again.LastRun))
	assert.True(t, got.Created.Equal(again.Created))

	assert.Error(t, json.Unmarshal([]byte(`{"created": "soon"}`), &again))
}
