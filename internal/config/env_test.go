package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nTR_ENV_A=one\nTR_ENV_B = \"two\"\ninvalid line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("TR_ENV_A", "")
	t.Setenv("TR_ENV_B", "")
	require.NoError(t, LoadEnv(path))

	assert.Equal(t, "one", os.Getenv("TR_ENV_A"))
	assert.Equal(t, "two", os.Getenv("TR_ENV_B"))
}

func TestLoadEnvOptional(t *testing.T) {
	assert.NoError(t, LoadEnvOptional(filepath.Join(t.TempDir(), "absent.env")))
	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
}
