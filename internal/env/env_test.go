package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("AUDIT_WORKERS", "8")
	t.Setenv("AUDIT_BAD_INT", "eight")
	t.Setenv("AUDIT_REQUIRE_INVOICE", "true")
	t.Setenv("AUDIT_TIMEOUT", "90s")

	assert.Equal(t, 8, GetInt("AUDIT_WORKERS", 1))
	assert.Equal(t, 1, GetInt("AUDIT_BAD_INT", 1))
	assert.Equal(t, 1, GetInt("AUDIT_MISSING", 1))
	assert.True(t, GetBool("AUDIT_REQUIRE_INVOICE", false))
	assert.False(t, GetBool("AUDIT_MISSING", false))
	assert.Equal(t, 90*time.Second, GetDuration("AUDIT_TIMEOUT", time.Second))
	assert.Equal(t, "x", GetString("AUDIT_MISSING", "x"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.env")
	require.NoError(t, os.WriteFile(path, []byte("AUDIT_LOAD_TEST=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AUDIT_LOAD_TEST") })

	require.NoError(t, Load(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", GetString("AUDIT_LOAD_TEST", ""))
}
