package clipresentation

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp("test")
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"paywall"}, args...))
	return out.String(), err
}

func TestApp_ConfigInitAndCheck(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "paywall.toml")

	out, err := runApp(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	out, err = runApp(t, "--config", path, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "tiers=[2000 3000 5000]")
}

func TestApp_StatusAndReset(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("LOG_LEVEL", "error")
	state := filepath.Join(dir, "state.json")

	out, err := runApp(t, "status", "--state", state)
	require.NoError(t, err)
	assert.Equal(t, "locked\n", out)

	require.NoError(t, os.WriteFile(state, []byte(`{"hasPaidMelya":"true"}`), 0o600))
	out, err = runApp(t, "status", "--state", state)
	require.NoError(t, err)
	assert.Equal(t, "unlocked\n", out)

	_, err = runApp(t, "reset", "--state", state)
	require.NoError(t, err)
	out, err = runApp(t, "status", "--state", state)
	require.NoError(t, err)
	assert.Equal(t, "locked\n", out)
}
