package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easysoft/xuanxuan-host/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	cfgFile, debug, endpoint, noTray = "", false, "", false

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestRootCommands(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "xuanxuan", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = c.Hidden
	}
	assert.Contains(t, names, "host")
	assert.Contains(t, names, "config")
	assert.Contains(t, names, "version")
	assert.True(t, names["window"], "window command is internal")
}

func TestWindowRequiresName(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"window"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.conf")

	out := run(t, "config", "init", "--config", path)
	assert.Contains(t, out, "Configuration saved to")

	cfg, err := config.LoadHostConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.NewHostConfig().Window, cfg.Window)

	out = run(t, "config", "init", "--config", path)
	assert.Contains(t, out, "already exists")

	out = run(t, "config", "show", "--config", path, "--endpoint", "/tmp/xx-test.sock")
	assert.Contains(t, out, "[window]")
	assert.Contains(t, out, "/tmp/xx-test.sock")
	assert.Contains(t, out, "index.html")
}

func TestConfigPath(t *testing.T) {
	out := run(t, "config", "path", "--config", "/tmp/custom/host.conf")
	assert.Equal(t, "/tmp/custom/host.conf\n", out)
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	assert.Contains(t, out, "xuanxuan ")
}
