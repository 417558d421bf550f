package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowcam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, camera.BackendAuto, cfg.Camera.Backend)
	assert.Equal(t, camera.HighestFrameRate(), cfg.Camera.Format)
	assert.False(t, cfg.Web.Server.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
camera:
  backend: replay
  index: 1
  format: 720p
  replay: [a.flog, b.flog]
  loop: true
  timeout: 2s
scheduler:
  interval: 100ms
  max_consecutive_failures: 5
web:
  enabled: true
  port: "9000"
  quality: 60
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, camera.BackendReplay, cfg.Camera.Backend)
	assert.Equal(t, 1, cfg.Camera.Index)
	assert.Equal(t, camera.HD720Request(), cfg.Camera.Format)
	assert.Equal(t, []string{"a.flog", "b.flog"}, cfg.Camera.Replay)
	assert.True(t, cfg.Camera.Loop)
	assert.Equal(t, 2*time.Second, cfg.Camera.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.Interval)
	assert.Equal(t, 5, cfg.Scheduler.MaxConsecutiveFailures)
	assert.True(t, cfg.Web.Server.Enabled)
	assert.Equal(t, "9000", cfg.Web.Server.Port)
	assert.Equal(t, 60, cfg.Web.Preview.Quality)
	assert.Equal(t, "debug", cfg.LogLevel)

	node := cfg.Camera.Node()
	assert.Equal(t, 1, node.Index)
	assert.Equal(t, camera.HD720Request(), node.Request)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "camera:\n  bogus: 1\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "camera:\n  backend: opencv\n  index: 3\n")
	t.Setenv(EnvBackend, "mock")
	t.Setenv(EnvDeviceIndex, "0")
	t.Setenv(EnvFormat, "640x480@15")
	t.Setenv(EnvRecord, "/tmp/cam.flog")
	t.Setenv(EnvWebPort, "9100")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, camera.BackendMock, cfg.Camera.Backend)
	assert.Equal(t, 0, cfg.Camera.Index)
	assert.Equal(t, camera.Exact(640, 480, 15), cfg.Camera.Format)
	assert.Equal(t, "/tmp/cam.flog", cfg.Camera.Record)
	assert.Equal(t, "9100", cfg.Web.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Setenv(EnvDeviceIndex, "first")
	t.Setenv(EnvFormat, "huge")

	cfg := Default()
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvDeviceIndex)
	assert.Contains(t, err.Error(), EnvFormat)
	assert.Equal(t, 0, cfg.Camera.Index)
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Camera.Backend = "firewire"
	cfg.Camera.Index = -1
	cfg.Camera.Format = camera.Request{Mode: camera.ModeExact}
	cfg.Scheduler.Interval = 0
	cfg.Web.Server.Enabled = true
	cfg.Web.Server.Port = "http"
	cfg.Web.Preview.Quality = 101
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, camera.ErrUnknownBackend)
	for _, field := range []string{"camera.index", "camera.format", "scheduler.interval", "web.port", "web.quality", "log_level"} {
		assert.Contains(t, err.Error(), field)
	}

	cfg = Default()
	cfg.Camera.Backend = camera.BackendReplay
	assert.ErrorContains(t, cfg.Validate(), "camera.replay")
}

func TestRead_DefersValidation(t *testing.T) {
	cfg, err := Read(writeFile(t, "camera:\n  backend: replay\n"))
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Camera.Replay = []string{"cam.flog"}
	assert.NoError(t, cfg.Validate())
}
