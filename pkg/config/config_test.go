package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type demoCfg struct {
	Name     string        `mapstructure:"name" validate:"required"`
	Interval time.Duration `mapstructure:"interval"`
	Horizon  struct {
		URL string `mapstructure:"url" validate:"required,url"`
	} `mapstructure:"horizon"`
}

func writeYAML(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "demo-svc.yaml"), []byte(body), 0644))
}

func TestLoadAndWatch_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeYAML(t, dir, "name: demo\nhorizon:\n  url: https://horizon-testnet.stellar.org\n")
	t.Setenv("DEMO_SVC_HORIZON_URL", "http://localhost:8000")

	var cfg demoCfg
	_, err := LoadAndWatch("demo-svc", &cfg, map[string]any{"interval": "10s"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, "http://localhost:8000", cfg.Horizon.URL)
}

func TestLoadAndWatch_ValidationFails(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeYAML(t, dir, "horizon:\n  url: not a url\n")

	var cfg demoCfg
	_, err := LoadAndWatch("demo-svc", &cfg, nil, nil)
	assert.Error(t, err)
}

// chdir 等价于 Go 1.24 的 t.Chdir：切换工作目录并在测试结束时恢复
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
