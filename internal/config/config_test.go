// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv 清掉环境变量，同时借助 t.Setenv 在测试后恢复原值
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "PORT", "DEBUG_MODE", "ALLOW_ORIGINS")
	t.Setenv("DATA_DIR", filepath.Join(t.TempDir(), "data"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.DebugMode)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Equal(t, ":8080", cfg.Addr())
	// 数据目录会被自动创建
	assert.DirExists(t, cfg.DataDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATA_DIR", filepath.Join(t.TempDir(), "workspace"))
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("ALLOW_ORIGINS", "http://localhost:5173,https://app.example.com")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, []string{"http://localhost:5173", "https://app.example.com"}, cfg.AllowOrigins)

	keys := cfg.DefaultKeys()
	assert.Equal(t, "sk-test", keys.DeepSeek)
	assert.Empty(t, keys.Gemini)
}
