// internal/services/settings_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

func TestSettingsDefaultsByAvailableKey(t *testing.T) {
	tests := []struct {
		name     string
		keys     models.APIKeys
		provider models.ProviderName
		model    string
	}{
		{"无密钥时默认 DeepSeek", models.APIKeys{}, models.ProviderDeepSeek, "deepseek-chat"},
		{"DeepSeek 优先", models.APIKeys{DeepSeek: "sk-d", Gemini: "g"}, models.ProviderDeepSeek, "deepseek-chat"},
		{"其次 Gemini", models.APIKeys{Gemini: "g", Zhipu: "z"}, models.ProviderGemini, "gemini-1.5-pro"},
		{"最后智谱", models.APIKeys{Zhipu: "z"}, models.ProviderZhipu, "glm-4.6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSettingsService(newTestStore(), tt.keys, nil)
			settings, err := svc.Get()
			require.NoError(t, err)
			assert.Equal(t, tt.provider, settings.Provider)
			assert.Equal(t, tt.model, settings.Model)
			assert.Equal(t, 0.7, settings.Temperature)
			assert.Equal(t, 2, settings.SuggestionCount)
			assert.Equal(t, 160, settings.OutputLength)
		})
	}
}

func TestSettingsUpdatePartial(t *testing.T) {
	svc := NewSettingsService(newTestStore(), models.APIKeys{}, nil)

	temp := 1.2
	length := 240
	updated, err := svc.Update(SettingsPatch{Temperature: &temp, OutputLength: &length})
	require.NoError(t, err)
	assert.Equal(t, 1.2, updated.Temperature)
	assert.Equal(t, 240, updated.OutputLength)
	// 未提供的字段保持不变
	assert.Equal(t, models.ProviderDeepSeek, updated.Provider)

	// 重新读取确认已持久化
	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 240, settings.OutputLength)
}

func TestSettingsSuggestionCountClamp(t *testing.T) {
	svc := NewSettingsService(newTestStore(), models.APIKeys{}, nil)

	for input, expected := range map[int]int{0: 1, -2: 1, 2: 2, 3: 3, 9: 3} {
		count := input
		updated, err := svc.Update(SettingsPatch{SuggestionCount: &count})
		require.NoError(t, err)
		assert.Equal(t, expected, updated.SuggestionCount)
	}
}

func TestSetAPIKeySwitchesProvider(t *testing.T) {
	svc := NewSettingsService(newTestStore(), models.APIKeys{}, nil)

	updated, err := svc.SetAPIKey(models.ProviderGemini, "  key-gemini  ")
	require.NoError(t, err)
	assert.Equal(t, "key-gemini", updated.Keys.Gemini)
	assert.Equal(t, models.ProviderGemini, updated.Provider)
	assert.Equal(t, "gemini-1.5-pro", updated.Model)
}

func TestSetAPIKeyKeepsMatchingModel(t *testing.T) {
	svc := NewSettingsService(newTestStore(), models.APIKeys{}, nil)

	model := "gemini-2.0-flash"
	_, err := svc.Update(SettingsPatch{Model: &model})
	require.NoError(t, err)

	// 模型前缀已匹配新提供商时不重置
	updated, err := svc.SetAPIKey(models.ProviderGemini, "key")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", updated.Model)
}

func TestSetAPIKeyClearDoesNotSwitch(t *testing.T) {
	svc := NewSettingsService(newTestStore(), models.APIKeys{}, nil)

	updated, err := svc.SetAPIKey(models.ProviderZhipu, "   ")
	require.NoError(t, err)
	assert.Equal(t, "", updated.Keys.Zhipu)
	// 清空密钥不应切换当前提供商
	assert.Equal(t, models.ProviderDeepSeek, updated.Provider)
}

func TestSettingsBackfillsEnvKeys(t *testing.T) {
	store := newTestStore()

	// 先以无密钥的服务落库默认设置
	first := NewSettingsService(store, models.APIKeys{}, nil)
	_, err := first.Get()
	require.NoError(t, err)

	// 换成带环境密钥的服务，存量设置补上默认密钥
	second := NewSettingsService(store, models.APIKeys{DeepSeek: "env-key"}, nil)
	settings, err := second.Get()
	require.NoError(t, err)
	assert.Equal(t, "env-key", settings.Keys.DeepSeek)
}
