// internal/services/settings_service.go
package services

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

const settingsKey = "ai-settings"

// SettingsService 管理全局 AI 设置，单实例整体读写
type SettingsService struct {
	store       *storage.Store
	logger      *zap.Logger
	defaultKeys models.APIKeys
	mu          sync.Mutex
}

// NewSettingsService 创建设置服务，defaultKeys 来自环境变量
func NewSettingsService(store *storage.Store, defaultKeys models.APIKeys, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, logger: logger, defaultKeys: defaultKeys}
}

// defaults 按已配置的默认密钥选择初始提供商与模型
func (s *SettingsService) defaults() models.AiSettings {
	provider := models.ProviderDeepSeek
	model := "deepseek-chat"
	switch {
	case s.defaultKeys.DeepSeek != "":
		provider, model = models.ProviderDeepSeek, "deepseek-chat"
	case s.defaultKeys.Gemini != "":
		provider, model = models.ProviderGemini, "gemini-1.5-pro"
	case s.defaultKeys.Zhipu != "":
		provider, model = models.ProviderZhipu, "glm-4.6"
	}

	return models.AiSettings{
		Provider:          provider,
		Model:             model,
		Temperature:       0.7,
		SuggestionCount:   2,
		OutputLength:      160,
		Keys:              s.defaultKeys,
		ParallelProviders: []models.ProviderName{},
	}
}

// Get 读取设置，不存在时落库默认值
func (s *SettingsService) Get() (models.AiSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked()
}

func (s *SettingsService) getLocked() (models.AiSettings, error) {
	var settings models.AiSettings
	found, err := s.store.GetObject(storage.NamespaceSettings, settingsKey, &settings)
	if err != nil {
		return models.AiSettings{}, err
	}
	if !found {
		settings = s.defaults()
		if err := s.store.SetObject(storage.NamespaceSettings, settingsKey, settings); err != nil {
			return models.AiSettings{}, err
		}
		return settings, nil
	}

	// 存量设置未写密钥时补上环境默认值
	if settings.Keys.Gemini == "" {
		settings.Keys.Gemini = s.defaultKeys.Gemini
	}
	if settings.Keys.DeepSeek == "" {
		settings.Keys.DeepSeek = s.defaultKeys.DeepSeek
	}
	if settings.Keys.Zhipu == "" {
		settings.Keys.Zhipu = s.defaultKeys.Zhipu
	}
	return settings, nil
}

// SettingsPatch 可更新的设置字段，nil 表示保持不变。密钥走 SetAPIKey。
type SettingsPatch struct {
	Provider          *models.ProviderName   `json:"provider,omitempty"`
	Model             *string                `json:"model,omitempty"`
	Temperature       *float64               `json:"temperature,omitempty"`
	SuggestionCount   *int                   `json:"suggestionCount,omitempty"`
	OutputLength      *int                   `json:"outputLength,omitempty"`
	ParallelProviders *[]models.ProviderName `json:"parallelProviders,omitempty"`
}

// Update 合并部分更新并持久化
func (s *SettingsService) Update(patch SettingsPatch) (models.AiSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.getLocked()
	if err != nil {
		return models.AiSettings{}, err
	}

	if patch.Provider != nil {
		settings.Provider = *patch.Provider
	}
	if patch.Model != nil {
		settings.Model = *patch.Model
	}
	if patch.Temperature != nil {
		settings.Temperature = *patch.Temperature
	}
	if patch.SuggestionCount != nil {
		count := *patch.SuggestionCount
		if count < 1 {
			count = 1
		}
		if count > 3 {
			count = 3
		}
		settings.SuggestionCount = count
	}
	if patch.OutputLength != nil {
		settings.OutputLength = *patch.OutputLength
	}
	if patch.ParallelProviders != nil {
		settings.ParallelProviders = *patch.ParallelProviders
	}

	if err := s.store.SetObject(storage.NamespaceSettings, settingsKey, settings); err != nil {
		return models.AiSettings{}, err
	}
	return settings, nil
}

// SetAPIKey 更新单个提供商密钥。
// 填入有效密钥时立即切换到对应提供商，模型不匹配时重置为该提供商默认模型。
func (s *SettingsService) SetAPIKey(provider models.ProviderName, key string) (models.AiSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.getLocked()
	if err != nil {
		return models.AiSettings{}, err
	}

	trimmed := strings.TrimSpace(key)
	switch provider {
	case models.ProviderGemini:
		settings.Keys.Gemini = trimmed
		if trimmed != "" {
			settings.Provider = models.ProviderGemini
			if !strings.HasPrefix(settings.Model, "gemini") {
				settings.Model = "gemini-1.5-pro"
			}
		}
	case models.ProviderDeepSeek:
		settings.Keys.DeepSeek = trimmed
		if trimmed != "" {
			settings.Provider = models.ProviderDeepSeek
			if !strings.HasPrefix(settings.Model, "deepseek") {
				settings.Model = "deepseek-chat"
			}
		}
	case models.ProviderZhipu:
		settings.Keys.Zhipu = trimmed
		if trimmed != "" {
			settings.Provider = models.ProviderZhipu
			if !strings.HasPrefix(settings.Model, "glm") {
				settings.Model = "glm-4.6"
			}
		}
	}

	if err := s.store.SetObject(storage.NamespaceSettings, settingsKey, settings); err != nil {
		return models.AiSettings{}, err
	}
	s.logger.Info("更新提供商密钥", zap.String("provider", string(provider)), zap.Bool("cleared", trimmed == ""))
	return settings, nil
}
