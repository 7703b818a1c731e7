// internal/models/settings.go
package models

// ProviderName AI 提供商标识
type ProviderName string

const (
	ProviderGemini   ProviderName = "gemini"
	ProviderDeepSeek ProviderName = "deepseek"
	ProviderZhipu    ProviderName = "zhipu"
)

// APIKeys 各提供商的用户密钥，未配置时回落到环境变量默认值
type APIKeys struct {
	Gemini   string `json:"gemini,omitempty"`
	DeepSeek string `json:"deepseek,omitempty"`
	Zhipu    string `json:"zhipu,omitempty"`
}

// ForProvider 取指定提供商的密钥
func (k APIKeys) ForProvider(provider ProviderName) string {
	switch provider {
	case ProviderGemini:
		return k.Gemini
	case ProviderDeepSeek:
		return k.DeepSeek
	case ProviderZhipu:
		return k.Zhipu
	}
	return ""
}

// AiSettings 全局 AI 设置（单实例，不按项目区分）
type AiSettings struct {
	Provider          ProviderName   `json:"provider"`
	Model             string         `json:"model"`
	Temperature       float64        `json:"temperature"`
	SuggestionCount   int            `json:"suggestionCount"`
	OutputLength      int            `json:"outputLength"`
	Keys              APIKeys        `json:"keys"`
	ParallelProviders []ProviderName `json:"parallelProviders,omitempty"`
}
