// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

// Config 应用配置，全部来自环境变量（可选 .env 文件）
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	DataDir   string `envconfig:"DATA_DIR" default:"data"`
	DebugMode bool   `envconfig:"DEBUG_MODE" default:"false"`

	// 服务端默认密钥，用户在设置面板填写的密钥优先
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	DeepSeekAPIKey string `envconfig:"DEEPSEEK_API_KEY"`
	ZhipuAPIKey    string `envconfig:"ZHIPU_API_KEY"`

	AllowOrigins []string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

// Load 加载配置。.env 文件缺失不算错误。
func Load() (*Config, error) {
	godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败 %s: %w", cfg.DataDir, err)
	}

	return &cfg, nil
}

// DefaultKeys 环境变量携带的默认提供商密钥
func (c *Config) DefaultKeys() models.APIKeys {
	return models.APIKeys{
		Gemini:   c.GeminiAPIKey,
		DeepSeek: c.DeepSeekAPIKey,
		Zhipu:    c.ZhipuAPIKey,
	}
}

// Addr 监听地址
func (c *Config) Addr() string {
	return ":" + c.Port
}
