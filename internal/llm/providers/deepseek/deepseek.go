// internal/llm/providers/deepseek/deepseek.go
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/moyu-ai/moyu-writer/internal/llm"
)

const defaultSystemPrompt = "You are a helpful writing assistant focusing on Chinese fiction."

func init() {
	llm.Register("deepseek", func() llm.Provider {
		return &Provider{
			models: []string{
				"deepseek-chat",
				"deepseek-reasoner",
			},
			baseURL: "https://api.deepseek.com",
		}
	})
}

type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	defaultModel string
	models       []string
}

// Initialize 允许空密钥：未配置时走模拟输出，不视为错误
func (p *Provider) Initialize(config map[string]string) error {
	p.apiKey = strings.TrimSpace(config["api_key"])
	p.client = &http.Client{}
	p.defaultModel = "deepseek-chat"

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}
	return nil
}

func (p *Provider) GetName() string {
	return "DeepSeek"
}

func (p *Provider) GetSupportedModels() []string {
	return p.models
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = p.apiKey
	}
	if key == "" {
		return &llm.CompletionResponse{
			Text:         simulatedOutput(model, req.Prompt),
			ModelName:    model,
			ProviderName: p.GetName(),
			Simulated:    true,
		}, nil
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	requestBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": req.Prompt},
		},
		"stream":      false,
		"temperature": temperature,
	}
	if req.MaxTokens > 0 {
		requestBody["max_tokens"] = req.MaxTokens
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("DeepSeek 请求失败: %d %s", httpResp.StatusCode, string(body))
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	var response struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("DeepSeek 错误: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("DeepSeek 返回内容为空。响应结构: %s", truncateRunes(string(body), 200))
	}

	return &llm.CompletionResponse{
		Text:         response.Choices[0].Message.Content,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// simulatedOutput 无密钥时的确定性占位输出
func simulatedOutput(model, prompt string) string {
	return fmt.Sprintf("【DeepSeek 模拟输出】\n模型：%s\n提示：%s...\n请在右侧设置面板保存 DeepSeek Key 以启用真实调用。",
		model, truncateRunes(prompt, 160))
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
