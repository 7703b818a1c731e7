// internal/llm/providers/zhipu/zhipu.go
package zhipu

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

func init() {
	llm.Register("zhipu", func() llm.Provider {
		return &Provider{
			models: []string{
				"glm-4.6",
				"glm-4.5",
				"glm-4.5-air",
				"glm-4.5-x",
				"glm-4.5-airx",
				"glm-4.5-flash",
			},
			baseURL: "https://open.bigmodel.cn/api/paas/v4",
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
	p.defaultModel = "glm-4.6"

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}
	return nil
}

func (p *Provider) GetName() string {
	return "智谱AI"
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

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 1.0
	}

	// 确保有足够的token空间，但不要放太大（避免思维链吃掉全部额度）
	maxTokens := 2048
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
		if maxTokens < 512 {
			maxTokens = 512
		}
	}

	requestBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"stream":      false,
		"temperature": temperature,
		// 禁用思维链模式，直接返回最终内容
		"thinking":   map[string]string{"type": "disabled"},
		"max_tokens": maxTokens,
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
		return nil, fmt.Errorf("智谱AI 请求失败: %d %s", httpResp.StatusCode, string(body))
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
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Content          string `json:"content"`
				ReasoningContent string `json:"reasoning_content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("智谱AI 错误: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("智谱AI 返回内容为空。响应结构: %s", truncateRunes(string(body), 500))
	}

	choice := response.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		// 只有思维链没有最终内容，说明 max_tokens 太小或输出被截断
		if len([]rune(choice.Message.ReasoningContent)) > 50 {
			return nil, fmt.Errorf("智谱AI 只返回了思维链，没有最终内容。这可能是因为max_tokens太小或被截断。finish_reason: %s", choice.FinishReason)
		}
		return nil, fmt.Errorf("智谱AI 返回内容为空。finish_reason: %s, 响应结构: %s", choice.FinishReason, truncateRunes(string(body), 500))
	}

	return &llm.CompletionResponse{
		Text:         text,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// simulatedOutput 无密钥时的确定性占位输出
func simulatedOutput(model, prompt string) string {
	return fmt.Sprintf("【智谱AI 模拟输出】\n模型：%s\n提示：%s...\n请在右侧设置面板保存智谱AI Key 以启用真实调用。",
		model, truncateRunes(prompt, 160))
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
