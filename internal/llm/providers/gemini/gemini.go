// internal/llm/providers/gemini/gemini.go
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/moyu-ai/moyu-writer/internal/llm"
)

func init() {
	llm.Register("gemini", func() llm.Provider {
		return &Provider{
			models: []string{
				"gemini-1.5-pro",
				"gemini-1.5-flash",
				"gemini-2.0-flash",
			},
			baseURL: "https://generativelanguage.googleapis.com/v1beta",
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
	p.defaultModel = "gemini-1.5-pro"

	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}
	return nil
}

func (p *Provider) GetName() string {
	return "Gemini"
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

	// 构建Gemini请求
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
	}
	if req.MaxTokens > 0 {
		requestBody["generationConfig"] = map[string]interface{}{
			"maxOutputTokens": req.MaxTokens,
		}
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	// 注意Gemini API的URL结构与OpenAI兼容接口不同
	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, key)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		var errorResp map[string]interface{}
		if json.Unmarshal(body, &errorResp) == nil {
			if errorObj, ok := errorResp["error"].(map[string]interface{}); ok {
				return nil, fmt.Errorf("Gemini 请求失败(%d): %v", httpResp.StatusCode, errorObj["message"])
			}
		}
		return nil, fmt.Errorf("Gemini 请求失败(%d): %s", httpResp.StatusCode, string(body))
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Candidates) == 0 {
		return nil, errors.New("Gemini 返回内容为空")
	}

	parts := make([]string, 0, len(response.Candidates[0].Content.Parts))
	for _, part := range response.Candidates[0].Content.Parts {
		parts = append(parts, part.Text)
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		return nil, errors.New("Gemini 返回内容为空")
	}

	return &llm.CompletionResponse{
		Text:         text,
		ModelName:    model,
		ProviderName: p.GetName(),
	}, nil
}

// simulatedOutput 无密钥时的确定性占位输出
func simulatedOutput(model, prompt string) string {
	return fmt.Sprintf("【模拟输出】\n模型：%s\n提示：%s...\n请配置 GEMINI_API_KEY 或在设置中粘贴 Key 以启用真实调用。",
		model, truncateRunes(prompt, 160))
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
