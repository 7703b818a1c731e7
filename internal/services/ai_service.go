// internal/services/ai_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moyu-ai/moyu-writer/internal/llm"
	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/prompts"

	_ "github.com/moyu-ai/moyu-writer/internal/llm/providers/deepseek"
	_ "github.com/moyu-ai/moyu-writer/internal/llm/providers/gemini"
	_ "github.com/moyu-ai/moyu-writer/internal/llm/providers/zhipu"
)

// providerDisplayName 历史记录中提供商的展示名
var providerDisplayName = map[models.ProviderName]string{
	models.ProviderGemini:   "Gemini",
	models.ProviderDeepSeek: "DeepSeek",
	models.ProviderZhipu:    "智谱AI",
}

// providerDefaultModels 各提供商默认模型
var providerDefaultModels = map[models.ProviderName]string{
	models.ProviderGemini:   "gemini-1.5-pro",
	models.ProviderDeepSeek: "deepseek-chat",
	models.ProviderZhipu:    "glm-4.6",
}

// toolDisplayName 无变体标签时写入历史的工具展示名
var toolDisplayName = map[models.Tool]string{
	models.ToolWrite:      "续写",
	models.ToolRewrite:    "改写",
	models.ToolDescribe:   "描写",
	models.ToolExpand:     "扩展",
	models.ToolBrainstorm: "头脑风暴",
	models.ToolTwist:      "剧情反转",
	models.ToolShrink:     "缩写",
}

// AIService 生成调度器：组装提示词、路由提供商、落历史记录
type AIService struct {
	history  *HistoryService
	settings *SettingsService
	logger   *zap.Logger

	providerMutex sync.RWMutex
	providerCache map[models.ProviderName]llm.Provider
}

// NewAIService 创建生成调度服务
func NewAIService(history *HistoryService, settings *SettingsService, logger *zap.Logger) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIService{
		history:       history,
		settings:      settings,
		logger:        logger,
		providerCache: make(map[models.ProviderName]llm.Provider),
	}
}

// resolveProvider 按名称取提供商实例，实例无状态可复用
func (s *AIService) resolveProvider(name models.ProviderName) (llm.Provider, error) {
	s.providerMutex.RLock()
	cached, ok := s.providerCache[name]
	s.providerMutex.RUnlock()
	if ok {
		return cached, nil
	}

	provider, err := llm.GetProvider(string(name), map[string]string{})
	if err != nil {
		return nil, err
	}

	s.providerMutex.Lock()
	s.providerCache[name] = provider
	s.providerMutex.Unlock()
	return provider, nil
}

// HasActiveKey 当前设置的提供商是否配置了密钥
func (s *AIService) HasActiveKey() (bool, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return false, err
	}
	return settings.Keys.ForProvider(settings.Provider) != "", nil
}

// GenerateRequest 一次原始生成请求，提示词由调用方组装完毕
type GenerateRequest struct {
	ProjectID  string
	DocumentID string
	Tool       models.Tool
	Variant    string
	Prompt     string
	MaxTokens  int

	// SkipLog 为 true 时不写历史（剧情状态刷新等后台调用）
	SkipLog bool
}

// GenerateResult 单次生成结果
type GenerateResult struct {
	Provider models.ProviderName `json:"provider"`
	Model    string              `json:"model"`
	Output   string              `json:"output"`
	Variant  string              `json:"variant,omitempty"`
	RecordID string              `json:"recordId,omitempty"`
}

// modelForProvider 设置中的模型只在与提供商匹配时沿用，否则回落到默认模型
func modelForProvider(provider models.ProviderName, configured string) string {
	fallback := providerDefaultModels[provider]
	if configured == "" {
		return fallback
	}
	switch provider {
	case models.ProviderGemini:
		if strings.HasPrefix(configured, "gemini") {
			return configured
		}
	case models.ProviderDeepSeek:
		if strings.HasPrefix(configured, "deepseek") {
			return configured
		}
	case models.ProviderZhipu:
		if strings.HasPrefix(configured, "glm") {
			return configured
		}
	}
	return fallback
}

// Generate 单提供商调用，按设置路由并写历史
func (s *AIService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	return s.generateWith(ctx, settings, settings.Provider, req)
}

func (s *AIService) generateWith(ctx context.Context, settings models.AiSettings, providerName models.ProviderName, req GenerateRequest) (*GenerateResult, error) {
	provider, err := s.resolveProvider(providerName)
	if err != nil {
		return nil, err
	}

	model := modelForProvider(providerName, settings.Model)
	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      req.Prompt,
		Model:       model,
		Temperature: settings.Temperature,
		MaxTokens:   req.MaxTokens,
		APIKey:      settings.Keys.ForProvider(providerName),
	})
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{
		Provider: providerName,
		Model:    resp.ModelName,
		Output:   resp.Text,
		Variant:  req.Variant,
	}

	if !req.SkipLog && req.ProjectID != "" {
		record, logErr := s.history.Log(LogEntry{
			ProjectID:  req.ProjectID,
			DocumentID: req.DocumentID,
			Tool:       req.Tool,
			Variant:    req.Variant,
			Input:      req.Prompt,
			Output:     resp.Text,
			Model:      resp.ModelName,
		})
		if logErr != nil {
			s.logger.Warn("写入历史记录失败", zap.Error(logErr))
		} else {
			result.RecordID = record.ID
		}
	}

	return result, nil
}

// GenerateWithMultipleProviders 多提供商并发扇出。
// 全部等待完成，成功的结果保留，失败的只记日志；全失败时返回错误。
func (s *AIService) GenerateWithMultipleProviders(ctx context.Context, providers []models.ProviderName, req GenerateRequest) ([]GenerateResult, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}

	type slot struct {
		result *GenerateResult
		err    error
	}
	slots := make([]slot, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range providers {
		i, name := i, name
		g.Go(func() error {
			fanoutReq := req
			if req.Variant != "" {
				fanoutReq.Variant = fmt.Sprintf("%s · %s", req.Variant, providerDisplayName[name])
			} else {
				fanoutReq.Variant = providerDisplayName[name]
			}

			result, callErr := s.generateWith(gctx, settings, name, fanoutReq)
			if callErr != nil {
				s.logger.Warn("并行调用失败",
					zap.String("provider", string(name)),
					zap.Error(callErr))
				slots[i] = slot{err: callErr}
				return nil
			}
			slots[i] = slot{result: result}
			return nil
		})
	}
	// goroutine 不返回错误，Wait 只做同步屏障
	_ = g.Wait()

	results := make([]GenerateResult, 0, len(providers))
	var lastErr error
	for _, entry := range slots {
		if entry.result != nil {
			results = append(results, *entry.result)
		}
		if entry.err != nil {
			lastErr = entry.err
		}
	}

	s.logger.Info("并行调用完成",
		zap.Int("requested", len(providers)),
		zap.Int("succeeded", len(results)))

	if len(results) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("所有提供商调用失败: %w", lastErr)
		}
		return nil, fmt.Errorf("没有可用的提供商")
	}
	return results, nil
}

// RunToolRequest 一次编辑器工具调用
type RunToolRequest struct {
	ProjectID    string
	DocumentID   string
	Tool         models.Tool
	Variant      string
	VariantLabel string
	Content      string
	Selection    string
	State        models.StoryState
}

// RunTool 编辑器工具入口：组装提示词（模板 + 背景参考 + 输出要求），
// 并行提供商可用时扇出，否则按方案数串行生成。
func (s *AIService) RunTool(ctx context.Context, req RunToolRequest) ([]GenerateResult, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}

	basePrompt := prompts.BuildToolPrompt(req.Tool, req.Variant, prompts.TemplateContext{
		Content:            req.Content,
		Selection:          req.Selection,
		StoryBibleSynopsis: req.State.Synopsis,
	})
	promptWithState := basePrompt + prompts.ContextBlock(req.State)

	count := settings.SuggestionCount
	if count < 1 {
		count = 1
	}
	targetTokens := prompts.TargetTokens(req.Tool, settings.OutputLength)
	directives := prompts.LengthDirectives(req.Tool, settings.OutputLength, count)
	fullPrompt := promptWithState + directives

	variantLabel := req.VariantLabel
	if variantLabel == "" {
		variantLabel = toolDisplayName[req.Tool]
	}

	// 并行扇出：配置了并行提供商且密钥就绪时走多模型
	activeProviders := make([]models.ProviderName, 0, len(settings.ParallelProviders))
	for _, name := range settings.ParallelProviders {
		if settings.Keys.ForProvider(name) != "" {
			activeProviders = append(activeProviders, name)
		}
	}
	if len(activeProviders) > 0 {
		results, fanErr := s.GenerateWithMultipleProviders(ctx, activeProviders, GenerateRequest{
			ProjectID:  req.ProjectID,
			DocumentID: req.DocumentID,
			Tool:       req.Tool,
			Variant:    variantLabel,
			Prompt:     fullPrompt,
			MaxTokens:  targetTokens,
		})
		if fanErr == nil {
			return results, nil
		}
		s.logger.Warn("并行调用全部失败，回退单模型", zap.Error(fanErr))
	}

	results := make([]GenerateResult, 0, count)
	for index := 0; index < count; index++ {
		variantForLog := variantLabel
		promptWithIndex := fullPrompt
		if count > 1 {
			variantForLog = fmt.Sprintf("%s · 方案 %d", variantLabel, index+1)
			promptWithIndex = fmt.Sprintf("%s\n- 当前方案编号：%d", fullPrompt, index+1)
		}

		result, callErr := s.generateWith(ctx, settings, settings.Provider, GenerateRequest{
			ProjectID:  req.ProjectID,
			DocumentID: req.DocumentID,
			Tool:       req.Tool,
			Variant:    variantForLog,
			Prompt:     promptWithIndex,
			MaxTokens:  targetTokens,
		})
		if callErr != nil {
			s.logError(req, settings, promptWithState, callErr)
			if len(results) > 0 {
				// 已有部分方案时保留成果
				return results, nil
			}
			return nil, callErr
		}
		results = append(results, *result)
	}
	return results, nil
}

// logError 失败时也落一条历史，方便用户在面板里看到原因
func (s *AIService) logError(req RunToolRequest, settings models.AiSettings, prompt string, cause error) {
	if req.ProjectID == "" {
		return
	}
	if _, logErr := s.history.Log(LogEntry{
		ProjectID:  req.ProjectID,
		DocumentID: req.DocumentID,
		Tool:       req.Tool,
		Variant:    "错误",
		Input:      prompts.Head(prompt, 200),
		Output:     fmt.Sprintf("生成失败: %v", cause),
		Model:      settings.Model,
	}); logErr != nil {
		s.logger.Error("记录错误日志失败", zap.Error(logErr))
	}
}
