// internal/services/storystate_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/prompts"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// AIRefreshCooldown AI 刷新最短间隔
const AIRefreshCooldown = 60 * time.Second

// ErrRefreshCooldown AI 刷新被冷却窗口拒绝
var ErrRefreshCooldown = errors.New("剧情状态刚刚刷新，请稍后再试（约 1 分钟间隔）")

// collapseWhitespace 把连续空白压成单个空格
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// extractDocumentSummary 取文档开头约 200 字作为概要，
// 足够长时在句子边界截断
func extractDocumentSummary(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}

	cleaned := prompts.Head(collapseWhitespace(content), 200)
	runes := []rune(cleaned)
	if len(runes) < 100 {
		return cleaned
	}

	lastSentenceEnd := -1
	for i, r := range runes {
		switch r {
		case '。', '！', '？', '.', '!', '?':
			lastSentenceEnd = i
		}
	}
	if lastSentenceEnd > 50 {
		return string(runes[:lastSentenceEnd+1])
	}
	return cleaned
}

// isHardcodedTemplate 识别未被修改过的演示设定集概要
func isHardcodedTemplate(synopsis string) bool {
	return synopsis != "" &&
		strings.Contains(synopsis, "霓虹都市") &&
		strings.Contains(synopsis, "冯老师") &&
		strings.Contains(synopsis, "影目 air3")
}

// DeriveStoryState 从文档与历史本地推导剧情状态。
// 文档内容优先于故事圣经概要，避免演示模板污染真实创作。
func DeriveStoryState(synopsis string, recentHistory []models.GenerationRecord, recentDocument string) models.StoryState {
	conflicts := make([]string, 0, 3)
	hooks := make([]string, 0, 3)

	scan := recentHistory
	if len(scan) > 10 {
		scan = scan[:10]
	}
	for _, entry := range scan {
		if entry.Tool == models.ToolExpand && strings.Contains(entry.Variant, "冲突") {
			conflicts = append(conflicts, entry.Output)
		}
		if entry.Tool == models.ToolExpand && strings.Contains(entry.Variant, "钩子") {
			hooks = append(hooks, entry.Output)
		}
		if entry.Tool == models.ToolWrite && strings.Contains(entry.Variant, "悬念") {
			hooks = append(hooks, entry.Output)
		}
	}
	if len(conflicts) > 3 {
		conflicts = conflicts[:3]
	}
	if len(hooks) > 3 {
		hooks = hooks[:3]
	}

	lastSummary := prompts.Tail(recentDocument, 800)
	documentSummary := extractDocumentSummary(recentDocument)

	var effectiveSynopsis string
	switch {
	case documentSummary != "":
		effectiveSynopsis = documentSummary
	case strings.TrimSpace(recentDocument) != "":
		effectiveSynopsis = prompts.Head(strings.TrimSpace(recentDocument), 200)
	case isHardcodedTemplate(synopsis):
		effectiveSynopsis = "（暂无故事概要，请开始在编辑器中写作，或点击“重新整理”生成）"
	case synopsis != "":
		effectiveSynopsis = synopsis
	default:
		effectiveSynopsis = "（暂无故事概要，请在 Story Bible 中填写或点击“重新整理”生成）"
	}

	return models.StoryState{
		Synopsis:        effectiveSynopsis,
		ActiveConflicts: conflicts,
		Hooks:           hooks,
		LastSummary:     lastSummary,
	}
}

// SanitizeOverrides 丢弃空字符串与空列表，只保留有效覆盖
func SanitizeOverrides(overrides models.StoryStateOverrides) models.StoryStateOverrides {
	next := models.StoryStateOverrides{}
	if trimmed := strings.TrimSpace(overrides.Synopsis); trimmed != "" {
		next.Synopsis = trimmed
	}
	if len(overrides.ActiveConflicts) > 0 {
		next.ActiveConflicts = overrides.ActiveConflicts
	}
	if len(overrides.Hooks) > 0 {
		next.Hooks = overrides.Hooks
	}
	if trimmed := strings.TrimSpace(overrides.LastSummary); trimmed != "" {
		next.LastSummary = trimmed
	}
	return next
}

// StoryStateService 剧情状态引擎：本地推导、手动覆盖与 AI 整理
type StoryStateService struct {
	store   *storage.Store
	logger  *zap.Logger
	ai      *AIService
	bible   *StoryBibleService
	history *HistoryService

	mu        sync.Mutex
	lastAIRun map[string]time.Time
	now       func() time.Time
	hasKey    func() (bool, error)
}

// NewStoryStateService 创建剧情状态服务
func NewStoryStateService(store *storage.Store, ai *AIService, bible *StoryBibleService, history *HistoryService, logger *zap.Logger) *StoryStateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryStateService{
		store:     store,
		logger:    logger,
		ai:        ai,
		bible:     bible,
		history:   history,
		lastAIRun: make(map[string]time.Time),
		now:       time.Now,
		hasKey:    ai.HasActiveKey,
	}
}

// GetOverrides 项目的手动覆盖
func (s *StoryStateService) GetOverrides(projectID string) (models.StoryStateOverrides, error) {
	var overrides models.StoryStateOverrides
	if _, err := s.store.GetObject(storage.NamespaceStoryState, projectID, &overrides); err != nil {
		return models.StoryStateOverrides{}, err
	}
	return overrides, nil
}

// OverridesPatch 手动覆盖的部分更新，nil 字段保持不变。
// 显式传空值等同于清除该字段（入库前会被清洗掉）。
type OverridesPatch struct {
	Synopsis        *string   `json:"synopsis,omitempty"`
	ActiveConflicts *[]string `json:"activeConflicts,omitempty"`
	Hooks           *[]string `json:"hooks,omitempty"`
	LastSummary     *string   `json:"lastSummary,omitempty"`
}

// UpdateOverrides 合并部分覆盖、清洗后落库
func (s *StoryStateService) UpdateOverrides(projectID string, patch OverridesPatch) (models.StoryStateOverrides, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, err := s.GetOverrides(projectID)
	if err != nil {
		return models.StoryStateOverrides{}, err
	}

	if patch.Synopsis != nil {
		overrides.Synopsis = *patch.Synopsis
	}
	if patch.ActiveConflicts != nil {
		overrides.ActiveConflicts = *patch.ActiveConflicts
	}
	if patch.Hooks != nil {
		overrides.Hooks = *patch.Hooks
	}
	if patch.LastSummary != nil {
		overrides.LastSummary = *patch.LastSummary
	}

	sanitized := SanitizeOverrides(overrides)
	if err := s.store.SetObject(storage.NamespaceStoryState, projectID, sanitized); err != nil {
		return models.StoryStateOverrides{}, err
	}
	return sanitized, nil
}

// ClearOverrides 清空手动覆盖
func (s *StoryStateService) ClearOverrides(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetObject(storage.NamespaceStoryState, projectID, models.StoryStateOverrides{})
}

// ReplaceOverrides 整体写入覆盖，导入项目时使用
func (s *StoryStateService) ReplaceOverrides(projectID string, overrides models.StoryStateOverrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetObject(storage.NamespaceStoryState, projectID, SanitizeOverrides(overrides))
}

// CooldownRemaining 距离下次允许 AI 刷新的剩余时间，0 表示可用
func (s *StoryStateService) CooldownRemaining(projectID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownRemainingLocked(projectID)
}

func (s *StoryStateService) cooldownRemainingLocked(projectID string) time.Duration {
	lastRun, ok := s.lastAIRun[projectID]
	if !ok {
		return 0
	}
	remaining := AIRefreshCooldown - s.now().Sub(lastRun)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StateView 一次刷新的完整返回
type StateView struct {
	State      models.StoryState          `json:"state"`
	Computed   models.StoryState          `json:"computed"`
	Overrides  models.StoryStateOverrides `json:"overrides"`
	CooldownMs int64                      `json:"aiCooldownMs"`
}

// RefreshRequest 剧情状态刷新请求
type RefreshRequest struct {
	ProjectID       string
	DocumentID      string
	DocumentContent string
	UseAI           bool
}

// Refresh 重建剧情状态。UseAI 为 true 且当前提供商配置了密钥时，
// 先经冷却窗口检查，再调用提供商做一次不落历史的整理；冷却时间戳
// 只在成功后推进。未配置密钥时静默退回本地推导，不触发冷却。
func (s *StoryStateService) Refresh(ctx context.Context, req RefreshRequest) (*StateView, error) {
	bible, err := s.bible.Get(req.ProjectID)
	if err != nil {
		return nil, err
	}
	items, err := s.history.List(req.ProjectID, 0)
	if err != nil {
		return nil, err
	}
	overrides, err := s.GetOverrides(req.ProjectID)
	if err != nil {
		return nil, err
	}

	base := DeriveStoryState(bible.Synopsis.Summary, items, req.DocumentContent)
	computed := base

	useAI := req.UseAI
	if useAI {
		hasKey, keyErr := s.hasKey()
		if keyErr != nil {
			return nil, keyErr
		}
		if !hasKey {
			s.logger.Debug("未配置提供商密钥，跳过 AI 整理", zap.String("project", req.ProjectID))
			useAI = false
		}
	}

	if useAI {
		s.mu.Lock()
		remaining := s.cooldownRemainingLocked(req.ProjectID)
		s.mu.Unlock()
		if remaining > 0 {
			return nil, ErrRefreshCooldown
		}

		prompt := prompts.BuildStoryStateSummaryPrompt(prompts.StoryStateSummaryContext{
			Synopsis:       bible.Synopsis.Summary,
			RecentDocument: req.DocumentContent,
			History:        items,
			Overrides:      overrides,
		})

		result, aiErr := s.ai.Generate(ctx, GenerateRequest{
			ProjectID:  req.ProjectID,
			DocumentID: req.DocumentID,
			Tool:       models.ToolBrainstorm,
			Variant:    "剧情摘要",
			Prompt:     prompt,
			MaxTokens:  640,
			SkipLog:    true,
		})
		if aiErr != nil {
			s.logger.Warn("AI 剧情整理失败，保留本地摘要", zap.Error(aiErr))
			return nil, aiErr
		}

		if aiOverrides := prompts.ParseStoryStateSummary(result.Output); aiOverrides != nil {
			computed = models.ApplyStoryStateOverrides(base, *aiOverrides)
		}

		s.mu.Lock()
		s.lastAIRun[req.ProjectID] = s.now()
		s.mu.Unlock()
	}

	view := &StateView{
		State:      models.ApplyStoryStateOverrides(computed, overrides),
		Computed:   computed,
		Overrides:  overrides,
		CooldownMs: s.CooldownRemaining(req.ProjectID).Milliseconds(),
	}
	return view, nil
}
