// internal/services/storystate_service_test.go
package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

func newStoryStateFixture(t *testing.T) (*StoryStateService, *HistoryService, *StoryBibleService) {
	t.Helper()
	store := storage.NewStoreWithDriver(storage.NewMemoryDriver(), nil)
	history := NewHistoryService(store, nil)
	bible := NewStoryBibleService(store, nil)
	settings := NewSettingsService(store, models.APIKeys{}, nil)
	ai := NewAIService(history, settings, nil)
	state := NewStoryStateService(store, ai, bible, history, nil)
	return state, history, bible
}

func TestExtractDocumentSummarySentenceBoundary(t *testing.T) {
	// 前 200 字内没有句末标点时原样保留
	summary := extractDocumentSummary(strings.Repeat("乙", 300))
	assert.Equal(t, strings.Repeat("乙", 200), summary)

	content := strings.Repeat("甲", 60) + "！" + strings.Repeat("乙", 300)
	summary = extractDocumentSummary(content)
	assert.Equal(t, strings.Repeat("甲", 60)+"！", summary)

	// 不足 100 字时整段返回
	assert.Equal(t, "很短的段落。", extractDocumentSummary("很短的段落。"))
	assert.Equal(t, "", extractDocumentSummary("   \n\t "))

	// 句末标点出现太早（位置 ≤50）时不在句子边界截断
	early := "啊。" + strings.Repeat("乙", 300)
	assert.Equal(t, 200, len([]rune(extractDocumentSummary(early))))
}

func TestDeriveStoryStateSynopsisPrecedence(t *testing.T) {
	doc := strings.Repeat("正文", 100) + "。结尾"
	state := DeriveStoryState("设定集概要", nil, doc)
	assert.NotEmpty(t, state.Synopsis)
	assert.NotEqual(t, "设定集概要", state.Synopsis)

	state = DeriveStoryState("设定集概要", nil, "")
	assert.Equal(t, "设定集概要", state.Synopsis)

	hardcoded := "霓虹都市里，冯老师戴着影目 air3 醒来。"
	state = DeriveStoryState(hardcoded, nil, "")
	assert.Equal(t, "（暂无故事概要，请开始在编辑器中写作，或点击“重新整理”生成）", state.Synopsis)

	state = DeriveStoryState("", nil, "")
	assert.Equal(t, "（暂无故事概要，请在 Story Bible 中填写或点击“重新整理”生成）", state.Synopsis)
}

func TestDeriveStoryStateScansHistory(t *testing.T) {
	history := []models.GenerationRecord{
		{Tool: models.ToolExpand, Variant: "冲突升级", Output: "冲突一"},
		{Tool: models.ToolExpand, Variant: "埋下钩子", Output: "钩子一"},
		{Tool: models.ToolWrite, Variant: "悬念收尾", Output: "钩子二"},
		{Tool: models.ToolBrainstorm, Variant: "冲突", Output: "不该被计入"},
	}
	state := DeriveStoryState("", history, "")
	assert.Equal(t, []string{"冲突一"}, state.ActiveConflicts)
	assert.Equal(t, []string{"钩子一", "钩子二"}, state.Hooks)

	// 超过 10 条只扫描最近 10 条，冲突和钩子各截前 3 条
	many := make([]models.GenerationRecord, 0, 12)
	for i := 0; i < 12; i++ {
		many = append(many, models.GenerationRecord{
			Tool: models.ToolExpand, Variant: "冲突", Output: "条目",
		})
	}
	state = DeriveStoryState("", many, "")
	assert.Len(t, state.ActiveConflicts, 3)
}

func TestDeriveStoryStateLastSummaryTail(t *testing.T) {
	doc := strings.Repeat("前", 500) + strings.Repeat("后", 800)
	state := DeriveStoryState("", nil, doc)
	assert.Equal(t, strings.Repeat("后", 800), state.LastSummary)
}

func TestSanitizeOverrides(t *testing.T) {
	sanitized := SanitizeOverrides(models.StoryStateOverrides{
		Synopsis:        "  有效概要  ",
		ActiveConflicts: []string{},
		Hooks:           []string{"钩子"},
		LastSummary:     "   ",
	})
	assert.Equal(t, "有效概要", sanitized.Synopsis)
	assert.Nil(t, sanitized.ActiveConflicts)
	assert.Equal(t, []string{"钩子"}, sanitized.Hooks)
	assert.Equal(t, "", sanitized.LastSummary)
}

func TestUpdateOverridesPartialMerge(t *testing.T) {
	state, _, _ := newStoryStateFixture(t)

	synopsis := "覆盖概要"
	first, err := state.UpdateOverrides("p1", OverridesPatch{Synopsis: &synopsis})
	require.NoError(t, err)
	assert.Equal(t, "覆盖概要", first.Synopsis)

	hooks := []string{"伏笔甲"}
	second, err := state.UpdateOverrides("p1", OverridesPatch{Hooks: &hooks})
	require.NoError(t, err)
	assert.Equal(t, "覆盖概要", second.Synopsis)
	assert.Equal(t, []string{"伏笔甲"}, second.Hooks)

	// 显式空串清除字段
	empty := ""
	third, err := state.UpdateOverrides("p1", OverridesPatch{Synopsis: &empty})
	require.NoError(t, err)
	assert.Equal(t, "", third.Synopsis)
	assert.Equal(t, []string{"伏笔甲"}, third.Hooks)

	require.NoError(t, state.ClearOverrides("p1"))
	cleared, err := state.GetOverrides("p1")
	require.NoError(t, err)
	assert.Equal(t, models.StoryStateOverrides{}, cleared)
}

func TestRefreshAppliesOverrides(t *testing.T) {
	state, _, _ := newStoryStateFixture(t)

	synopsis := "手动概要"
	_, err := state.UpdateOverrides("p1", OverridesPatch{Synopsis: &synopsis})
	require.NoError(t, err)

	view, err := state.Refresh(context.Background(), RefreshRequest{
		ProjectID:       "p1",
		DocumentContent: "",
		UseAI:           false,
	})
	require.NoError(t, err)
	assert.Equal(t, "手动概要", view.State.Synopsis)
	assert.NotEqual(t, "手动概要", view.Computed.Synopsis)
	assert.Equal(t, "手动概要", view.Overrides.Synopsis)
	assert.Equal(t, int64(0), view.CooldownMs)
}

func TestRefreshAIWithoutKeySkipsCooldown(t *testing.T) {
	state, _, _ := newStoryStateFixture(t)

	// 未配置密钥时 AI 刷新静默退回本地推导，冷却不生效
	view, err := state.Refresh(context.Background(), RefreshRequest{
		ProjectID:       "p1",
		DocumentContent: "钟楼的指针停在午夜。",
		UseAI:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, view.Computed, view.State)
	assert.Equal(t, int64(0), view.CooldownMs)

	// 连续请求也不会被冷却窗口挡住
	_, err = state.Refresh(context.Background(), RefreshRequest{
		ProjectID: "p1",
		UseAI:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), state.CooldownRemaining("p1"))
}

func TestRefreshAICooldown(t *testing.T) {
	state, _, _ := newStoryStateFixture(t)

	current := time.Now()
	state.now = func() time.Time { return current }
	state.hasKey = func() (bool, error) { return true, nil }

	// 模拟输出解析不到 JSON 时保留本地推导
	view, err := state.Refresh(context.Background(), RefreshRequest{
		ProjectID:       "p1",
		DocumentContent: "课堂的灯光忽明忽暗。",
		UseAI:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, view.Computed, view.State)
	assert.Positive(t, view.CooldownMs)

	// 冷却窗口内再次请求被拒绝
	_, err = state.Refresh(context.Background(), RefreshRequest{
		ProjectID: "p1",
		UseAI:     true,
	})
	assert.ErrorIs(t, err, ErrRefreshCooldown)

	// 冷却不影响纯本地刷新，也不影响其他项目
	_, err = state.Refresh(context.Background(), RefreshRequest{ProjectID: "p1"})
	assert.NoError(t, err)
	_, err = state.Refresh(context.Background(), RefreshRequest{ProjectID: "p2", UseAI: true})
	assert.NoError(t, err)

	// 窗口过后恢复可用
	current = current.Add(AIRefreshCooldown + time.Second)
	assert.Equal(t, time.Duration(0), state.CooldownRemaining("p1"))
	_, err = state.Refresh(context.Background(), RefreshRequest{ProjectID: "p1", UseAI: true})
	assert.NoError(t, err)
}
