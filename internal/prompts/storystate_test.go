// internal/prompts/storystate_test.go
package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

func TestBuildHistoryDigest(t *testing.T) {
	history := []models.GenerationRecord{
		{Tool: models.ToolExpand, Variant: "branch-conflict", Output: "冲突扩展输出"},
		{Tool: models.ToolWrite, Output: "续写输出"},
		{Tool: models.ToolBrainstorm, Variant: "premise", Output: "灵感输出"},
	}

	digest := BuildHistoryDigest(history, 2)
	assert.Contains(t, digest, "- expand · branch-conflict: 冲突扩展输出")
	assert.Contains(t, digest, "- write: 续写输出")
	// 超过 limit 的条目被截掉
	assert.NotContains(t, digest, "灵感输出")

	assert.Equal(t, "", BuildHistoryDigest(nil, 5))
}

func TestBuildStoryStateSummaryPromptPlaceholders(t *testing.T) {
	prompt := BuildStoryStateSummaryPrompt(StoryStateSummaryContext{})
	assert.Contains(t, prompt, "（暂无正文片段）")
	assert.Contains(t, prompt, "（暂无概要）")
	assert.Contains(t, prompt, "（暂无历史记录）")
	assert.NotContains(t, prompt, "【作者手动补充】")
}

func TestBuildStoryStateSummaryPromptManualBlock(t *testing.T) {
	prompt := BuildStoryStateSummaryPrompt(StoryStateSummaryContext{
		Synopsis:       "旧日概要",
		RecentDocument: "最近的正文片段",
		Overrides: models.StoryStateOverrides{
			Synopsis:        "作者改写的概要",
			ActiveConflicts: []string{"冲突一", "冲突二"},
			Hooks:           []string{"钩子一"},
			LastSummary:     "手动摘要",
		},
	})

	assert.Contains(t, prompt, "【作者手动补充】")
	assert.Contains(t, prompt, "手动概要：作者改写的概要")
	assert.Contains(t, prompt, "手动冲突：冲突一 / 冲突二")
	assert.Contains(t, prompt, "手动钩子：钩子一")
	assert.Contains(t, prompt, "手动剧情摘要：手动摘要")
	assert.Contains(t, prompt, "最近的正文片段")
	assert.Contains(t, prompt, "旧日概要")
}

func TestParseStoryStateSummary(t *testing.T) {
	output := `分析完成，结果如下：
{
  "synopsis": " 主角潜入数据之城 ",
  "conflicts": ["AI 封锁", "", "内鬼"],
  "hooks": ["神秘信号", null],
  "latestSummary": "主角发现后门"
}
以上即为摘要。`

	parsed := ParseStoryStateSummary(output)
	require.NotNil(t, parsed)
	assert.Equal(t, "主角潜入数据之城", parsed.Synopsis)
	assert.Equal(t, []string{"AI 封锁", "内鬼"}, parsed.ActiveConflicts)
	assert.Equal(t, []string{"神秘信号"}, parsed.Hooks)
	assert.Equal(t, "主角发现后门", parsed.LastSummary)
}

func TestParseStoryStateSummaryInvalid(t *testing.T) {
	assert.Nil(t, ParseStoryStateSummary("没有任何结构化内容"))
	assert.Nil(t, ParseStoryStateSummary("{broken json"))
	// 合法 JSON 但全部字段为空
	assert.Nil(t, ParseStoryStateSummary(`{"synopsis": "", "conflicts": [], "hooks": []}`))
}
