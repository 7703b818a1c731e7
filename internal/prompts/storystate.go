// internal/prompts/storystate.go
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

// BuildHistoryDigest 把最近若干条历史记录压缩成带标签的条目列表
func BuildHistoryDigest(history []models.GenerationRecord, limit int) string {
	if len(history) > limit {
		history = history[:limit]
	}
	lines := make([]string, 0, len(history))
	for _, item := range history {
		label := string(item.Tool)
		if item.Variant != "" {
			label += " · " + item.Variant
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", label, Tail(item.Output, 220)))
	}
	return strings.Join(lines, "\n")
}

// StoryStateSummaryContext AI 剧情摘要提示词的输入
type StoryStateSummaryContext struct {
	Synopsis       string
	RecentDocument string
	History        []models.GenerationRecord
	Overrides      models.StoryStateOverrides
}

// BuildStoryStateSummaryPrompt 构建剧情状态摘要提示词。
// 手动覆盖一并下发，避免模型与作者的手动编辑互相矛盾。
func BuildStoryStateSummaryPrompt(ctx StoryStateSummaryContext) string {
	summarySource := Tail(ctx.RecentDocument, 1400)
	if summarySource == "" {
		summarySource = "（暂无正文片段）"
	}

	synopsis := ctx.Synopsis
	if synopsis == "" {
		synopsis = "（暂无概要）"
	}

	historyDigest := BuildHistoryDigest(ctx.History, 5)
	if historyDigest == "" {
		historyDigest = "（暂无历史记录）"
	}

	manualLines := make([]string, 0, 4)
	if ctx.Overrides.Synopsis != "" {
		manualLines = append(manualLines, "手动概要："+ctx.Overrides.Synopsis)
	}
	if len(ctx.Overrides.ActiveConflicts) > 0 {
		manualLines = append(manualLines, "手动冲突："+strings.Join(ctx.Overrides.ActiveConflicts, " / "))
	}
	if len(ctx.Overrides.Hooks) > 0 {
		manualLines = append(manualLines, "手动钩子："+strings.Join(ctx.Overrides.Hooks, " / "))
	}
	if ctx.Overrides.LastSummary != "" {
		manualLines = append(manualLines, "手动剧情摘要："+ctx.Overrides.LastSummary)
	}

	manualBlock := ""
	if len(manualLines) > 0 {
		manualBlock = fmt.Sprintf("【作者手动补充】\n%s\n", strings.Join(manualLines, "\n"))
	}

	return fmt.Sprintf(`你是一名资深华语小说故事编辑，请根据提供的资料产出当前剧情状态摘要。

【重要提示】
- **必须优先分析"最近章节片段"的实际内容**，而不是依赖"故事圣经概要"的模板
- 如果文档内容与故事背景不一致，以文档内容为准
- 概要应该反映当前文档中实际发生的情节，而不是预设的模板

【目标】
1. 用 120-160 字概括当前剧情，保持张力。
2. 列出 2-3 条仍在进行或待解决的冲突。
3. 列出 2-3 条尚未收束的钩子/悬念。
4. 概述最近章节的关键事件，方便续写。
5. 输出必须是合法 JSON，不要添加额外解释。

【最近章节片段】（优先分析此内容）
%s

【故事圣经概要】（仅供参考，可能与实际文档不一致）
%s

【最近 AI 生成摘要】
%s

%s
【输出 JSON 模板】
{
  "synopsis": "120-160 字剧情概括",
  "conflicts": ["冲突1", "冲突2"],
  "hooks": ["钩子1", "钩子2"],
  "latestSummary": "最近章节关键事件（100-150 字）"
}`, summarySource, synopsis, historyDigest, manualBlock)
}

// extractJSONSpan 定位文本中第一个 { 到最后一个 } 的片段
func extractJSONSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseStoryStateSummary 解析 AI 返回的剧情摘要 JSON。
// 解析失败或所有字段为空时返回 nil，调用方保持原有状态。
func ParseStoryStateSummary(output string) *models.StoryStateOverrides {
	candidate, found := extractJSONSpan(output)
	if !found {
		return nil
	}

	var parsed struct {
		Synopsis      string        `json:"synopsis"`
		Conflicts     []interface{} `json:"conflicts"`
		Hooks         []interface{} `json:"hooks"`
		LatestSummary string        `json:"latestSummary"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil
	}

	cleanList := func(items []interface{}) []string {
		cleaned := make([]string, 0, len(items))
		for _, item := range items {
			text := strings.TrimSpace(fmt.Sprint(item))
			if text != "" && text != "<nil>" {
				cleaned = append(cleaned, text)
			}
		}
		return cleaned
	}

	overrides := models.StoryStateOverrides{
		Synopsis:        strings.TrimSpace(parsed.Synopsis),
		ActiveConflicts: cleanList(parsed.Conflicts),
		Hooks:           cleanList(parsed.Hooks),
		LastSummary:     strings.TrimSpace(parsed.LatestSummary),
	}
	if overrides.IsEmpty() {
		return nil
	}
	return &overrides
}
