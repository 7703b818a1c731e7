// internal/prompts/storyengine.go
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

// ChapterPlanContext 章节规划提示词的输入
type ChapterPlanContext struct {
	Chapter       models.ChapterOverview
	Synopsis      string
	Conflicts     []string
	Hooks         []string
	RecentHistory []models.GenerationRecord
}

// planRelevantTools 只有这几类历史对章节规划有参考价值
var planRelevantTools = map[models.Tool]bool{
	models.ToolExpand:      true,
	models.ToolBrainstorm:  true,
	models.ToolChapterPlan: true,
}

// BuildChapterPlanPrompt 构建章节规划提示词
func BuildChapterPlanPrompt(ctx ChapterPlanContext) string {
	sceneLines := make([]string, 0, len(ctx.Chapter.Scenes))
	for i, scene := range ctx.Chapter.Scenes {
		preview := scene.ContentPreview
		if preview == "" {
			preview = "暂无内容概述"
		}
		sceneLines = append(sceneLines, fmt.Sprintf("%d. %s（%d 字）- %s", i+1, scene.Title, scene.WordCount, preview))
	}
	sceneBlock := strings.Join(sceneLines, "\n")
	if sceneBlock == "" {
		sceneBlock = "暂无场景，请同时给出构思建议"
	}

	historyLines := make([]string, 0, 5)
	for _, item := range ctx.RecentHistory {
		if !planRelevantTools[item.Tool] {
			continue
		}
		label := string(item.Tool)
		if item.Variant != "" {
			label += "·" + item.Variant
		}
		historyLines = append(historyLines, fmt.Sprintf("- %s: %s...", label, Head(item.Output, 80)))
		if len(historyLines) >= 5 {
			break
		}
	}
	historyBlock := strings.Join(historyLines, "\n")
	if historyBlock == "" {
		historyBlock = "暂无"
	}

	chapterPreview := ctx.Chapter.ContentPreview
	if chapterPreview == "" {
		chapterPreview = "暂无内容"
	}
	synopsis := ctx.Synopsis
	if synopsis == "" {
		synopsis = "暂无"
	}
	conflictsText := "暂无记录"
	if len(ctx.Conflicts) > 0 {
		conflictsText = strings.Join(ctx.Conflicts, "; ")
	}
	hooksText := "暂无记录"
	if len(ctx.Hooks) > 0 {
		hooksText = strings.Join(ctx.Hooks, "; ")
	}

	return fmt.Sprintf(`你是一名中文科幻写作的剧情总设计师，请为当前章节生成剧情规划建议。

输出严格使用 JSON，结构如下：
{
  "summary": "章节概览（不超过120字）",
  "beats": ["按照时间顺序的关键剧情节点，每条不超过40字，3-5条"],
  "pacing": "节奏建议（fast|balanced|slow 之一，可附解释）",
  "notes": ["给作者的提醒或补充建议，每条不超过40字，2-4条"]
}

---
章节标题：%s
章节字数：约 %d 字
章节当前文本概览：%s

章节包含场景：
%s

故事概要：%s
当前冲突：%s
已有钩子：%s

相关历史生成（供参考）：
%s

请分析章节定位、节奏、张力，并根据上下文填充 JSON。不要输出解释性文字。`,
		ctx.Chapter.Title, ctx.Chapter.WordCount, chapterPreview,
		sceneBlock, synopsis, conflictsText, hooksText, historyBlock)
}

// ParseChapterPlanOutput 解析章节规划 JSON，找不到对象或解析失败返回 nil
func ParseChapterPlanOutput(raw string) *models.ChapterPlan {
	candidate, found := extractJSONSpan(strings.TrimSpace(raw))
	if !found {
		return nil
	}

	var parsed struct {
		Summary string        `json:"summary"`
		Beats   []interface{} `json:"beats"`
		Pacing  string        `json:"pacing"`
		Notes   []interface{} `json:"notes"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil
	}

	stringItems := func(items []interface{}) []string {
		kept := make([]string, 0, len(items))
		for _, item := range items {
			if text, ok := item.(string); ok {
				kept = append(kept, text)
			}
		}
		return kept
	}

	pacing := strings.TrimSpace(parsed.Pacing)
	if pacing == "" {
		pacing = "balanced"
	}

	return &models.ChapterPlan{
		Summary: strings.TrimSpace(parsed.Summary),
		Beats:   stringItems(parsed.Beats),
		Pacing:  pacing,
		Notes:   stringItems(parsed.Notes),
	}
}
