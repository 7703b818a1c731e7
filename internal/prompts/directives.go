// internal/prompts/directives.go
package prompts

import (
	"fmt"
	"strings"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

// BuildToolPrompt 按工具与变体选择构建器；variant 为空走默认构建器，
// 未知变体由各变体表回落到固定默认项，永远不报错。
func BuildToolPrompt(tool models.Tool, variant string, ctx TemplateContext) string {
	switch tool {
	case models.ToolWrite:
		if variant == "" {
			return BuildWritePrompt(ctx)
		}
		return BuildWriteVariantPrompt(variant, ctx)
	case models.ToolRewrite:
		if variant == "" {
			return BuildRewritePrompt(ctx)
		}
		return BuildRewriteVariantPrompt(variant, ctx)
	case models.ToolDescribe:
		if variant == "" {
			return BuildDescribePrompt(ctx)
		}
		return BuildDescribeVariantPrompt(variant, ctx)
	case models.ToolExpand:
		if variant == "" {
			return BuildExpandPrompt(ctx)
		}
		return BuildExpandVariantPrompt(variant, ctx)
	case models.ToolBrainstorm:
		if variant == "" {
			return BuildBrainstormPrompt(ctx)
		}
		return BuildBrainstormVariantPrompt(variant, ctx)
	case models.ToolTwist:
		if variant == "" {
			return BuildTwistPrompt(ctx)
		}
		return BuildTwistVariantPrompt(variant, ctx)
	default:
		if variant == "" {
			return BuildShrinkPrompt(ctx)
		}
		return BuildShrinkVariantPrompt(variant, ctx)
	}
}

// ContextBlock 把浓缩后的剧情状态附在主提示词之后作为背景参考。
// 全部字段为空时返回空串。
func ContextBlock(state models.StoryState) string {
	if state.Synopsis == "" && len(state.ActiveConflicts) == 0 && len(state.Hooks) == 0 {
		return ""
	}

	bulletList := func(items []string, limit int) string {
		if len(items) == 0 {
			return "暂无记录"
		}
		if len(items) > limit {
			items = items[:limit]
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, "- "+item)
		}
		return strings.Join(lines, "\n")
	}

	orNone := func(text string) string {
		if text == "" {
			return "暂无"
		}
		return text
	}

	return fmt.Sprintf("\n\n【背景参考】\n当前剧情摘要：%s\n已知冲突：%s\n现有钩子：%s\n最近剧情片段：%s",
		orNone(state.Synopsis),
		bulletList(state.ActiveConflicts, 2),
		bulletList(state.Hooks, 2),
		orNone(state.LastSummary))
}

// LengthDirectives 按工具追加输出长度/格式约束；
// candidateCount > 1 时附加"方案间必须有差异"条款。
func LengthDirectives(tool models.Tool, outputLength, candidateCount int) string {
	switch tool {
	case models.ToolWrite:
		directive := fmt.Sprintf("\n\n【输出要求】\n- 请控制在约 %d 个中文字符以内\n- **重要：必须续写新内容，不要重复或改写输入内容**\n- 直接从已有内容的结尾继续写下去，保持情节连贯\n- 必须使用中文回答", outputLength)
		if candidateCount > 1 {
			directive += "\n- 如果存在其它候选方案，请确保该方案在情节、情绪或文风上具有明显差异"
		}
		return directive
	case models.ToolBrainstorm:
		directive := "\n\n【输出要求】\n- **重要：必须完整输出所有内容，不要截断或省略**\n- 使用编号或条列格式，输出中文\n- 每个创意点子都要详细描述，确保内容完整"
		if candidateCount > 1 {
			directive += "\n- 若有多组方案，请保持主题差异"
		}
		return directive
	case models.ToolTwist:
		directive := "\n\n【输出要求】\n- **重要：必须完整输出所有内容，不要截断或省略**\n- 输出中文，可编号分条\n- 每个反转都要详细描述其影响和后果，确保内容完整"
		if candidateCount > 1 {
			directive += "\n- 每个反转的方向必须明显不同"
		}
		return directive
	case models.ToolShrink:
		directive := "\n\n【输出要求】\n- 输出中文，保持结构清晰"
		if candidateCount > 1 {
			directive += "\n- 不同方案需在长度或角度上有所区分"
		}
		return directive
	default:
		directive := fmt.Sprintf("\n\n【输出要求】\n- 请控制在约 %d 个中文字符以内\n- 必须使用中文回答", outputLength)
		if candidateCount > 1 {
			directive += "\n- 如果存在其它候选方案，请确保该方案在情节、情绪或文风上具有明显差异"
		}
		return directive
	}
}

// TargetTokens 工具级输出 token 预算。
// 头脑风暴和反转需要更长的输出空间，固定给足额度避免截断。
func TargetTokens(tool models.Tool, outputLength int) int {
	base := outputLength * 2
	if base < 120 {
		base = 120
	}
	if base > 2048 {
		base = 2048
	}

	switch tool {
	case models.ToolShrink:
		if base > 640 {
			return 640
		}
		return base
	case models.ToolBrainstorm, models.ToolTwist:
		return 4000
	default:
		return base
	}
}
