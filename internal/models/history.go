// internal/models/history.go
package models

// Tool 内容生成工具
type Tool string

const (
	ToolWrite       Tool = "write"
	ToolRewrite     Tool = "rewrite"
	ToolDescribe    Tool = "describe"
	ToolExpand      Tool = "expand"
	ToolBrainstorm  Tool = "brainstorm"
	ToolTwist       Tool = "twist"
	ToolShrink      Tool = "shrink"
	ToolChapterPlan Tool = "chapter-plan"
	ToolCustom      Tool = "custom"
)

// GenerationRecord 一次生成的历史记录，入库后除 Starred 外不可变
type GenerationRecord struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	DocumentID string `json:"documentId,omitempty"`
	Tool       Tool   `json:"tool"`
	Variant    string `json:"variant,omitempty"`
	Input      string `json:"input"`
	Output     string `json:"output"`
	Model      string `json:"model"`
	CreatedAt  int64  `json:"createdAt"`
	Starred    bool   `json:"starred"`
}
