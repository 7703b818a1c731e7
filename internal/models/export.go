// internal/models/export.go
package models

// ExportedProject 项目导出包，版本化 JSON 文档
type ExportedProject struct {
	Version      string                 `json:"version"`
	ExportedAt   int64                  `json:"exportedAt"`
	Project      Project                `json:"project"`
	Documents    []Document             `json:"documents"`
	StoryBible   StoryBible             `json:"storyBible"`
	History      []GenerationRecord     `json:"history"`
	StoryState   *StoryStateOverrides   `json:"storyState,omitempty"`
	ChapterPlans map[string]ChapterPlan `json:"chapterPlans,omitempty"`
}
