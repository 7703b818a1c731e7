// internal/models/storyengine.go
package models

// SceneOverview 章节下单个场景的只读概览
type SceneOverview struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	WordCount      int    `json:"wordCount"`
	Order          int    `json:"order"`
	ContentPreview string `json:"contentPreview"`
}

// ChapterOverview 章节概览，由文档树实时重建，不落盘
type ChapterOverview struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	WordCount      int             `json:"wordCount"`
	Order          int             `json:"order"`
	ContentPreview string          `json:"contentPreview"`
	Scenes         []SceneOverview `json:"scenes"`
}

// ChapterPlan 单章节的剧情规划，整体覆盖式持久化
type ChapterPlan struct {
	Summary       string   `json:"summary"`
	Beats         []string `json:"beats"`
	Pacing        string   `json:"pacing"`
	Notes         []string `json:"notes"`
	LastGenerated int64    `json:"lastGenerated,omitempty"`
}

// EmptyChapterPlan 默认规划
func EmptyChapterPlan() ChapterPlan {
	return ChapterPlan{
		Beats:  []string{},
		Pacing: "balanced",
		Notes:  []string{},
	}
}
