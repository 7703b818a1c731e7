// internal/models/storystate.go
package models

// StoryState 剧情状态：概要、冲突、钩子与最近片段
type StoryState struct {
	Synopsis        string   `json:"synopsis"`
	ActiveConflicts []string `json:"activeConflicts"`
	Hooks           []string `json:"hooks"`
	LastSummary     string   `json:"lastSummary"`
}

// StoryStateOverrides 作者手动覆盖，字段存在且非空时覆盖推导结果
type StoryStateOverrides struct {
	Synopsis        string   `json:"synopsis,omitempty"`
	ActiveConflicts []string `json:"activeConflicts,omitempty"`
	Hooks           []string `json:"hooks,omitempty"`
	LastSummary     string   `json:"lastSummary,omitempty"`
}

// IsEmpty 判断是否没有任何有效覆盖
func (o StoryStateOverrides) IsEmpty() bool {
	return o.Synopsis == "" && len(o.ActiveConflicts) == 0 && len(o.Hooks) == 0 && o.LastSummary == ""
}

// ApplyStoryStateOverrides 覆盖合并：非空字段优先于推导值
func ApplyStoryStateOverrides(base StoryState, overrides StoryStateOverrides) StoryState {
	next := base
	if overrides.Synopsis != "" {
		next.Synopsis = overrides.Synopsis
	}
	if len(overrides.ActiveConflicts) > 0 {
		next.ActiveConflicts = overrides.ActiveConflicts
	}
	if len(overrides.Hooks) > 0 {
		next.Hooks = overrides.Hooks
	}
	if overrides.LastSummary != "" {
		next.LastSummary = overrides.LastSummary
	}
	return next
}
