// internal/models/storybible.go
package models

// StoryBibleBraindump 灵感速记
type StoryBibleBraindump struct {
	Ideas       string `json:"ideas"`
	LastUpdated int64  `json:"lastUpdated"`
}

// StoryBibleSynopsis 故事圣经概要
type StoryBibleSynopsis struct {
	Summary       string   `json:"summary"`
	Beats         []string `json:"beats"`
	LastGenerated int64    `json:"lastGenerated,omitempty"`
}

// StoryBibleCharacter 角色设定
type StoryBibleCharacter struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Hook        string   `json:"hook"`
	Goals       string   `json:"goals"`
	Secrets     string   `json:"secrets"`
	Traits      []string `json:"traits"`
	Importance  string   `json:"importance"`
	LastUpdated int64    `json:"lastUpdated"`
}

// StoryBibleWorldEntry 世界观条目
type StoryBibleWorldEntry struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Connections []string `json:"connections"`
	LastUpdated int64    `json:"lastUpdated"`
}

// StoryBibleOutlineNode 大纲节点
type StoryBibleOutlineNode struct {
	ID       string                  `json:"id"`
	Title    string                  `json:"title"`
	Summary  string                  `json:"summary"`
	Order    int                     `json:"order"`
	Children []StoryBibleOutlineNode `json:"children,omitempty"`
}

// StoryBibleScene 场景卡
type StoryBibleScene struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Purpose     string `json:"purpose"`
	Conflict    string `json:"conflict"`
	Outcome     string `json:"outcome"`
	Status      string `json:"status"`
	LastUpdated int64  `json:"lastUpdated"`
}

// StoryBibleStyle 文风设定
type StoryBibleStyle struct {
	Genre        []string `json:"genre"`
	Tone         string   `json:"tone"`
	POV          string   `json:"pov"`
	Tense        string   `json:"tense"`
	Inspirations []string `json:"inspirations"`
	VoiceNotes   string   `json:"voiceNotes"`
}

// StoryBible 每个项目一份的故事设定集
type StoryBible struct {
	Braindump     StoryBibleBraindump     `json:"braindump"`
	Synopsis      StoryBibleSynopsis      `json:"synopsis"`
	Characters    []StoryBibleCharacter   `json:"characters"`
	Worldbuilding []StoryBibleWorldEntry  `json:"worldbuilding"`
	Outline       []StoryBibleOutlineNode `json:"outline"`
	Scenes        []StoryBibleScene       `json:"scenes"`
	Style         StoryBibleStyle         `json:"style"`
}

// DefaultStoryBible 空白故事圣经
func DefaultStoryBible() StoryBible {
	return StoryBible{
		Synopsis: StoryBibleSynopsis{Beats: []string{}},
		Style: StoryBibleStyle{
			Genre:        []string{},
			POV:          "third",
			Tense:        "past",
			Inspirations: []string{},
		},
		Characters:    []StoryBibleCharacter{},
		Worldbuilding: []StoryBibleWorldEntry{},
		Outline:       []StoryBibleOutlineNode{},
		Scenes:        []StoryBibleScene{},
	}
}
