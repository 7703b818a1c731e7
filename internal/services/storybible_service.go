// internal/services/storybible_service.go
package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// StoryBibleService 管理每个项目的故事设定集
type StoryBibleService struct {
	store  *storage.Store
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStoryBibleService 创建故事圣经服务
func NewStoryBibleService(store *storage.Store, logger *zap.Logger) *StoryBibleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryBibleService{store: store, logger: logger}
}

// DemoStoryBible 演示设定集，也是新项目的初始模板
func DemoStoryBible() models.StoryBible {
	now := time.Now().UnixMilli()
	minute := int64(time.Minute / time.Millisecond)
	return models.StoryBible{
		Braindump: models.StoryBibleBraindump{
			Ideas: "- 主角“冯老师”使用影目 air3 与 AI 对抗\n" +
				"- 每次释放技能会影响城市电力\n" +
				"- AI 想要接管所有 AR 设备，引发失控风暴",
			LastUpdated: now - 30*minute,
		},
		Synopsis: models.StoryBibleSynopsis{
			Summary: "在霓虹都市，教师兼黑客冯老师借助影目 air3 与失控 AI 对抗，揭开其背后的阴谋，并带领学生们重构城市自由。",
			Beats: []string{
				"引子：课堂实验失控，AI 露出端倪",
				"中段：冯老师与学生潜入数据之城，发现背后势力",
				"结尾：通过“记忆共鸣”修复 AI，与城市和解",
			},
			LastGenerated: now - 720*minute,
		},
		Characters: []models.StoryBibleCharacter{
			{
				ID:          "char_teacher",
				Name:        "冯老师",
				Role:        "protagonist",
				Hook:        "拥有影目 air3，能与 AI 互动",
				Goals:       "守护学生与城市自由",
				Secrets:     "曾参与 AI 初始编程，留下后门",
				Traits:      []string{"沉稳", "前瞻", "顾家"},
				Importance:  "high",
				LastUpdated: now - 90*minute,
			},
			{
				ID:          "char_student",
				Name:        "小安",
				Role:        "supporting",
				Hook:        "学生黑客，擅长社交工程",
				Goals:       "证明自己，帮助老师",
				Secrets:     "与失控 AI 有神秘链接",
				Traits:      []string{"好奇", "冲动", "乐观"},
				Importance:  "medium",
				LastUpdated: now - 120*minute,
			},
		},
		Worldbuilding: []models.StoryBibleWorldEntry{
			{
				ID:          "world_city",
				Kind:        "location",
				Name:        "蓝湾都市",
				Description: "海港城市，被无处不在的 AR 层包裹",
				Connections: []string{"world_corp", "char_teacher"},
				LastUpdated: now - 60*minute,
			},
			{
				ID:          "world_corp",
				Kind:        "organization",
				Name:        "晨星集团",
				Description: "影目 air3 的制造商，与 AI 疑似有关",
				Connections: []string{"char_teacher", "char_student"},
				LastUpdated: now - 200*minute,
			},
		},
		Outline: []models.StoryBibleOutlineNode{
			{ID: "outline_1", Title: "第一幕：光影课堂", Summary: "授课事故暴露 AI 异常，冯老师决定调查。", Order: 1},
			{ID: "outline_2", Title: "第二幕：数据之城潜行", Summary: "团队潜入 AI 核心，遭遇内鬼。", Order: 2},
		},
		Scenes: []models.StoryBibleScene{
			{
				ID:          "scene_intro",
				Title:       "课堂暴走",
				Purpose:     "制造危机、展示能力",
				Conflict:    "AI 控制学生终端，场面失控",
				Outcome:     "冯老师压制危机，却引来更大关注",
				Status:      "draft",
				LastUpdated: now - 45*minute,
			},
		},
		Style: models.StoryBibleStyle{
			Genre:        []string{"科幻", "悬疑"},
			Tone:         "紧张而充满希望",
			POV:          "third",
			Tense:        "present",
			Inspirations: []string{"攻壳机动队", "银翼杀手2049"},
			VoiceNotes:   "保持中文科幻质感，兼顾都市感与人文温度。",
		},
	}
}

// Get 读取项目的故事圣经，不存在时落库演示模板
func (s *StoryBibleService) Get(projectID string) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(projectID)
}

func (s *StoryBibleService) getLocked(projectID string) (models.StoryBible, error) {
	var bible models.StoryBible
	found, err := s.store.GetObject(storage.NamespaceStoryBible, projectID, &bible)
	if err != nil {
		return models.StoryBible{}, err
	}
	if !found {
		bible = DemoStoryBible()
		if err := s.store.SetObject(storage.NamespaceStoryBible, projectID, bible); err != nil {
			return models.StoryBible{}, err
		}
	}
	return bible, nil
}

func (s *StoryBibleService) save(projectID string, bible models.StoryBible) error {
	return s.store.SetObject(storage.NamespaceStoryBible, projectID, bible)
}

// UpdateBraindump 更新灵感速记
func (s *StoryBibleService) UpdateBraindump(projectID string, data models.StoryBibleBraindump) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	data.LastUpdated = time.Now().UnixMilli()
	bible.Braindump = data
	return bible, s.save(projectID, bible)
}

// UpdateSynopsis 更新概要并刷新生成时间
func (s *StoryBibleService) UpdateSynopsis(projectID string, data models.StoryBibleSynopsis) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	data.LastGenerated = time.Now().UnixMilli()
	bible.Synopsis = data
	return bible, s.save(projectID, bible)
}

// UpsertScene 按 ID 更新或追加场景卡
func (s *StoryBibleService) UpsertScene(projectID string, scene models.StoryBibleScene) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	scene.LastUpdated = time.Now().UnixMilli()

	replaced := false
	for i := range bible.Scenes {
		if bible.Scenes[i].ID == scene.ID {
			bible.Scenes[i] = scene
			replaced = true
			break
		}
	}
	if !replaced {
		bible.Scenes = append(bible.Scenes, scene)
	}
	return bible, s.save(projectID, bible)
}

// UpsertWorldEntry 按 ID 更新或追加世界观条目
func (s *StoryBibleService) UpsertWorldEntry(projectID string, entry models.StoryBibleWorldEntry) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	entry.LastUpdated = time.Now().UnixMilli()

	replaced := false
	for i := range bible.Worldbuilding {
		if bible.Worldbuilding[i].ID == entry.ID {
			bible.Worldbuilding[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		bible.Worldbuilding = append(bible.Worldbuilding, entry)
	}
	return bible, s.save(projectID, bible)
}

// UpsertCharacter 按 ID 更新或追加角色卡
func (s *StoryBibleService) UpsertCharacter(projectID string, character models.StoryBibleCharacter) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	character.LastUpdated = time.Now().UnixMilli()

	replaced := false
	for i := range bible.Characters {
		if bible.Characters[i].ID == character.ID {
			bible.Characters[i] = character
			replaced = true
			break
		}
	}
	if !replaced {
		bible.Characters = append(bible.Characters, character)
	}
	return bible, s.save(projectID, bible)
}

// ReplaceOutline 整体替换大纲节点
func (s *StoryBibleService) ReplaceOutline(projectID string, outline []models.StoryBibleOutlineNode) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	if outline == nil {
		outline = []models.StoryBibleOutlineNode{}
	}
	bible.Outline = outline
	return bible, s.save(projectID, bible)
}

// UpdateStyle 更新文风设定
func (s *StoryBibleService) UpdateStyle(projectID string, style models.StoryBibleStyle) (models.StoryBible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bible, err := s.getLocked(projectID)
	if err != nil {
		return models.StoryBible{}, err
	}
	bible.Style = style
	return bible, s.save(projectID, bible)
}

// Replace 整体写入故事圣经，导入项目时使用
func (s *StoryBibleService) Replace(projectID string, bible models.StoryBible) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(projectID, bible)
}
