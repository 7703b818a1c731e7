// internal/services/storyengine_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/prompts"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// ErrPlanInProgress 同一章节的规划生成尚未结束
var ErrPlanInProgress = errors.New("该章节的规划正在生成中")

// ErrChapterNotFound 请求的章节不在文档树中
var ErrChapterNotFound = errors.New("章节不存在")

// buildContentPreview 压缩空白后取前 length 个字符，截断时补省略号
func buildContentPreview(content string, length int) string {
	if content == "" {
		return ""
	}
	trimmed := collapseWhitespace(content)
	if len([]rune(trimmed)) > length {
		return prompts.Head(trimmed, length) + "…"
	}
	return trimmed
}

// BuildChapterOverviews 从文档树实时重建章节/场景概览
func BuildChapterOverviews(documents []models.Document) []models.ChapterOverview {
	chapters := make([]models.Document, 0)
	scenes := make([]models.Document, 0)
	for _, doc := range documents {
		switch doc.Type {
		case models.DocumentChapter:
			chapters = append(chapters, doc)
		case models.DocumentScene:
			scenes = append(scenes, doc)
		}
	}
	sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })

	overviews := make([]models.ChapterOverview, 0, len(chapters))
	for _, chapter := range chapters {
		chapterScenes := make([]models.SceneOverview, 0)
		for _, scene := range scenes {
			if scene.ParentID != chapter.ID {
				continue
			}
			chapterScenes = append(chapterScenes, models.SceneOverview{
				ID:             scene.ID,
				Title:          scene.Title,
				WordCount:      scene.WordCount,
				Order:          scene.Order,
				ContentPreview: buildContentPreview(scene.Content, 180),
			})
		}
		sort.SliceStable(chapterScenes, func(i, j int) bool { return chapterScenes[i].Order < chapterScenes[j].Order })

		overviews = append(overviews, models.ChapterOverview{
			ID:             chapter.ID,
			Title:          chapter.Title,
			WordCount:      chapter.WordCount,
			Order:          chapter.Order,
			ContentPreview: buildContentPreview(chapter.Content, 260),
			Scenes:         chapterScenes,
		})
	}
	return overviews
}

// StoryEngineService 章节规划：概览重建与 AI 规划生成
type StoryEngineService struct {
	store    *storage.Store
	logger   *zap.Logger
	ai       *AIService
	projects *ProjectService
	history  *HistoryService
	state    *StoryStateService

	mu           sync.Mutex
	isGenerating map[string]bool
}

// NewStoryEngineService 创建章节规划服务
func NewStoryEngineService(store *storage.Store, ai *AIService, projects *ProjectService, history *HistoryService, state *StoryStateService, logger *zap.Logger) *StoryEngineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryEngineService{
		store:        store,
		logger:       logger,
		ai:           ai,
		projects:     projects,
		history:      history,
		state:        state,
		isGenerating: make(map[string]bool),
	}
}

// Chapters 项目当前的章节概览
func (s *StoryEngineService) Chapters(projectID string) ([]models.ChapterOverview, error) {
	docs, err := s.projects.ListDocuments(projectID)
	if err != nil {
		return nil, err
	}
	return BuildChapterOverviews(docs), nil
}

// Plans 项目已保存的全部章节规划
func (s *StoryEngineService) Plans(projectID string) (map[string]models.ChapterPlan, error) {
	var plans map[string]models.ChapterPlan
	if _, err := s.store.GetObject(storage.NamespaceStoryEngine, projectID, &plans); err != nil {
		return nil, err
	}
	if plans == nil {
		plans = map[string]models.ChapterPlan{}
	}
	return plans, nil
}

// ReplacePlans 整体写入规划表，导入项目时使用
func (s *StoryEngineService) ReplacePlans(projectID string, plans map[string]models.ChapterPlan) error {
	if plans == nil {
		plans = map[string]models.ChapterPlan{}
	}
	return s.store.SetObject(storage.NamespaceStoryEngine, projectID, plans)
}

// generationKey 同一章节的并发生成互斥
func generationKey(projectID, chapterID string) string {
	return projectID + "/" + chapterID
}

// GenerateChapterPlan 为指定章节生成规划并落库。
// 同一章节的生成请求在进行中时直接拒绝。
func (s *StoryEngineService) GenerateChapterPlan(ctx context.Context, projectID, chapterID string) (*models.ChapterPlan, error) {
	chapters, err := s.Chapters(projectID)
	if err != nil {
		return nil, err
	}
	var chapter *models.ChapterOverview
	for i := range chapters {
		if chapters[i].ID == chapterID {
			chapter = &chapters[i]
			break
		}
	}
	if chapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}

	key := generationKey(projectID, chapterID)
	s.mu.Lock()
	if s.isGenerating[key] {
		s.mu.Unlock()
		return nil, ErrPlanInProgress
	}
	s.isGenerating[key] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.isGenerating, key)
		s.mu.Unlock()
	}()

	items, err := s.history.List(projectID, 8)
	if err != nil {
		return nil, err
	}

	view, err := s.state.Refresh(ctx, RefreshRequest{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	prompt := prompts.BuildChapterPlanPrompt(prompts.ChapterPlanContext{
		Chapter:       *chapter,
		Synopsis:      view.State.Synopsis,
		Conflicts:     view.State.ActiveConflicts,
		Hooks:         view.State.Hooks,
		RecentHistory: items,
	})

	logVariant := fmt.Sprintf("Chapter · %s", chapter.Title)
	result, err := s.ai.Generate(ctx, GenerateRequest{
		ProjectID:  projectID,
		DocumentID: chapterID,
		Tool:       models.ToolChapterPlan,
		Variant:    logVariant,
		Prompt:     prompt,
		MaxTokens:  640,
	})
	if err != nil {
		s.logger.Error("章节规划生成失败",
			zap.String("project", projectID),
			zap.String("chapter", chapterID),
			zap.Error(err))
		return nil, err
	}

	// 解析失败时保留原始输出开头作为摘要
	plan := models.EmptyChapterPlan()
	if parsed := prompts.ParseChapterPlanOutput(result.Output); parsed != nil {
		plan = *parsed
	} else {
		plan.Summary = prompts.Head(result.Output, 280)
	}
	plan.LastGenerated = time.Now().UnixMilli()

	plans, err := s.Plans(projectID)
	if err != nil {
		return nil, err
	}
	plans[chapterID] = plan
	if err := s.store.SetObject(storage.NamespaceStoryEngine, projectID, plans); err != nil {
		return nil, err
	}
	return &plan, nil
}
