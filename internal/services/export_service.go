// internal/services/export_service.go
package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// ExportVersion 导出包格式版本
const ExportVersion = "1.0.0"

// ExportService 项目导出/导入
type ExportService struct {
	store      *storage.Store
	logger     *zap.Logger
	projects   *ProjectService
	bible      *StoryBibleService
	history    *HistoryService
	storyState *StoryStateService
	engine     *StoryEngineService
}

// NewExportService 创建导出服务
func NewExportService(store *storage.Store, projects *ProjectService, bible *StoryBibleService, history *HistoryService, storyState *StoryStateService, engine *StoryEngineService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:      store,
		logger:     logger,
		projects:   projects,
		bible:      bible,
		history:    history,
		storyState: storyState,
		engine:     engine,
	}
}

// ExportProject 汇总项目全部命名空间的数据为一个版本化文档
func (s *ExportService) ExportProject(projectID string) (*models.ExportedProject, error) {
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	documents, err := s.projects.ListDocuments(projectID)
	if err != nil {
		return nil, err
	}
	bible, err := s.bible.Get(projectID)
	if err != nil {
		return nil, err
	}
	history, err := s.history.List(projectID, 0)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []models.GenerationRecord{}
	}
	overrides, err := s.storyState.GetOverrides(projectID)
	if err != nil {
		return nil, err
	}
	plans, err := s.engine.Plans(projectID)
	if err != nil {
		return nil, err
	}

	exported := &models.ExportedProject{
		Version:      ExportVersion,
		ExportedAt:   time.Now().UnixMilli(),
		Project:      *project,
		Documents:    documents,
		StoryBible:   bible,
		History:      history,
		ChapterPlans: plans,
	}
	if !overrides.IsEmpty() {
		exported.StoryState = &overrides
	}
	return exported, nil
}

// ParseExportedProject 校验并解析导出包
func ParseExportedProject(raw []byte) (*models.ExportedProject, error) {
	var data models.ExportedProject
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析文件失败: %w", err)
	}
	if data.Version == "" || data.Project.ID == "" || data.Documents == nil {
		return nil, fmt.Errorf("无效的项目文件格式")
	}
	return &data, nil
}

// ImportProject 把导出包落库为一个全新项目。
// 项目、文档、历史全部换新 ID，文档树的父子引用同步重映射。
func (s *ExportService) ImportProject(data *models.ExportedProject) (string, error) {
	projectID := uuid.NewString()
	now := time.Now().UnixMilli()

	project := data.Project
	project.ID = projectID
	project.CreatedAt = now
	project.UpdatedAt = now

	idMap := make(map[string]string, len(data.Documents))
	documents := make([]models.Document, 0, len(data.Documents))
	for _, doc := range data.Documents {
		newID := uuid.NewString()
		idMap[doc.ID] = newID
		doc.ID = newID
		doc.ProjectID = projectID
		if doc.CreatedAt == 0 {
			doc.CreatedAt = now
		}
		if doc.UpdatedAt == 0 {
			doc.UpdatedAt = now
		}
		documents = append(documents, doc)
	}
	for i := range documents {
		if documents[i].ParentID == "" {
			continue
		}
		if mapped, ok := idMap[documents[i].ParentID]; ok {
			documents[i].ParentID = mapped
		} else {
			// 父节点不在包里，提升为根节点
			documents[i].ParentID = ""
		}
	}

	history := make([]models.GenerationRecord, 0, len(data.History))
	for _, item := range data.History {
		item.ID = uuid.NewString()
		item.ProjectID = projectID
		if item.CreatedAt == 0 {
			item.CreatedAt = now
		}
		if mapped, ok := idMap[item.DocumentID]; ok {
			item.DocumentID = mapped
		}
		history = append(history, item)
	}

	// 规划按旧章节 ID 存储，重映射到新 ID
	plans := make(map[string]models.ChapterPlan, len(data.ChapterPlans))
	for chapterID, plan := range data.ChapterPlans {
		if mapped, ok := idMap[chapterID]; ok {
			plans[mapped] = plan
		}
	}

	if err := s.projects.AddProject(project); err != nil {
		return "", err
	}
	if err := s.projects.ReplaceDocuments(projectID, documents); err != nil {
		return "", err
	}
	if err := s.bible.Replace(projectID, data.StoryBible); err != nil {
		return "", err
	}
	if err := s.history.ReplaceAll(projectID, history); err != nil {
		return "", err
	}
	if data.StoryState != nil {
		if err := s.storyState.ReplaceOverrides(projectID, *data.StoryState); err != nil {
			return "", err
		}
	}
	if err := s.engine.ReplacePlans(projectID, plans); err != nil {
		return "", err
	}

	s.logger.Info("导入项目完成",
		zap.String("project", projectID),
		zap.Int("documents", len(documents)),
		zap.Int("history", len(history)))
	return projectID, nil
}
