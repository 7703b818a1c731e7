// internal/services/project_service.go
package services

import (
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

const projectsKey = "all"
const rootParentKey = "__root__"

// ProjectService 管理项目与文档树。
// 项目列表与每个项目的文档列表都是整体读写的 JSON 数组。
type ProjectService struct {
	store  *storage.Store
	logger *zap.Logger
	mu     sync.Mutex
}

// NewProjectService 创建项目服务
func NewProjectService(store *storage.Store, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{store: store, logger: logger}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// WordCount 字数按 Unicode 字符统计，中文一字一计
func WordCount(content string) int {
	return utf8.RuneCountInString(content)
}

func seedProjects() []models.Project {
	now := nowMillis()
	return []models.Project{
		{
			ID:        "project_demo_1",
			Title:     "赛博天鹅绒 · Cyber Velvet",
			CreatedAt: now - 7*24*int64(time.Hour/time.Millisecond),
			UpdatedAt: now - 6*int64(time.Hour/time.Millisecond),
		},
		{
			ID:        "project_demo_2",
			Title:     "孔雀王朝编年史",
			CreatedAt: now - 14*24*int64(time.Hour/time.Millisecond),
			UpdatedAt: now - 24*int64(time.Hour/time.Millisecond),
		},
	}
}

func seedDocuments(projectID string) []models.Document {
	now := nowMillis()
	switch projectID {
	case "project_demo_1":
		return []models.Document{
			{
				ID:        "doc_demo_1",
				ProjectID: projectID,
				Title:     "第01章 · 夜航日志",
				Content:   "课堂的空气被蓝白色的光谱切割，冯老师眼前的 AR 面板忽然闪烁。",
				CreatedAt: now - 6*24*int64(time.Hour/time.Millisecond),
				UpdatedAt: now - 6*int64(time.Hour/time.Millisecond),
				WordCount: 1832,
				Type:      models.DocumentChapter,
				Order:     0,
			},
			{
				ID:        "doc_demo_2",
				ProjectID: projectID,
				Title:     "角色设定 · 主角档案",
				Content:   "姓名：冯老师\n能力：影目 air3 三维交互，具备共鸣模块。",
				CreatedAt: now - 5*24*int64(time.Hour/time.Millisecond),
				UpdatedAt: now - 2*int64(time.Hour/time.Millisecond),
				WordCount: 945,
				Type:      models.DocumentNote,
				Order:     1,
			},
		}
	case "project_demo_2":
		return []models.Document{
			{
				ID:        "doc_demo_3",
				ProjectID: projectID,
				Title:     "世界观碎片",
				Content:   "清晨的孔雀王朝被雾霭笼罩，旧神与新 AI 的契约摇摇欲坠。",
				CreatedAt: now - 13*24*int64(time.Hour/time.Millisecond),
				UpdatedAt: now - 24*int64(time.Hour/time.Millisecond),
				WordCount: 602,
				Type:      models.DocumentNote,
				Order:     0,
			},
		}
	}
	return []models.Document{}
}

func (s *ProjectService) loadProjects() ([]models.Project, error) {
	var projects []models.Project
	found, err := s.store.GetObject(storage.NamespaceProjects, projectsKey, &projects)
	if err != nil {
		return nil, err
	}
	if !found || len(projects) == 0 {
		projects = seedProjects()
		if err := s.store.SetObject(storage.NamespaceProjects, projectsKey, projects); err != nil {
			return nil, err
		}
		for _, project := range projects {
			docs := normalizeDocuments(project.ID, seedDocuments(project.ID))
			if err := s.store.SetObject(storage.NamespaceDocuments, project.ID, docs); err != nil {
				return nil, err
			}
		}
	}
	return projects, nil
}

func (s *ProjectService) saveProjects(projects []models.Project) error {
	return s.store.SetObject(storage.NamespaceProjects, projectsKey, projects)
}

func (s *ProjectService) loadDocuments(projectID string) ([]models.Document, error) {
	var docs []models.Document
	if _, err := s.store.GetObject(storage.NamespaceDocuments, projectID, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *ProjectService) saveDocuments(projectID string, docs []models.Document) error {
	return s.store.SetObject(storage.NamespaceDocuments, projectID, normalizeDocuments(projectID, docs))
}

// normalizeDocuments 补全缺省字段并按兄弟组重排序号
func normalizeDocuments(projectID string, docs []models.Document) []models.Document {
	now := nowMillis()
	for i := range docs {
		doc := &docs[i]
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.ProjectID = projectID
		if doc.Title == "" {
			doc.Title = "未命名文档"
		}
		if doc.Type == "" {
			doc.Type = models.DocumentNote
		}
		if doc.CreatedAt == 0 {
			doc.CreatedAt = now
		}
		if doc.UpdatedAt == 0 {
			doc.UpdatedAt = now
		}
		if doc.WordCount == 0 && doc.Content != "" {
			doc.WordCount = WordCount(doc.Content)
		}
	}
	return assignSiblingOrder(docs)
}

// assignSiblingOrder 同一父节点下的文档按 order、再按创建时间排序并重新编号
func assignSiblingOrder(docs []models.Document) []models.Document {
	grouped := make(map[string][]models.Document)
	parents := make([]string, 0)
	for _, doc := range docs {
		key := doc.ParentID
		if key == "" {
			key = rootParentKey
		}
		if _, seen := grouped[key]; !seen {
			parents = append(parents, key)
		}
		grouped[key] = append(grouped[key], doc)
	}
	sort.Strings(parents)

	next := make([]models.Document, 0, len(docs))
	for _, parent := range parents {
		siblings := grouped[parent]
		sort.SliceStable(siblings, func(i, j int) bool {
			if siblings[i].Order == siblings[j].Order {
				return siblings[i].CreatedAt < siblings[j].CreatedAt
			}
			return siblings[i].Order < siblings[j].Order
		})
		for idx := range siblings {
			siblings[idx].Order = idx
			next = append(next, siblings[idx])
		}
	}
	return next
}

// ListProjects 项目列表，空库时写入演示数据
func (s *ProjectService) ListProjects() ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProjects()
}

// GetProject 按 ID 取项目
func (s *ProjectService) GetProject(projectID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == projectID {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("项目不存在: %s", projectID)
}

// CreateProject 新建项目（最新在前）
func (s *ProjectService) CreateProject(title string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	project := models.Project{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := append([]models.Project{project}, projects...)
	if err := s.saveProjects(next); err != nil {
		return nil, err
	}
	if err := s.saveDocuments(project.ID, []models.Document{}); err != nil {
		return nil, err
	}
	s.logger.Info("创建项目", zap.String("project", project.ID), zap.String("title", title))
	return &project, nil
}

// RenameProject 重命名项目
func (s *ProjectService) RenameProject(projectID, title string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == projectID {
			projects[i].Title = title
			projects[i].UpdatedAt = nowMillis()
			if err := s.saveProjects(projects); err != nil {
				return nil, err
			}
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("项目不存在: %s", projectID)
}

// DeleteProject 删除项目并级联清理其所有命名空间的数据
func (s *ProjectService) DeleteProject(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}

	next := make([]models.Project, 0, len(projects))
	removed := false
	for _, project := range projects {
		if project.ID == projectID {
			removed = true
			continue
		}
		next = append(next, project)
	}
	if !removed {
		return fmt.Errorf("项目不存在: %s", projectID)
	}

	if err := s.saveProjects(next); err != nil {
		return err
	}
	for _, ns := range []storage.Namespace{
		storage.NamespaceDocuments,
		storage.NamespaceStoryBible,
		storage.NamespaceHistory,
		storage.NamespaceStoryState,
		storage.NamespaceStoryEngine,
	} {
		if err := s.store.Remove(ns, projectID); err != nil {
			s.logger.Warn("清理项目数据失败",
				zap.String("namespace", string(ns)),
				zap.String("project", projectID),
				zap.Error(err))
		}
	}
	s.logger.Info("删除项目", zap.String("project", projectID))
	return nil
}

func (s *ProjectService) touchProject(projectID string) error {
	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	for i := range projects {
		if projects[i].ID == projectID {
			projects[i].UpdatedAt = nowMillis()
			return s.saveProjects(projects)
		}
	}
	return nil
}

// ListDocuments 项目下的全部文档
func (s *ProjectService) ListDocuments(projectID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// CreateDocumentOptions 新建文档的可选字段
type CreateDocumentOptions struct {
	Title    string
	Type     models.DocumentType
	ParentID string
}

// CreateDocument 在项目中新建文档，追加到同级末尾
func (s *ProjectService) CreateDocument(projectID string, opts CreateDocumentOptions) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return nil, err
	}

	docType := opts.Type
	if docType == "" {
		docType = models.DocumentChapter
	}
	title := opts.Title
	if title == "" {
		switch docType {
		case models.DocumentChapter:
			title = "新章节"
		case models.DocumentScene:
			title = "新场景"
		default:
			title = "新文档"
		}
	}

	siblingCount := 0
	for _, doc := range docs {
		if doc.ParentID == opts.ParentID {
			siblingCount++
		}
	}

	now := nowMillis()
	doc := models.Document{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Type:      docType,
		ParentID:  opts.ParentID,
		Order:     siblingCount,
	}

	if err := s.saveDocuments(projectID, append(docs, doc)); err != nil {
		return nil, err
	}
	if err := s.touchProject(projectID); err != nil {
		s.logger.Warn("更新项目时间戳失败", zap.Error(err))
	}
	return &doc, nil
}

// RenameDocument 重命名文档
func (s *ProjectService) RenameDocument(projectID, documentID, title string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == documentID {
			docs[i].Title = title
			docs[i].UpdatedAt = nowMillis()
			if err := s.saveDocuments(projectID, docs); err != nil {
				return nil, err
			}
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("文档不存在: %s", documentID)
}

// UpdateDocumentContent 更新正文并重算字数
func (s *ProjectService) UpdateDocumentContent(projectID, documentID, content string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == documentID {
			docs[i].Content = content
			docs[i].WordCount = WordCount(content)
			docs[i].UpdatedAt = nowMillis()
			if err := s.saveDocuments(projectID, docs); err != nil {
				return nil, err
			}
			if err := s.touchProject(projectID); err != nil {
				s.logger.Warn("更新项目时间戳失败", zap.Error(err))
			}
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("文档不存在: %s", documentID)
}

// DeleteDocuments 删除文档及其全部后代
func (s *ProjectService) DeleteDocuments(projectID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return err
	}

	children := make(map[string][]string)
	for _, doc := range docs {
		if doc.ParentID != "" {
			children[doc.ParentID] = append(children[doc.ParentID], doc.ID)
		}
	}

	toDelete := make(map[string]bool)
	stack := append([]string{}, documentIDs...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if toDelete[current] {
			continue
		}
		toDelete[current] = true
		stack = append(stack, children[current]...)
	}

	remaining := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if !toDelete[doc.ID] {
			remaining = append(remaining, doc)
		}
	}
	return s.saveDocuments(projectID, remaining)
}

// ReorderDocument 在同级内移动文档到目标文档前/后
func (s *ProjectService) ReorderDocument(projectID, documentID, targetID, position string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return err
	}

	var source, target *models.Document
	for i := range docs {
		switch docs[i].ID {
		case documentID:
			source = &docs[i]
		case targetID:
			target = &docs[i]
		}
	}
	if source == nil || target == nil {
		return fmt.Errorf("文档不存在")
	}
	if source.ParentID != target.ParentID {
		return fmt.Errorf("只能在同级文档间排序")
	}

	moved := *source
	moved.UpdatedAt = nowMillis()

	remaining := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != documentID {
			remaining = append(remaining, doc)
		}
	}

	targetIndex := -1
	for i, doc := range remaining {
		if doc.ID == targetID {
			targetIndex = i
			break
		}
	}
	if targetIndex == -1 {
		return fmt.Errorf("目标文档不存在")
	}

	insertIndex := targetIndex
	if position == "after" {
		insertIndex = targetIndex + 1
	}

	next := make([]models.Document, 0, len(docs))
	next = append(next, remaining[:insertIndex]...)
	next = append(next, moved)
	next = append(next, remaining[insertIndex:]...)

	// 重排后按插入位置重写同级 order
	parentKey := moved.ParentID
	order := 0
	for i := range next {
		if next[i].ParentID == parentKey {
			next[i].Order = order
			order++
		}
	}
	return s.saveDocuments(projectID, next)
}

// MoveDocuments 把一组文档移动到新父节点，拒绝移入自身或后代
func (s *ProjectService) MoveDocuments(projectID string, documentIDs []string, targetParentID string) error {
	if len(documentIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(projectID)
	if err != nil {
		return err
	}

	idSet := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		idSet[id] = true
	}
	if targetParentID != "" && idSet[targetParentID] {
		return fmt.Errorf("不能移动到自身")
	}

	parentOf := make(map[string]string, len(docs))
	for _, doc := range docs {
		parentOf[doc.ID] = doc.ParentID
	}
	isDescendantOf := func(candidate, ancestor string) bool {
		cursor := candidate
		for cursor != "" {
			if cursor == ancestor {
				return true
			}
			cursor = parentOf[cursor]
		}
		return false
	}
	if targetParentID != "" {
		for id := range idSet {
			if isDescendantOf(targetParentID, id) {
				return fmt.Errorf("不能移动到后代节点")
			}
		}
	}

	now := nowMillis()
	remaining := make([]models.Document, 0, len(docs))
	moving := make([]models.Document, 0, len(documentIDs))
	for _, doc := range docs {
		if idSet[doc.ID] {
			doc.ParentID = targetParentID
			doc.UpdatedAt = now
			moving = append(moving, doc)
		} else {
			remaining = append(remaining, doc)
		}
	}
	return s.saveDocuments(projectID, append(remaining, moving...))
}

// ReplaceDocuments 整体写入文档列表，导入项目时使用
func (s *ProjectService) ReplaceDocuments(projectID string, docs []models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveDocuments(projectID, docs)
}

// AddProject 追加一个已构造好的项目（最新在前），导入项目时使用
func (s *ProjectService) AddProject(project models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	return s.saveProjects(append([]models.Project{project}, projects...))
}
