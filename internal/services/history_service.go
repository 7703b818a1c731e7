// internal/services/history_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// HistoryService 管理按项目归档的生成历史。
// 列表采用最新在前的顺序整体读写，入库后的记录除收藏位外不再修改。
type HistoryService struct {
	store  *storage.Store
	logger *zap.Logger
	mu     sync.Mutex
}

// NewHistoryService 创建历史记录服务
func NewHistoryService(store *storage.Store, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{store: store, logger: logger}
}

// LogEntry 一次生成落库所需的字段，ID/时间/收藏位由服务补全
type LogEntry struct {
	ProjectID  string
	DocumentID string
	Tool       models.Tool
	Variant    string
	Input      string
	Output     string
	Model      string
}

func (s *HistoryService) load(projectID string) ([]models.GenerationRecord, error) {
	var items []models.GenerationRecord
	if _, err := s.store.GetObject(storage.NamespaceHistory, projectID, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Log 追加一条记录（最新在前）并返回落库后的完整记录
func (s *HistoryService) Log(entry LogEntry) (*models.GenerationRecord, error) {
	if entry.ProjectID == "" {
		return nil, fmt.Errorf("历史记录缺少项目ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(entry.ProjectID)
	if err != nil {
		return nil, err
	}

	record := models.GenerationRecord{
		ID:         uuid.NewString(),
		ProjectID:  entry.ProjectID,
		DocumentID: entry.DocumentID,
		Tool:       entry.Tool,
		Variant:    entry.Variant,
		Input:      entry.Input,
		Output:     entry.Output,
		Model:      entry.Model,
		CreatedAt:  time.Now().UnixMilli(),
	}

	next := make([]models.GenerationRecord, 0, len(items)+1)
	next = append(next, record)
	next = append(next, items...)

	if err := s.store.SetObject(storage.NamespaceHistory, entry.ProjectID, next); err != nil {
		return nil, err
	}

	s.logger.Debug("写入历史记录",
		zap.String("project", entry.ProjectID),
		zap.String("tool", string(entry.Tool)),
		zap.String("variant", entry.Variant))
	return &record, nil
}

// List 返回项目的历史记录，limit <= 0 表示全部
func (s *HistoryService) List(projectID string, limit int) ([]models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ToggleStar 切换收藏位，返回更新后的记录
func (s *HistoryService) ToggleStar(projectID, recordID string) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(projectID)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID == recordID {
			items[i].Starred = !items[i].Starred
			if err := s.store.SetObject(storage.NamespaceHistory, projectID, items); err != nil {
				return nil, err
			}
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("历史记录不存在: %s", recordID)
}

// Clear 清空项目的全部历史
func (s *HistoryService) Clear(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetObject(storage.NamespaceHistory, projectID, []models.GenerationRecord{})
}

// ReplaceAll 整体写入历史列表，导入项目时使用
func (s *HistoryService) ReplaceAll(projectID string, items []models.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []models.GenerationRecord{}
	}
	return s.store.SetObject(storage.NamespaceHistory, projectID, items)
}
