// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/llm"
	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/services"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// Handler 聚合全部 HTTP 端点
type Handler struct {
	response *ResponseHelper
	logger   *zap.Logger
	hub      *EventHub

	store    *storage.Store
	projects *services.ProjectService
	bible    *services.StoryBibleService
	history  *services.HistoryService
	settings *services.SettingsService
	ai       *services.AIService
	state    *services.StoryStateService
	engine   *services.StoryEngineService
	export   *services.ExportService
}

// NewHandler 创建处理器
func NewHandler(
	store *storage.Store,
	projects *services.ProjectService,
	bible *services.StoryBibleService,
	history *services.HistoryService,
	settings *services.SettingsService,
	ai *services.AIService,
	state *services.StoryStateService,
	engine *services.StoryEngineService,
	export *services.ExportService,
	hub *EventHub,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		response: NewResponseHelper(),
		logger:   logger,
		hub:      hub,
		store:    store,
		projects: projects,
		bible:    bible,
		history:  history,
		settings: settings,
		ai:       ai,
		state:    state,
		engine:   engine,
		export:   export,
	}
}

// ==================== 健康检查 ====================

// HealthCheck 服务与存储后端状态
func (h *Handler) HealthCheck(c *gin.Context) {
	h.response.Success(c, gin.H{
		"status":    "healthy",
		"backend":   h.store.Backend(),
		"providers": llm.ListProviders(),
		"time":      time.Now().UnixMilli(),
	})
}

// ==================== 项目 ====================

// ListProjects 项目列表，按创建倒序
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.projects.ListProjects()
	if err != nil {
		h.response.InternalError(c, "获取项目列表失败", err.Error())
		return
	}
	h.response.Success(c, projects)
}

// CreateProject 新建项目
func (h *Handler) CreateProject(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	project, err := h.projects.CreateProject(req.Title)
	if err != nil {
		h.response.InternalError(c, "创建项目失败", err.Error())
		return
	}
	h.response.Created(c, project, "项目创建成功")
}

// RenameProject 重命名项目
func (h *Handler) RenameProject(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	project, err := h.projects.RenameProject(projectID, req.Title)
	if err != nil {
		h.response.NotFound(c, "项目", err.Error())
		return
	}
	h.response.Success(c, project, "项目已重命名")
}

// DeleteProject 删除项目及其全部关联数据
func (h *Handler) DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.projects.DeleteProject(projectID); err != nil {
		h.response.InternalError(c, "删除项目失败", err.Error())
		return
	}
	h.response.Success(c, gin.H{"id": projectID}, "项目已删除")
}

// ==================== 文档 ====================

// ListDocuments 项目文档树
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.projects.ListDocuments(c.Param("project_id"))
	if err != nil {
		h.response.InternalError(c, "获取文档列表失败", err.Error())
		return
	}
	h.response.Success(c, docs)
}

// CreateDocument 新建文档
func (h *Handler) CreateDocument(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Title    string              `json:"title"`
		Type     models.DocumentType `json:"type"`
		ParentID string              `json:"parentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	doc, err := h.projects.CreateDocument(projectID, services.CreateDocumentOptions{
		Title:    req.Title,
		Type:     req.Type,
		ParentID: req.ParentID,
	})
	if err != nil {
		h.response.InternalError(c, "创建文档失败", err.Error())
		return
	}
	h.response.Created(c, doc, "文档创建成功")
}

// RenameDocument 重命名文档
func (h *Handler) RenameDocument(c *gin.Context) {
	projectID := c.Param("project_id")
	documentID := c.Param("document_id")
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	doc, err := h.projects.RenameDocument(projectID, documentID, req.Title)
	if err != nil {
		h.response.NotFound(c, "文档", err.Error())
		return
	}
	h.response.Success(c, doc, "文档已重命名")
}

// UpdateDocumentContent 保存文档正文并重算字数
func (h *Handler) UpdateDocumentContent(c *gin.Context) {
	projectID := c.Param("project_id")
	documentID := c.Param("document_id")
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	doc, err := h.projects.UpdateDocumentContent(projectID, documentID, req.Content)
	if err != nil {
		h.response.NotFound(c, "文档", err.Error())
		return
	}
	h.response.Success(c, doc)
}

// DeleteDocuments 批量删除文档，子孙节点级联删除
func (h *Handler) DeleteDocuments(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	if err := h.projects.DeleteDocuments(projectID, req.IDs); err != nil {
		h.response.InternalError(c, "删除文档失败", err.Error())
		return
	}
	h.response.Success(c, gin.H{"deleted": req.IDs}, "文档已删除")
}

// ReorderDocument 同级排序调整
func (h *Handler) ReorderDocument(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		DocumentID string `json:"documentId" binding:"required"`
		TargetID   string `json:"targetId" binding:"required"`
		Position   string `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	if req.Position != "before" && req.Position != "after" {
		h.response.BadRequest(c, "position 只支持 before 或 after")
		return
	}
	if err := h.projects.ReorderDocument(projectID, req.DocumentID, req.TargetID, req.Position); err != nil {
		h.response.BadRequest(c, "调整顺序失败", err.Error())
		return
	}
	docs, err := h.projects.ListDocuments(projectID)
	if err != nil {
		h.response.InternalError(c, "获取文档列表失败", err.Error())
		return
	}
	h.response.Success(c, docs)
}

// MoveDocuments 跨层级移动文档
func (h *Handler) MoveDocuments(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		IDs      []string `json:"ids" binding:"required"`
		ParentID string   `json:"parentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	if err := h.projects.MoveDocuments(projectID, req.IDs, req.ParentID); err != nil {
		h.response.BadRequest(c, "移动文档失败", err.Error())
		return
	}
	docs, err := h.projects.ListDocuments(projectID)
	if err != nil {
		h.response.InternalError(c, "获取文档列表失败", err.Error())
		return
	}
	h.response.Success(c, docs)
}

// ==================== 故事圣经 ====================

// GetStoryBible 项目的故事圣经
func (h *Handler) GetStoryBible(c *gin.Context) {
	bible, err := h.bible.Get(c.Param("project_id"))
	if err != nil {
		h.response.InternalError(c, "获取故事设定失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// UpdateBraindump 更新灵感速记
func (h *Handler) UpdateBraindump(c *gin.Context) {
	projectID := c.Param("project_id")
	var req models.StoryBibleBraindump
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.UpdateBraindump(projectID, req)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// UpdateSynopsis 更新故事概要
func (h *Handler) UpdateSynopsis(c *gin.Context) {
	projectID := c.Param("project_id")
	var req models.StoryBibleSynopsis
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.UpdateSynopsis(projectID, req)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// UpsertScene 新增或更新场景卡
func (h *Handler) UpsertScene(c *gin.Context) {
	projectID := c.Param("project_id")
	var req models.StoryBibleScene
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.UpsertScene(projectID, req)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// UpsertCharacter 新增或更新角色卡
func (h *Handler) UpsertCharacter(c *gin.Context) {
	projectID := c.Param("project_id")
	var req models.StoryBibleCharacter
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.UpsertCharacter(projectID, req)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// ReplaceOutline 整体替换大纲
func (h *Handler) ReplaceOutline(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Outline []models.StoryBibleOutlineNode `json:"outline"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.ReplaceOutline(projectID, req.Outline)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// UpdateStyle 更新文风设定
func (h *Handler) UpdateStyle(c *gin.Context) {
	projectID := c.Param("project_id")
	var req models.StoryBibleStyle
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.UpdateStyle(projectID, req)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// UpsertWorldEntry 新增或更新世界观条目
func (h *Handler) UpsertWorldEntry(c *gin.Context) {
	projectID := c.Param("project_id")
	var req models.StoryBibleWorldEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	bible, err := h.bible.UpsertWorldEntry(projectID, req)
	if err != nil {
		h.response.InternalError(c, "保存失败", err.Error())
		return
	}
	h.response.Success(c, bible)
}

// ==================== 生成 ====================

var validTools = map[models.Tool]bool{
	models.ToolWrite:      true,
	models.ToolRewrite:    true,
	models.ToolDescribe:   true,
	models.ToolExpand:     true,
	models.ToolBrainstorm: true,
	models.ToolTwist:      true,
	models.ToolShrink:     true,
	models.ToolCustom:     true,
}

// Generate 编辑器工具生成入口
func (h *Handler) Generate(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Tool         models.Tool `json:"tool" binding:"required"`
		Variant      string      `json:"variant"`
		VariantLabel string      `json:"variantLabel"`
		DocumentID   string      `json:"documentId"`
		Content      string      `json:"content"`
		Selection    string      `json:"selection"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	if !validTools[req.Tool] {
		h.response.BadRequest(c, fmt.Sprintf("不支持的工具: %s", req.Tool))
		return
	}

	view, err := h.state.Refresh(c.Request.Context(), services.RefreshRequest{
		ProjectID:       projectID,
		DocumentID:      req.DocumentID,
		DocumentContent: req.Content,
	})
	if err != nil {
		h.response.InternalError(c, "构建剧情状态失败", err.Error())
		return
	}

	results, err := h.ai.RunTool(c.Request.Context(), services.RunToolRequest{
		ProjectID:    projectID,
		DocumentID:   req.DocumentID,
		Tool:         req.Tool,
		Variant:      req.Variant,
		VariantLabel: req.VariantLabel,
		Content:      req.Content,
		Selection:    req.Selection,
		State:        view.State,
	})
	if err != nil {
		h.response.InternalError(c, "生成失败", err.Error())
		return
	}

	h.hub.Publish("generation", projectID, gin.H{
		"tool":    req.Tool,
		"variant": req.Variant,
		"count":   len(results),
	})
	h.response.Success(c, gin.H{"results": results})
}

// ==================== 历史记录 ====================

// ListHistory 项目生成历史，最新在前
func (h *Handler) ListHistory(c *gin.Context) {
	projectID := c.Param("project_id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.response.BadRequest(c, "limit 必须是非负整数")
			return
		}
		limit = parsed
	}
	items, err := h.history.List(projectID, limit)
	if err != nil {
		h.response.InternalError(c, "获取历史记录失败", err.Error())
		return
	}
	h.response.Success(c, items)
}

// ToggleHistoryStar 切换历史记录收藏
func (h *Handler) ToggleHistoryStar(c *gin.Context) {
	record, err := h.history.ToggleStar(c.Param("project_id"), c.Param("record_id"))
	if err != nil {
		h.response.NotFound(c, "历史记录", err.Error())
		return
	}
	h.response.Success(c, record)
}

// ClearHistory 清空项目历史
func (h *Handler) ClearHistory(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.history.Clear(projectID); err != nil {
		h.response.InternalError(c, "清空历史失败", err.Error())
		return
	}
	h.response.Success(c, gin.H{"projectId": projectID}, "历史已清空")
}

// ==================== 剧情状态 ====================

// GetStoryState 当前剧情状态（规则推导 + 手动覆盖）
func (h *Handler) GetStoryState(c *gin.Context) {
	view, err := h.state.Refresh(c.Request.Context(), services.RefreshRequest{
		ProjectID: c.Param("project_id"),
	})
	if err != nil {
		h.response.InternalError(c, "获取剧情状态失败", err.Error())
		return
	}
	h.response.Success(c, view)
}

// RefreshStoryState 重建剧情状态，可选调用 AI 整理
func (h *Handler) RefreshStoryState(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		DocumentID      string `json:"documentId"`
		DocumentContent string `json:"documentContent"`
		UseAI           bool   `json:"useAI"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	view, err := h.state.Refresh(c.Request.Context(), services.RefreshRequest{
		ProjectID:       projectID,
		DocumentID:      req.DocumentID,
		DocumentContent: req.DocumentContent,
		UseAI:           req.UseAI,
	})
	if err != nil {
		if errors.Is(err, services.ErrRefreshCooldown) {
			h.response.TooManyRequests(c, err.Error(),
				fmt.Sprintf("剩余冷却 %d 毫秒", h.state.CooldownRemaining(projectID).Milliseconds()))
			return
		}
		h.response.InternalError(c, "刷新剧情状态失败", err.Error())
		return
	}
	h.hub.Publish("story-state", projectID, view.State)
	h.response.Success(c, view)
}

// UpdateStoryStateOverrides 合并手动覆盖
func (h *Handler) UpdateStoryStateOverrides(c *gin.Context) {
	projectID := c.Param("project_id")
	var patch services.OverridesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	overrides, err := h.state.UpdateOverrides(projectID, patch)
	if err != nil {
		h.response.InternalError(c, "保存覆盖失败", err.Error())
		return
	}
	h.response.Success(c, overrides)
}

// ClearStoryStateOverrides 清除全部手动覆盖
func (h *Handler) ClearStoryStateOverrides(c *gin.Context) {
	projectID := c.Param("project_id")
	if err := h.state.ClearOverrides(projectID); err != nil {
		h.response.InternalError(c, "清除覆盖失败", err.Error())
		return
	}
	h.response.Success(c, gin.H{"projectId": projectID}, "手动覆盖已清除")
}

// ==================== 章节规划 ====================

// ListChapters 章节/场景概览
func (h *Handler) ListChapters(c *gin.Context) {
	chapters, err := h.engine.Chapters(c.Param("project_id"))
	if err != nil {
		h.response.InternalError(c, "获取章节概览失败", err.Error())
		return
	}
	h.response.Success(c, chapters)
}

// ListChapterPlans 已保存的章节规划
func (h *Handler) ListChapterPlans(c *gin.Context) {
	plans, err := h.engine.Plans(c.Param("project_id"))
	if err != nil {
		h.response.InternalError(c, "获取章节规划失败", err.Error())
		return
	}
	h.response.Success(c, plans)
}

// GenerateChapterPlan 为指定章节生成规划
func (h *Handler) GenerateChapterPlan(c *gin.Context) {
	projectID := c.Param("project_id")
	chapterID := c.Param("chapter_id")
	plan, err := h.engine.GenerateChapterPlan(c.Request.Context(), projectID, chapterID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanInProgress):
			h.response.Conflict(c, err.Error())
		case errors.Is(err, services.ErrChapterNotFound):
			h.response.NotFound(c, "章节", err.Error())
		default:
			h.response.InternalError(c, "生成章节规划失败", err.Error())
		}
		return
	}
	h.hub.Publish("chapter-plan", projectID, gin.H{"chapterId": chapterID, "plan": plan})
	h.response.Success(c, plan)
}

// ==================== 设置 ====================

// maskKey 只保留密钥前 4 位，其余打码
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	runes := []rune(key)
	if len(runes) <= 8 {
		return "****"
	}
	return string(runes[:4]) + "****"
}

func maskedSettings(settings models.AiSettings) models.AiSettings {
	settings.Keys = models.APIKeys{
		Gemini:   maskKey(settings.Keys.Gemini),
		DeepSeek: maskKey(settings.Keys.DeepSeek),
		Zhipu:    maskKey(settings.Keys.Zhipu),
	}
	return settings
}

// GetSettings 当前 AI 设置，密钥打码返回
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get()
	if err != nil {
		h.response.InternalError(c, "获取设置失败", err.Error())
		return
	}
	h.response.Success(c, maskedSettings(settings))
}

// UpdateSettings 部分更新 AI 设置
func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch services.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	settings, err := h.settings.Update(patch)
	if err != nil {
		h.response.InternalError(c, "保存设置失败", err.Error())
		return
	}
	h.response.Success(c, maskedSettings(settings))
}

// SetAPIKey 设置提供商密钥，非空密钥会切换当前提供商
func (h *Handler) SetAPIKey(c *gin.Context) {
	var req struct {
		Provider models.ProviderName `json:"provider" binding:"required"`
		Key      string              `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}
	settings, err := h.settings.SetAPIKey(req.Provider, req.Key)
	if err != nil {
		h.response.BadRequest(c, "设置密钥失败", err.Error())
		return
	}
	h.response.Success(c, maskedSettings(settings), "密钥已保存")
}

// ==================== 导出 / 导入 ====================

// exportFilename 项目标题 + 日期，标题中的路径分隔符替换掉
func exportFilename(title string, exportedAt int64) string {
	cleaned := strings.NewReplacer("/", "_", "\\", "_", "\"", "").Replace(strings.TrimSpace(title))
	if cleaned == "" {
		cleaned = "project"
	}
	date := time.UnixMilli(exportedAt).Format("2006-01-02")
	return fmt.Sprintf("%s_%s.json", cleaned, date)
}

// ExportProject 导出项目为 JSON 文件
func (h *Handler) ExportProject(c *gin.Context) {
	data, err := h.export.ExportProject(c.Param("project_id"))
	if err != nil {
		h.response.NotFound(c, "项目", err.Error())
		return
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		h.response.InternalError(c, "序列化导出数据失败", err.Error())
		return
	}
	h.response.DownloadResponse(c, raw, exportFilename(data.Project.Title, data.ExportedAt), "application/json")
}

// ImportProject 从导出文件导入为新项目
func (h *Handler) ImportProject(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.response.BadRequest(c, "读取导入数据失败", err.Error())
		return
	}
	data, err := services.ParseExportedProject(raw)
	if err != nil {
		h.response.BadRequest(c, "无效的导入文件", err.Error())
		return
	}
	projectID, err := h.export.ImportProject(data)
	if err != nil {
		h.response.InternalError(c, "导入失败", err.Error())
		return
	}
	project, err := h.projects.GetProject(projectID)
	if err != nil {
		h.response.InternalError(c, "导入失败", err.Error())
		return
	}
	h.response.Created(c, project, "项目导入成功")
}
