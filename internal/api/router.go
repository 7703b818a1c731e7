// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/config"
	"github.com/moyu-ai/moyu-writer/internal/di"
	"github.com/moyu-ai/moyu-writer/internal/services"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// SetupRouter 从容器取出服务并装配全部路由
func SetupRouter(container *di.Container) (*gin.Engine, error) {
	cfg, ok := container.Get(di.ServiceConfig).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("配置未正确初始化")
	}
	logger, ok := container.Get(di.ServiceLogger).(*zap.Logger)
	if !ok {
		return nil, fmt.Errorf("日志未正确初始化")
	}
	store, ok := container.Get(di.ServiceStore).(*storage.Store)
	if !ok {
		return nil, fmt.Errorf("存储未正确初始化")
	}
	projectService, ok := container.Get(di.ServiceProject).(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("项目服务未正确初始化")
	}
	bibleService, ok := container.Get(di.ServiceStoryBible).(*services.StoryBibleService)
	if !ok {
		return nil, fmt.Errorf("故事圣经服务未正确初始化")
	}
	historyService, ok := container.Get(di.ServiceHistory).(*services.HistoryService)
	if !ok {
		return nil, fmt.Errorf("历史服务未正确初始化")
	}
	settingsService, ok := container.Get(di.ServiceSettings).(*services.SettingsService)
	if !ok {
		return nil, fmt.Errorf("设置服务未正确初始化")
	}
	aiService, ok := container.Get(di.ServiceAI).(*services.AIService)
	if !ok {
		return nil, fmt.Errorf("AI服务未正确初始化")
	}
	stateService, ok := container.Get(di.ServiceStoryState).(*services.StoryStateService)
	if !ok {
		return nil, fmt.Errorf("剧情状态服务未正确初始化")
	}
	engineService, ok := container.Get(di.ServiceStoryEngine).(*services.StoryEngineService)
	if !ok {
		return nil, fmt.Errorf("章节规划服务未正确初始化")
	}
	exportService, ok := container.Get(di.ServiceExport).(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}
	hub, ok := container.Get(di.ServiceEventHub).(*EventHub)
	if !ok {
		return nil, fmt.Errorf("事件中心未正确初始化")
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := NewHandler(store, projectService, bibleService, historyService,
		settingsService, aiService, stateService, engineService, exportService, hub, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(logger))
	router.Use(CORSMiddleware(cfg.AllowOrigins))

	api := router.Group("/api")
	{
		api.GET("/health", handler.HealthCheck)

		projects := api.Group("/projects")
		{
			projects.GET("", handler.ListProjects)
			projects.POST("", handler.CreateProject)
			projects.POST("/import", handler.ImportProject)
			projects.PUT("/:project_id", handler.RenameProject)
			projects.DELETE("/:project_id", handler.DeleteProject)
			projects.GET("/:project_id/export", handler.ExportProject)

			documents := projects.Group("/:project_id/documents")
			{
				documents.GET("", handler.ListDocuments)
				documents.POST("", handler.CreateDocument)
				documents.PUT("/:document_id", handler.RenameDocument)
				documents.PUT("/:document_id/content", handler.UpdateDocumentContent)
				documents.POST("/delete", handler.DeleteDocuments)
				documents.POST("/reorder", handler.ReorderDocument)
				documents.POST("/move", handler.MoveDocuments)
			}

			bible := projects.Group("/:project_id/story-bible")
			{
				bible.GET("", handler.GetStoryBible)
				bible.PUT("/braindump", handler.UpdateBraindump)
				bible.PUT("/synopsis", handler.UpdateSynopsis)
				bible.PUT("/characters", handler.UpsertCharacter)
				bible.PUT("/worldbuilding", handler.UpsertWorldEntry)
				bible.PUT("/outline", handler.ReplaceOutline)
				bible.PUT("/scenes", handler.UpsertScene)
				bible.PUT("/style", handler.UpdateStyle)
			}

			projects.POST("/:project_id/generate", handler.Generate)

			history := projects.Group("/:project_id/history")
			{
				history.GET("", handler.ListHistory)
				history.POST("/:record_id/star", handler.ToggleHistoryStar)
				history.DELETE("", handler.ClearHistory)
			}

			state := projects.Group("/:project_id/story-state")
			{
				state.GET("", handler.GetStoryState)
				state.POST("/refresh", handler.RefreshStoryState)
				state.PATCH("/overrides", handler.UpdateStoryStateOverrides)
				state.DELETE("/overrides", handler.ClearStoryStateOverrides)
			}

			chapters := projects.Group("/:project_id/chapters")
			{
				chapters.GET("", handler.ListChapters)
				chapters.GET("/plans", handler.ListChapterPlans)
				chapters.POST("/:chapter_id/plan", handler.GenerateChapterPlan)
			}
		}

		settings := api.Group("/settings")
		{
			settings.GET("", handler.GetSettings)
			settings.PUT("", handler.UpdateSettings)
			settings.PUT("/keys", handler.SetAPIKey)
		}
	}

	router.GET("/ws/projects/:project_id", hub.HandleWebSocket)

	return router, nil
}
