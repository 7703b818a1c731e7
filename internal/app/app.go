// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/api"
	"github.com/moyu-ai/moyu-writer/internal/config"
	"github.com/moyu-ai/moyu-writer/internal/di"
	"github.com/moyu-ai/moyu-writer/internal/services"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// App 应用实例，负责装配服务与 HTTP 生命周期
type App struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	stopChan chan os.Signal
}

var (
	instance *App
	once     sync.Once
)

// GetApp 获取应用单例
func GetApp() *App {
	once.Do(func() {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	})
	return instance
}

// GetDIContainer 获取全局依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// GetConfig 当前应用配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// IsDebugMode 是否处于调试模式
func IsDebugMode() bool {
	if instance == nil || instance.config == nil {
		return false
	}
	return instance.config.DebugMode
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Initialize 加载配置、初始化日志与服务、装配路由
func Initialize() error {
	app := GetApp()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	app.config = cfg

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	app.logger = logger

	if err := InitServices(cfg, logger); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter(di.GetContainer())
	if err != nil {
		return fmt.Errorf("装配路由失败: %w", err)
	}

	app.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return nil
}

// InitServices 按依赖顺序构建服务并注册进容器
func InitServices(cfg *config.Config, logger *zap.Logger) error {
	container := di.GetContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)

	store := storage.NewStore(cfg.DataDir, logger)
	if err := store.Ready(); err != nil {
		return fmt.Errorf("存储初始化失败: %w", err)
	}
	container.Register(di.ServiceStore, store)
	logger.Info("存储已就绪", zap.String("backend", store.Backend()))

	projectService := services.NewProjectService(store, logger)
	container.Register(di.ServiceProject, projectService)

	bibleService := services.NewStoryBibleService(store, logger)
	container.Register(di.ServiceStoryBible, bibleService)

	historyService := services.NewHistoryService(store, logger)
	container.Register(di.ServiceHistory, historyService)

	settingsService := services.NewSettingsService(store, cfg.DefaultKeys(), logger)
	container.Register(di.ServiceSettings, settingsService)

	aiService := services.NewAIService(historyService, settingsService, logger)
	container.Register(di.ServiceAI, aiService)

	stateService := services.NewStoryStateService(store, aiService, bibleService, historyService, logger)
	container.Register(di.ServiceStoryState, stateService)

	engineService := services.NewStoryEngineService(store, aiService, projectService, historyService, stateService, logger)
	container.Register(di.ServiceStoryEngine, engineService)

	exportService := services.NewExportService(store, projectService, bibleService, historyService, stateService, engineService, logger)
	container.Register(di.ServiceExport, exportService)

	container.Register(di.ServiceEventHub, api.NewEventHub(logger))
	return nil
}

// Run 启动 HTTP 服务并阻塞到收到退出信号
func Run() error {
	app := GetApp()
	if app.server == nil {
		return fmt.Errorf("应用尚未初始化")
	}

	errChan := make(chan error, 1)
	go func() {
		app.logger.Info("服务启动", zap.String("addr", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("服务异常退出: %w", err)
	case sig := <-app.stopChan:
		app.logger.Info("收到退出信号，开始关闭", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭服务失败: %w", err)
	}

	app.logger.Info("服务已退出")
	app.cleanup()
	return nil
}

func (a *App) cleanup() {
	if a.logger != nil {
		a.logger.Sync()
	}
	di.GetContainer().Clear()
}
