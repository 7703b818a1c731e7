// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moyu-ai/moyu-writer/internal/config"
	"github.com/moyu-ai/moyu-writer/internal/di"
	"github.com/moyu-ai/moyu-writer/internal/models"
	"github.com/moyu-ai/moyu-writer/internal/services"
	"github.com/moyu-ai/moyu-writer/internal/storage"
)

// envelope 测试端解码用的响应信封
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *APIError       `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Port:         "8080",
		DataDir:      t.TempDir(),
		AllowOrigins: []string{"*"},
	}
	logger := zap.NewNop()
	store := storage.NewStoreWithDriver(storage.NewMemoryDriver(), logger)

	projects := services.NewProjectService(store, logger)
	bible := services.NewStoryBibleService(store, logger)
	history := services.NewHistoryService(store, logger)
	settings := services.NewSettingsService(store, models.APIKeys{}, logger)
	ai := services.NewAIService(history, settings, logger)
	state := services.NewStoryStateService(store, ai, bible, history, logger)
	engine := services.NewStoryEngineService(store, ai, projects, history, state, logger)
	export := services.NewExportService(store, projects, bible, history, state, engine, logger)

	container := di.NewContainer()
	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceStore, store)
	container.Register(di.ServiceProject, projects)
	container.Register(di.ServiceStoryBible, bible)
	container.Register(di.ServiceHistory, history)
	container.Register(di.ServiceSettings, settings)
	container.Register(di.ServiceAI, ai)
	container.Register(di.ServiceStoryState, state)
	container.Register(di.ServiceStoryEngine, engine)
	container.Register(di.ServiceExport, export)
	container.Register(di.ServiceEventHub, NewEventHub(logger))

	router, err := SetupRouter(container)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &env))
	return env
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	env := decodeEnvelope(t, recorder)
	assert.True(t, env.Success)

	var data struct {
		Status    string   `json:"status"`
		Backend   string   `json:"backend"`
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.Equal(t, "memory", data.Backend)
	assert.Contains(t, data.Providers, "deepseek")
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var seeded []models.Project
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &seeded))
	assert.Len(t, seeded, 2)

	recorder = doJSON(t, router, http.MethodPost, "/api/projects", gin.H{"title": "接口新项目"})
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created models.Project
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &created))
	assert.Equal(t, "接口新项目", created.Title)

	recorder = doJSON(t, router, http.MethodPut, "/api/projects/"+created.ID, gin.H{"title": "改名"})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, http.MethodDelete, "/api/projects/"+created.ID, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, http.MethodDelete, "/api/projects/"+created.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestDocumentEndpoints(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/documents",
		gin.H{"title": "新篇", "type": "chapter"})
	require.Equal(t, http.StatusCreated, recorder.Code)
	var doc models.Document
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &doc))
	assert.Equal(t, "新篇", doc.Title)

	recorder = doJSON(t, router, http.MethodPut,
		"/api/projects/project_demo_1/documents/"+doc.ID+"/content",
		gin.H{"content": "八个字的测试正文"})
	require.Equal(t, http.StatusOK, recorder.Code)
	var updated models.Document
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &updated))
	assert.Equal(t, 8, updated.WordCount)

	// 非法排序位置直接拒绝
	recorder = doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/documents/reorder",
		gin.H{"documentId": doc.ID, "targetId": "doc_demo_1", "position": "middle"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/documents/delete",
		gin.H{"ids": []string{doc.ID}})
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestGenerateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/generate",
		gin.H{"tool": "write", "content": "主角抬起头。"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var results []services.GenerateResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &results))
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Contains(t, result.Output, "模拟输出")
	}

	// 章节规划不走编辑器工具入口
	recorder = doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/generate",
		gin.H{"tool": "chapter-plan"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	env := decodeEnvelope(t, recorder)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestStoryStateRefreshWithoutKeyOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	// 未配置密钥时 AI 刷新退回本地推导，冷却不生效
	recorder := doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/story-state/refresh",
		gin.H{"useAI": true, "documentContent": "夜色覆盖整座城市。"})
	require.Equal(t, http.StatusOK, recorder.Code)
	var view services.StateView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &view))
	assert.Equal(t, view.Computed, view.State)
	assert.Equal(t, int64(0), view.CooldownMs)

	// 连续请求不会撞上冷却窗口
	recorder = doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/story-state/refresh",
		gin.H{"useAI": true})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/story-state/refresh",
		gin.H{"useAI": false})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestStoryStateOverridesEndpoints(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodPatch, "/api/projects/project_demo_1/story-state/overrides",
		gin.H{"synopsis": "手动概要"})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, http.MethodGet, "/api/projects/project_demo_1/story-state", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var view services.StateView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &view))
	assert.Equal(t, "手动概要", view.State.Synopsis)

	recorder = doJSON(t, router, http.MethodDelete, "/api/projects/project_demo_1/story-state/overrides", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestChapterPlanEndpoints(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodGet, "/api/projects/project_demo_1/chapters", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var chapters []models.ChapterOverview
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &chapters))
	require.NotEmpty(t, chapters)

	recorder = doJSON(t, router, http.MethodPost,
		"/api/projects/project_demo_1/chapters/"+chapters[0].ID+"/plan", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var plan models.ChapterPlan
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &plan))
	assert.NotEmpty(t, plan.Summary)

	recorder = doJSON(t, router, http.MethodPost,
		"/api/projects/project_demo_1/chapters/missing/plan", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestSettingsEndpointsMaskKeys(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodPut, "/api/settings/keys",
		gin.H{"provider": "gemini", "key": "verylongsecretkey123"})
	require.Equal(t, http.StatusOK, recorder.Code)
	var settings models.AiSettings
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &settings))
	assert.Equal(t, models.ProviderGemini, settings.Provider)
	assert.Equal(t, "very****", settings.Keys.Gemini)

	recorder = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &settings))
	assert.Equal(t, "very****", settings.Keys.Gemini)
	assert.NotContains(t, recorder.Body.String(), "verylongsecretkey123")

	recorder = doJSON(t, router, http.MethodPut, "/api/settings", gin.H{"suggestionCount": 3})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &settings))
	assert.Equal(t, 3, settings.SuggestionCount)
}

func TestExportImportOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodGet, "/api/projects/project_demo_1/export", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "attachment")

	exported := recorder.Body.Bytes()
	var data models.ExportedProject
	require.NoError(t, json.Unmarshal(exported, &data))
	assert.Equal(t, "1.0.0", data.Version)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/import", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/json")
	importRecorder := httptest.NewRecorder()
	router.ServeHTTP(importRecorder, req)
	require.Equal(t, http.StatusCreated, importRecorder.Code)

	var imported models.Project
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, importRecorder).Data, &imported))
	assert.NotEqual(t, "project_demo_1", imported.ID)
	assert.Equal(t, data.Project.Title, imported.Title)

	recorder = doJSON(t, router, http.MethodPost, "/api/projects/import", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	badReq := httptest.NewRequest(http.MethodPost, "/api/projects/import",
		strings.NewReader(`{"version":"1.0.0"}`))
	badRecorder := httptest.NewRecorder()
	router.ServeHTTP(badRecorder, badReq)
	assert.Equal(t, http.StatusBadRequest, badRecorder.Code)
}

func TestListHistoryEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := doJSON(t, router, http.MethodPost, "/api/projects/project_demo_1/generate",
		gin.H{"tool": "brainstorm", "content": "点子"})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, http.MethodGet, "/api/projects/project_demo_1/history?limit=1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var items []models.GenerationRecord
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &items))
	assert.Len(t, items, 1)

	recorder = doJSON(t, router, http.MethodGet, "/api/projects/project_demo_1/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, router, http.MethodDelete, "/api/projects/project_demo_1/history", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}
