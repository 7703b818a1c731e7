// internal/di/container.go
package di

import (
	"sync"
)

// 容器中使用的服务注册名
const (
	ServiceConfig      = "config"
	ServiceLogger      = "logger"
	ServiceStore       = "store"
	ServiceProject     = "project"
	ServiceStoryBible  = "storyBible"
	ServiceHistory     = "history"
	ServiceSettings    = "settings"
	ServiceAI          = "ai"
	ServiceStoryState  = "storyState"
	ServiceStoryEngine = "storyEngine"
	ServiceExport      = "export"
	ServiceEventHub    = "eventHub"
)

// Container 按名字保存服务实例的简单注入容器
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

var (
	globalContainer *Container
	once            sync.Once
)

// NewContainer 创建一个空容器
func NewContainer() *Container {
	return &Container{
		services: make(map[string]interface{}),
	}
}

// GetContainer 获取全局容器实例
func GetContainer() *Container {
	once.Do(func() {
		globalContainer = NewContainer()
	})
	return globalContainer
}

// Register 注册一个服务实例，同名覆盖
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// Get 取出服务实例，未注册时返回 nil
func (c *Container) Get(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[name]
}

// Has 查询服务是否已注册
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	return exists
}

// Remove 移除一个服务
func (c *Container) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.services, name)
}

// Clear 清空容器，测试用
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]interface{})
}
