// internal/storage/driver.go
package storage

import "sync"

// Namespace 存储命名空间
type Namespace string

const (
	NamespaceProjects    Namespace = "projects"
	NamespaceDocuments   Namespace = "documents"
	NamespaceStoryBible  Namespace = "storyBible"
	NamespaceHistory     Namespace = "history"
	NamespaceSettings    Namespace = "settings"
	NamespaceStoryState  Namespace = "storyState"
	NamespaceStoryEngine Namespace = "storyEngine"
)

// Driver 底层键值驱动，值为序列化后的 JSON 字节
type Driver interface {
	GetItem(key string) ([]byte, bool, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
	Name() string
}

// MemoryDriver 内存驱动，文件驱动不可用时的兜底
type MemoryDriver struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryDriver 创建内存驱动
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{items: make(map[string][]byte)}
}

func (d *MemoryDriver) GetItem(key string) ([]byte, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	value, ok := d.items[key]
	if !ok {
		return nil, false, nil
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, true, nil
}

func (d *MemoryDriver) SetItem(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	d.items[key] = copied
	return nil
}

func (d *MemoryDriver) RemoveItem(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.items, key)
	return nil
}

func (d *MemoryDriver) Name() string {
	return "memory"
}
