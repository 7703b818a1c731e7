// internal/storage/file_driver.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileDriver 把每个键存成 baseDir 下的一个 JSON 文件
type FileDriver struct {
	baseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map
}

// NewFileDriver 创建文件驱动
func NewFileDriver(baseDir string) (*FileDriver, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FileDriver{baseDir: baseDir}, nil
}

// 获取文件锁
func (d *FileDriver) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := d.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// keyPath 把 "namespace:id" 映射为 baseDir/namespace/id.json
func (d *FileDriver) keyPath(key string) string {
	namespace, id, found := strings.Cut(key, ":")
	if !found {
		namespace, id = "misc", key
	}
	return filepath.Join(d.baseDir, sanitizeSegment(namespace), sanitizeSegment(id)+".json")
}

// sanitizeSegment 防止键值逃出存储目录
func sanitizeSegment(segment string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	cleaned := replacer.Replace(segment)
	if cleaned == "" {
		return "_"
	}
	return cleaned
}

func (d *FileDriver) GetItem(key string) ([]byte, bool, error) {
	fullPath := d.keyPath(key)

	lock := d.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("读取文件失败: %w", err)
	}
	return content, true, nil
}

func (d *FileDriver) SetItem(key string, value []byte) error {
	fullPath := d.keyPath(key)

	lock := d.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	// 原子性文件写入
	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, value, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}

func (d *FileDriver) RemoveItem(key string) error {
	fullPath := d.keyPath(key)

	lock := d.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

func (d *FileDriver) Name() string {
	return "file"
}
