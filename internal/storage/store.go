// internal/storage/store.go
package storage

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Store 命名空间化的 JSON 对象存储。
// 启动时探测一次可用后端（文件 → 内存），之后调用方不感知后端差异。
type Store struct {
	driver Driver
	logger *zap.Logger
}

// NewStore 解析可用驱动并返回存储服务。
// 文件驱动以一次写入+删除探测可用性，失败时降级为内存驱动。
func NewStore(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	if fileDriver, err := NewFileDriver(dataDir); err == nil {
		if pingErr := pingDriver(fileDriver); pingErr == nil {
			return &Store{driver: fileDriver, logger: logger}
		} else {
			logger.Warn("文件存储不可用，降级为内存存储", zap.Error(pingErr))
		}
	} else {
		logger.Warn("文件存储初始化失败，降级为内存存储", zap.Error(err))
	}

	return &Store{driver: NewMemoryDriver(), logger: logger}
}

// NewStoreWithDriver 用指定驱动构建存储，测试用
func NewStoreWithDriver(driver Driver, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{driver: driver, logger: logger}
}

func pingDriver(driver Driver) error {
	const pingKey = "__moyu__ping__:probe"
	if err := driver.SetItem(pingKey, []byte(`1`)); err != nil {
		return err
	}
	return driver.RemoveItem(pingKey)
}

// Backend 返回实际生效的后端名称，仅用于诊断展示
func (s *Store) Backend() string {
	return s.driver.Name()
}

// Ready 就绪屏障。驱动在构造时已解析完成，这里仅保留契约。
func (s *Store) Ready() error {
	return nil
}

func buildKey(namespace Namespace, id string) string {
	return fmt.Sprintf("%s:%s", namespace, id)
}

// GetObject 读取并反序列化对象；键不存在时返回 found=false 而非错误
func (s *Store) GetObject(namespace Namespace, id string, v interface{}) (bool, error) {
	raw, found, err := s.driver.GetItem(buildKey(namespace, id))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("解析存储对象失败 %s/%s: %w", namespace, id, err)
	}
	return true, nil
}

// SetObject 序列化并写入对象
func (s *Store) SetObject(namespace Namespace, id string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化存储对象失败 %s/%s: %w", namespace, id, err)
	}
	return s.driver.SetItem(buildKey(namespace, id), raw)
}

// Remove 删除对象
func (s *Store) Remove(namespace Namespace, id string) error {
	return s.driver.RemoveItem(buildKey(namespace, id))
}
