package panel

import "sync"

// Storage 面板状态的持久化槽位（键值语义，整体覆盖写）
type Storage interface {
	// Load 读取槽位，found=false 表示从未写入
	Load(key string) (data []byte, found bool, err error)
	Save(key string, data []byte) error
}

// MemoryStorage 进程内存槽位，Redis 不可用时的兜底实现
type MemoryStorage struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryStorage 创建内存槽位
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{slots: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *MemoryStorage) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.slots[key] = buf
	return nil
}
