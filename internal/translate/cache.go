package translate

import "sync"

// Cache 翻译缓存。键是修剪后的原文。实现必须并发安全：
// 任何工作协程都可能读写。Get 未命中后两个协程同时发起同一文本的
// 网络请求是被容忍的性能损耗，不是正确性问题——两边最终写入同一译文。
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryCache 内存缓存实现
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]string)}
}

// Get 获取缓存
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Set 设置缓存，后写者胜出
func (c *MemoryCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Delete 删除缓存条目
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len 返回条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
