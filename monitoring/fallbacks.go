package monitoring

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FallbackEntry 一个被替换为插补类别的未知取值
type FallbackEntry struct {
	Field    string    `json:"field"`
	Value    string    `json:"value"`
	Count    int64     `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// FallbackLog 记录最近出现的未知类别取值，容量有限，最久未出现的先被淘汰
type FallbackLog struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *FallbackEntry]
	metrics *MetricsCollector
}

// NewFallbackLog 创建未知类别日志；metrics 可以为 nil
func NewFallbackLog(size int, metrics *MetricsCollector) (*FallbackLog, error) {
	cache, err := lru.New[string, *FallbackEntry](size)
	if err != nil {
		return nil, fmt.Errorf("fallback log: %w", err)
	}
	return &FallbackLog{cache: cache, metrics: metrics}, nil
}

// ObserveFallback 实现 ml.FallbackObserver
func (f *FallbackLog) ObserveFallback(field string, value any) {
	raw := fmt.Sprint(value)
	key := field + "\x00" + raw

	f.mu.Lock()
	entry, ok := f.cache.Get(key)
	if !ok {
		entry = &FallbackEntry{Field: field, Value: raw}
		f.cache.Add(key, entry)
	}
	entry.Count++
	entry.LastSeen = time.Now()
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.IncrCounter(MetricFallbacks, 1, map[string]string{"field": field})
	}
}

// Entries 返回当前记录，最近出现的在前
func (f *FallbackLog) Entries() []FallbackEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := f.cache.Keys()
	out := make([]FallbackEntry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if entry, ok := f.cache.Peek(keys[i]); ok {
			out = append(out, *entry)
		}
	}
	return out
}

func (f *FallbackLog) Len() int {
	return f.cache.Len()
}
