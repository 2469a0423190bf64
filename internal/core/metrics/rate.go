package metrics

import (
	"sync"
	"time"
)

// ============================================================================
//                              RateMeter - 速率计算器
// ============================================================================

// rateWindowSeconds 滑动窗口长度（秒）
const rateWindowSeconds = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 按 1 秒一桶统计最近一分钟的字节量，Rate 返回窗口内平均速率。
type RateMeter struct {
	mu       sync.RWMutex
	buckets  [rateWindowSeconds]int64
	lastIdx  int
	lastTime time.Time
}

// NewRateMeter 创建速率计算器
func NewRateMeter() *RateMeter {
	return &RateMeter{
		lastTime: time.Now(),
	}
}

// Add 添加字节数到当前桶
func (r *RateMeter) Add(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := int(now.Sub(r.lastTime).Seconds())
	if elapsed > 0 {
		if elapsed >= rateWindowSeconds {
			r.buckets = [rateWindowSeconds]int64{}
			r.lastIdx = 0
		} else {
			// 推进并清空跨过的桶
			for i := 0; i < elapsed; i++ {
				r.lastIdx = (r.lastIdx + 1) % rateWindowSeconds
				r.buckets[r.lastIdx] = 0
			}
		}
		r.lastTime = now
	}

	r.buckets[r.lastIdx] += size
}

// Rate 返回窗口平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, v := range r.buckets {
		total += v
	}
	return float64(total) / rateWindowSeconds
}

// LastUpdate 返回最后写入时间
func (r *RateMeter) LastUpdate() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastTime
}
