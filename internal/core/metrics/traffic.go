package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats 流量统计快照
//
// TotalIn/TotalOut 为累计接收/发送字节数，
// RateIn/RateOut 为最近一分钟的平均速率（字节/秒）。
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64
}

// topicTraffic 单主题的计数器与速率
type topicTraffic struct {
	in      atomic.Int64
	out     atomic.Int64
	inRate  *RateMeter
	outRate *RateMeter
}

func newTopicTraffic() *topicTraffic {
	return &topicTraffic{
		inRate:  NewRateMeter(),
		outRate: NewRateMeter(),
	}
}

func (t *topicTraffic) stats() Stats {
	return Stats{
		TotalIn:  t.in.Load(),
		TotalOut: t.out.Load(),
		RateIn:   t.inRate.Rate(),
		RateOut:  t.outRate.Rate(),
	}
}

// lastActive 主题最后一次流量的时间
func (t *topicTraffic) lastActive() time.Time {
	in, out := t.inRate.LastUpdate(), t.outRate.LastUpdate()
	if out.After(in) {
		return out
	}
	return in
}

// TrafficCounter 主题流量计数器
//
// 跟踪本会话发布与接收的负载字节数，按主题细分。
// 计数走原子操作，map 仅在主题首次出现时加写锁。
type TrafficCounter struct {
	totalIn      atomic.Int64
	totalOut     atomic.Int64
	totalInRate  *RateMeter
	totalOutRate *RateMeter

	mu     sync.RWMutex
	topics map[string]*topicTraffic
}

// NewTrafficCounter 创建流量计数器
func NewTrafficCounter() *TrafficCounter {
	return &TrafficCounter{
		totalInRate:  NewRateMeter(),
		totalOutRate: NewRateMeter(),
		topics:       make(map[string]*topicTraffic),
	}
}

// topic 返回主题计数器，首次出现时创建
func (tc *TrafficCounter) topic(name string) *topicTraffic {
	tc.mu.RLock()
	t := tc.topics[name]
	tc.mu.RUnlock()
	if t != nil {
		return t
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if t = tc.topics[name]; t == nil {
		t = newTopicTraffic()
		tc.topics[name] = t
	}
	return t
}

// LogPublished 记录一次发布的负载字节数
func (tc *TrafficCounter) LogPublished(topic string, size int64) {
	tc.totalOut.Add(size)
	tc.totalOutRate.Add(size)

	t := tc.topic(topic)
	t.out.Add(size)
	t.outRate.Add(size)
}

// LogReceived 记录一次接收的负载字节数
func (tc *TrafficCounter) LogReceived(topic string, size int64) {
	tc.totalIn.Add(size)
	tc.totalInRate.Add(size)

	t := tc.topic(topic)
	t.in.Add(size)
	t.inRate.Add(size)
}

// TotalStats 返回会话级流量统计
func (tc *TrafficCounter) TotalStats() Stats {
	return Stats{
		TotalIn:  tc.totalIn.Load(),
		TotalOut: tc.totalOut.Load(),
		RateIn:   tc.totalInRate.Rate(),
		RateOut:  tc.totalOutRate.Rate(),
	}
}

// TopicStats 返回单主题流量统计
//
// 未见过的主题返回零值快照。
func (tc *TrafficCounter) TopicStats(topic string) Stats {
	tc.mu.RLock()
	t := tc.topics[topic]
	tc.mu.RUnlock()
	if t == nil {
		return Stats{}
	}
	return t.stats()
}

// ByTopic 返回全部主题的流量统计
func (tc *TrafficCounter) ByTopic() map[string]Stats {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	result := make(map[string]Stats, len(tc.topics))
	for name, t := range tc.topics {
		result[name] = t.stats()
	}
	return result
}

// TrimIdle 清理 since 之前无流量的主题
func (tc *TrafficCounter) TrimIdle(since time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for name, t := range tc.topics {
		if t.lastActive().Before(since) {
			delete(tc.topics, name)
		}
	}
}
