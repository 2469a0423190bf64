package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTrafficTotals 会话级累计与主题细分
func TestTrafficTotals(t *testing.T) {
	tc := NewTrafficCounter()

	tc.LogPublished("/chatter", 100)
	tc.LogPublished("/chatter", 50)
	tc.LogPublished("/scan", 200)
	tc.LogReceived("/chatter", 30)

	total := tc.TotalStats()
	assert.Equal(t, int64(350), total.TotalOut)
	assert.Equal(t, int64(30), total.TotalIn)

	chatter := tc.TopicStats("/chatter")
	assert.Equal(t, int64(150), chatter.TotalOut)
	assert.Equal(t, int64(30), chatter.TotalIn)

	scan := tc.TopicStats("/scan")
	assert.Equal(t, int64(200), scan.TotalOut)
	assert.Equal(t, int64(0), scan.TotalIn)

	// 未见过的主题
	assert.Equal(t, Stats{}, tc.TopicStats("/nothing"))
}

// TestTrafficByTopic 全量快照包含所有出现过的主题
func TestTrafficByTopic(t *testing.T) {
	tc := NewTrafficCounter()
	tc.LogPublished("/a", 1)
	tc.LogReceived("/b", 2)

	byTopic := tc.ByTopic()
	require.Len(t, byTopic, 2)
	assert.Equal(t, int64(1), byTopic["/a"].TotalOut)
	assert.Equal(t, int64(2), byTopic["/b"].TotalIn)
}

// TestTrafficConcurrent 并发记录不丢计数
func TestTrafficConcurrent(t *testing.T) {
	tc := NewTrafficCounter()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tc.LogPublished("/shared", 1)
				tc.LogReceived("/shared", 1)
			}
		}()
	}
	wg.Wait()

	stats := tc.TopicStats("/shared")
	assert.Equal(t, int64(8000), stats.TotalOut)
	assert.Equal(t, int64(8000), stats.TotalIn)
}

// TestTrafficTrimIdle 清理不活跃主题，保留活跃主题
func TestTrafficTrimIdle(t *testing.T) {
	tc := NewTrafficCounter()
	tc.LogPublished("/old", 10)
	tc.LogPublished("/fresh", 10)

	// 只有未来的截止时间会清掉两者；先验证不误删
	tc.TrimIdle(time.Now().Add(-time.Minute))
	assert.Len(t, tc.ByTopic(), 2)

	tc.TrimIdle(time.Now().Add(time.Minute))
	assert.Len(t, tc.ByTopic(), 0)

	// 清理后总量不受影响
	assert.Equal(t, int64(20), tc.TotalStats().TotalOut)
}

// TestRateMeterWindow 速率为窗口平均值
func TestRateMeterWindow(t *testing.T) {
	r := NewRateMeter()
	r.Add(rateWindowSeconds * 100)
	assert.InDelta(t, 100.0, r.Rate(), 0.01)
	assert.WithinDuration(t, time.Now(), r.LastUpdate(), time.Second)
}

// TestMetricsRegister 全部指标可注册且无重名
func TestMetricsRegister(t *testing.T) {
	m := New()
	require.NotNil(t, m.Traffic)

	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	// 同一注册表二次注册报冲突
	assert.Error(t, m.Register(reg))

	// 不同注册表互不影响
	assert.NoError(t, m.Register(prometheus.NewRegistry()))
}
