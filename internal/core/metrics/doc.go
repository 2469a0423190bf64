// Package metrics 提供会话运行指标收集
//
// metrics 模块提供两套互补的指标：
//   - Prometheus 计数器（发布/接收/丢弃/丢失/请求），经 Register 挂到上层注册表
//   - 主题流量统计（TrafficCounter），跟踪负载字节数与窗口速率
//
// # 快速开始
//
//	m := metrics.New()
//
//	// 计数事件
//	m.MessagesPublished.Inc()
//	m.Traffic.LogPublished("/chatter", 1024)
//
//	// 暴露到 /metrics
//	reg := prometheus.NewRegistry()
//	if err := m.Register(reg); err != nil { ... }
//
//	// 查询主题流量
//	stats := m.Traffic.TopicStats("/chatter")
//	fmt.Printf("Out: %d (%.1f B/s)\n", stats.TotalOut, stats.RateOut)
//
// # 分层统计
//
// TrafficCounter 支持两层流量统计：
//
//	// 1. 会话级（所有流量）
//	totalStats := m.Traffic.TotalStats()
//
//	// 2. 按主题统计
//	topicStats := m.Traffic.TopicStats("/chatter")
//	allTopics := m.Traffic.ByTopic()
//
// # 内存管理
//
// 定期清理空闲统计，防止主题 map 无界增长：
//
//	// 清理 1 小时前无流量的主题
//	m.Traffic.TrimIdle(time.Now().Add(-1 * time.Hour))
//
// # 并发安全
//
// 所有方法都是并发安全的：计数走原子操作，
// 主题 map 仅在首次出现时加写锁。
package metrics
