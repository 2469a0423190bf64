// Package metrics 定义会话级运行指标
//
// 指标对象独立于注册表创建，未注册时各计数操作无副作用成本，
// 因此实体层可以无条件持有。每个上下文使用自己的注册表，同进程
// 多上下文不会产生重名冲突。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Metrics 会话级指标集合
type Metrics struct {
	// MessagesPublished 本会话发布的样本总数
	MessagesPublished prometheus.Counter
	// MessagesReceived 订阅端点收到并入队的样本总数
	MessagesReceived prometheus.Counter
	// MessagesDropped 队列满被挤掉的样本总数
	MessagesDropped prometheus.Counter
	// MessagesLost 依据序列号缺口推断的丢失样本总数
	MessagesLost prometheus.Counter
	// RequestsSent 客户端发出的请求总数
	RequestsSent prometheus.Counter
	// RequestsReceived 服务端收到的请求总数
	RequestsReceived prometheus.Counter

	// Traffic 按主题细分的负载流量统计
	Traffic *TrafficCounter
}

// New 创建一组未注册的指标
func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "robomesh",
			Subsystem: "session",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		MessagesPublished: counter("messages_published_total", "本会话发布的样本总数"),
		MessagesReceived:  counter("messages_received_total", "订阅端点入队的样本总数"),
		MessagesDropped:   counter("messages_dropped_total", "因队列满被挤掉的样本总数"),
		MessagesLost:      counter("messages_lost_total", "依据序列号缺口推断的丢失样本总数"),
		RequestsSent:      counter("requests_sent_total", "客户端发出的请求总数"),
		RequestsReceived:  counter("requests_received_total", "服务端收到的请求总数"),
		Traffic:           NewTrafficCounter(),
	}
}

// Register 将全部指标注册到给定注册表
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return multierr.Combine(
		reg.Register(m.MessagesPublished),
		reg.Register(m.MessagesReceived),
		reg.Register(m.MessagesDropped),
		reg.Register(m.MessagesLost),
		reg.Register(m.RequestsSent),
		reg.Register(m.RequestsReceived),
	)
}
