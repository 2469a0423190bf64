package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// brokerMetrics 路由核心的运行指标
//
// 指标随 Broker 创建，调用 RegisterMetrics 后才对外暴露，
// 未注册时只做无害的本地计数。
type brokerMetrics struct {
	sessions       prometheus.Gauge
	subscriptions  prometheus.Gauge
	tokens         prometheus.Gauge
	samplesRelayed prometheus.Counter
}

func newBrokerMetrics() *brokerMetrics {
	return &brokerMetrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robomesh",
			Subsystem: "router",
			Name:      "sessions",
			Help:      "当前接入的会话连接数",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robomesh",
			Subsystem: "router",
			Name:      "subscriptions",
			Help:      "当前登记的订阅数（含存活订阅）",
		}),
		tokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "robomesh",
			Subsystem: "router",
			Name:      "liveliness_tokens",
			Help:      "当前声明的存活令牌数",
		}),
		samplesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "robomesh",
			Subsystem: "router",
			Name:      "samples_relayed_total",
			Help:      "经路由转发的数据样本总数",
		}),
	}
}

// RegisterMetrics 将路由指标注册到给定注册表
func (b *Broker) RegisterMetrics(reg prometheus.Registerer) error {
	return multierr.Combine(
		reg.Register(b.metrics.sessions),
		reg.Register(b.metrics.subscriptions),
		reg.Register(b.metrics.tokens),
		reg.Register(b.metrics.samplesRelayed),
	)
}
