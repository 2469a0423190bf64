package metrics

import (
	"go.uber.org/fx"

	"github.com/prometheus/client_golang/prometheus"
)

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Metrics  *Metrics
	Registry *prometheus.Registry
}

// ProvideMetrics 提供指标集合与其注册表
//
// 每个 fx 应用使用独立注册表，同进程多会话不会重名冲突。
func ProvideMetrics() (ModuleOutput, error) {
	m := New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Metrics: m, Registry: reg}, nil
}

// Module 返回指标 fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
	)
}
