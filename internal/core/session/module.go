package session

import (
	"context"

	"go.uber.org/fx"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	"github.com/robomesh/go-robomesh/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Transport interfaces.Transport
	Options   *config.Options
	Config    *config.SessionConfig
	Metrics   *metrics.Metrics `optional:"true"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideSession 打开会话并挂接生命周期
func ProvideSession(lc fx.Lifecycle, in ModuleInput) (*Data, error) {
	domain, err := in.Options.ActualDomainID()
	if err != nil {
		return nil, err
	}

	attempts := in.Options.Discovery.RouterCheckAttempts
	if attempts == 0 {
		attempts = in.Config.Router.CheckAttempts
	}

	d, err := New(context.Background(), in.Transport, Params{
		DomainID:      domain,
		Enclave:       in.Options.Enclave,
		CheckAttempts: attempts,
		CheckPeriod:   in.Config.Router.CheckPeriod.Std(),
		Metrics:       in.Metrics,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return d.Shutdown()
		},
	})
	return d, nil
}

// Module 返回会话 fx 模块
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(ProvideSession),
	)
}
