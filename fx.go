package robomesh

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/internal/core/metrics"
	"github.com/robomesh/go-robomesh/internal/core/session"
	"github.com/robomesh/go-robomesh/internal/router"
	"github.com/robomesh/go-robomesh/internal/transport/inproc"
	"github.com/robomesh/go-robomesh/internal/transport/ws"
	"github.com/robomesh/go-robomesh/pkg/interfaces"
	"github.com/robomesh/go-robomesh/pkg/lib/log"
)

var fxLogger = log.Logger("robomesh/fx")

// buildFxApp 构建 Fx 应用
//
// 组装所有内部模块：
//   - 配置模块：校验并分发会话配置
//   - 指标模块：prometheus 采集器与独立注册表
//   - 传输模块：按模式提供 inproc 或 ws 传输
//   - 会话模块：打开传输会话并装配图谱缓存
//
// 加载顺序（按依赖）：Config → Metrics → Transport → Session → Context 注入
func buildFxApp(cfg *config.SessionConfig, opts *config.Options, o *options, rctx *Context) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置校验（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := config.ValidateSession(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 日志输出（必须最早应用）
	// ════════════════════════════════════════════════════════════════════════
	if err := setupLogging(&cfg.Log); err != nil {
		return nil, err
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 核心模块（必须加载）
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		// 配置注入
		fx.Supply(cfg),
		fx.Supply(opts),

		// 基础组件
		config.Module(),  // 配置分发
		metrics.Module(), // 指标采集
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 传输层（按模式选择）
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, provideTransport(cfg, o))

	// ════════════════════════════════════════════════════════════════════════
	// 5. 会话层（依赖传输）
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, session.Module())

	// ════════════════════════════════════════════════════════════════════════
	// 6. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 7. Context 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectContextComponents(rctx)))

	// ════════════════════════════════════════════════════════════════════════
	// 8. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.NopLogger,
	)

	return fx.New(modules...), nil
}

// ════════════════════════════════════════════════════════════════════════════
// 日志装配
// ════════════════════════════════════════════════════════════════════════════

// setupLogging 配置日志输出
//
// 级别与输出目标在进程内全局生效，后建立的 Context 覆盖先前的设置。
// 日志文件以追加模式打开，在进程生命周期内持续使用，不关闭。
func setupLogging(cfg *config.LogConfig) error {
	level := log.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = log.LevelDebug
	case "warn":
		level = log.LevelWarn
	case "error":
		level = log.LevelError
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		log.SetOutputWithLevel(file, level)
		fxLogger.Info("日志文件初始化成功", "path", cfg.File)
		return nil
	}

	if cfg.Level != "" {
		log.SetLevel(level)
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
// 传输装配
// ════════════════════════════════════════════════════════════════════════════

// wsTransportParams ws 传输构造参数
type wsTransportParams struct {
	fx.In

	Options      *config.Options
	RouterClient *config.RouterClientConfig `name:"router_client_config"`
}

// provideTransport 按配置提供传输实现
//
// 优先级：WithTransport 注入的自定义传输 > mode 配置。
func provideTransport(cfg *config.SessionConfig, o *options) fx.Option {
	if o.transport != nil {
		return fx.Provide(func() interfaces.Transport {
			return o.transport
		})
	}

	switch cfg.Mode {
	case "inproc":
		// 进程内路由：每个 Context 一个独立 broker，随应用生命周期关闭
		return fx.Provide(func(lc fx.Lifecycle) interfaces.Transport {
			b := router.NewBroker()
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return b.Close()
				},
			})
			return inproc.New(b)
		})
	default:
		return fx.Provide(func(p wsTransportParams) interfaces.Transport {
			return ws.New(p.RouterClient, p.Options.Enclave, p.Options.Security.EnclaveKey)
		})
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

// contextInjectParams Context 组件注入参数
type contextInjectParams struct {
	fx.In

	// 核心组件（必需）
	Data *session.Data // 会话数据

	// 可选组件
	Metrics  *metrics.Metrics     `optional:"true"` // 指标采集
	Registry *prometheus.Registry `optional:"true"` // 指标注册表
}

// injectContextComponents 创建 Context 组件注入函数
func injectContextComponents(rctx *Context) interface{} {
	return func(params contextInjectParams) {
		rctx.data = params.Data
		rctx.metrics = params.Metrics
		rctx.registry = params.Registry
	}
}
