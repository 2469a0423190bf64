package robomesh

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/robomesh/go-robomesh/internal/config"
	"github.com/robomesh/go-robomesh/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 配置文件
	configFile string

	// 会话选项
	domainID   *uint32
	enclave    string
	enclaveKey []byte

	// 传输配置
	mode      string
	endpoint  string
	transport interfaces.Transport

	// 路由器探测
	routerCheckAttempts  *int
	compressionThreshold *int

	// 日志配置
	logLevel string
	logFile  string

	// 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// sessionConfig 构建会话文件配置
//
// 先加载配置文件（或内置默认），再叠加选项覆盖。
func (o *options) sessionConfig() (*config.SessionConfig, error) {
	cfg, err := config.LoadSessionConfig(o.configFile)
	if err != nil {
		return nil, err
	}

	// 覆盖: 传输模式
	if o.mode != "" {
		cfg.Mode = o.mode
	}

	// 覆盖: 路由器端点
	if o.endpoint != "" {
		cfg.Router.Endpoint = o.endpoint
	}

	// 覆盖: 压缩阈值
	if o.compressionThreshold != nil {
		cfg.Router.CompressionThreshold = *o.compressionThreshold
	}

	// 覆盖: 日志配置
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}

	return cfg, nil
}

// sessionOptions 构建会话初始化选项
func (o *options) sessionOptions() (*config.Options, error) {
	opts := &config.Options{}
	if err := opts.Init(); err != nil {
		return nil, err
	}

	if o.domainID != nil {
		opts.DomainID = int64(*o.domainID)
	}
	opts.Enclave = o.enclave
	opts.Security.EnclaveKey = o.enclaveKey
	if o.routerCheckAttempts != nil {
		opts.Discovery.RouterCheckAttempts = *o.routerCheckAttempts
	}

	return opts, nil
}

// ============================================================================
//                              域选项
// ============================================================================

// WithDomainID 设置域 ID
//
// 不同域的会话互不可见。未设置时使用域 0。
//
// 示例:
//
//	robomesh.New(ctx, robomesh.WithDomainID(7))
func WithDomainID(id uint32) Option {
	return func(o *options) error {
		o.domainID = &id
		return nil
	}
}

// WithEnclave 设置安全 enclave 名称
//
// enclave 是会话的安全域标记，会出现在所有实体的存活键表达式中。
// 配合 WithEnclaveKey 使用时，路由器握手时校验认证令牌。
func WithEnclave(name string) Option {
	return func(o *options) error {
		if name == "" {
			return fmt.Errorf("enclave 名称不能为空")
		}
		o.enclave = name
		return nil
	}
}

// WithEnclaveKey 设置 enclave 预共享密钥
//
// 非空时，会话握手携带由密钥派生的认证令牌，
// 路由器持有同一密钥方可通过校验。
func WithEnclaveKey(key []byte) Option {
	return func(o *options) error {
		if len(key) == 0 {
			return fmt.Errorf("enclave 密钥不能为空")
		}
		o.enclaveKey = append([]byte(nil), key...)
		return nil
	}
}

// ============================================================================
//                              传输选项
// ============================================================================

// WithRouterEndpoint 设置路由器端点
//
// 格式 ws://host:port 或 wss://host:port。
// 默认连接本机 robomeshd（ws://127.0.0.1:7447）。
//
// 示例:
//
//	robomesh.New(ctx, robomesh.WithRouterEndpoint("ws://10.0.0.5:7447"))
func WithRouterEndpoint(endpoint string) Option {
	return func(o *options) error {
		if endpoint == "" {
			return fmt.Errorf("路由器端点不能为空")
		}
		o.endpoint = endpoint
		o.mode = "ws"
		return nil
	}
}

// WithInprocTransport 使用进程内路由
//
// 不连接外部路由器，样本在进程内直接投递。
// 同进程内的多个 Context 互通，适合测试与单进程部署。
func WithInprocTransport() Option {
	return func(o *options) error {
		o.mode = "inproc"
		return nil
	}
}

// WithTransport 使用自定义传输实现
//
// 覆盖 mode 配置，直接用给定传输打开会话。
// 用于嵌入方自带传输或测试注入。
func WithTransport(tr interfaces.Transport) Option {
	return func(o *options) error {
		if tr == nil {
			return fmt.Errorf("传输实现不能为空")
		}
		o.transport = tr
		return nil
	}
}

// WithRouterCheckAttempts 设置路由器存活探测次数
//
// 会话建立时最多尝试连接路由器 n 次，每次间隔约 1 秒。
// 负数表示无限重试，直到连接成功或上下文取消。
func WithRouterCheckAttempts(n int) Option {
	return func(o *options) error {
		if n == 0 {
			return fmt.Errorf("探测次数不能为 0")
		}
		o.routerCheckAttempts = &n
		return nil
	}
}

// WithCompressionThreshold 设置负载压缩阈值
//
// 负载超过该字节数时启用 zstd 压缩，0 关闭压缩。
// 仅对 ws 传输生效。
func WithCompressionThreshold(bytes int) Option {
	return func(o *options) error {
		if bytes < 0 {
			return fmt.Errorf("压缩阈值不能为负数")
		}
		o.compressionThreshold = &bytes
		return nil
	}
}

// ============================================================================
//                              配置文件选项
// ============================================================================

// WithConfigFile 从 JSONC 配置文件加载会话配置
//
// 未出现的字段保持内置默认值；其他 WithXxx 选项的优先级
// 高于配置文件。未设置时读取 ROBOMESH_CONFIG 环境变量。
func WithConfigFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("配置文件路径不能为空")
		}
		o.configFile = path
		return nil
	}
}

// ============================================================================
//                              日志选项
// ============================================================================

// WithLogLevel 设置日志级别
//
// 取值: debug, info, warn, error。
func WithLogLevel(level string) Option {
	return func(o *options) error {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("未知日志级别 %q", level)
		}
		o.logLevel = level
		return nil
	}
}

// WithLogFile 将日志输出重定向到指定文件
//
// 默认情况下，结构化日志输出到 stderr。
// 文件以追加模式打开，多次运行会累积日志。
//
// 示例:
//
//	robomesh.New(ctx, robomesh.WithLogFile("robomesh.log"))
func WithLogFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("日志文件路径不能为空")
		}
		o.logFile = path
		return nil
	}
}

// ============================================================================
//                              扩展选项
// ============================================================================

// WithFxOption 追加用户自定义 Fx 选项
//
// 在内部模块之后装入 Fx 应用，可用于注入额外组件
// 或覆盖内部提供者。
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
