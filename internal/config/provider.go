package config

import (
	"go.uber.org/fx"
)

// Provider 配置提供者
//
// Provider 负责将配置分发给各个组件
type Provider struct {
	session *SessionConfig
	options *Options
}

// NewProvider 创建配置提供者
func NewProvider(session *SessionConfig, options *Options) *Provider {
	return &Provider{
		session: session,
		options: options,
	}
}

// GetSession 获取会话配置
func (p *Provider) GetSession() *SessionConfig {
	return p.session
}

// GetOptions 获取会话选项
func (p *Provider) GetOptions() *Options {
	return p.options
}

// GetRouterClient 获取路由器连接配置
func (p *Provider) GetRouterClient() *RouterClientConfig {
	return &p.session.Router
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *LogConfig {
	return &p.session.Log
}

// ============================================================================
//                              fx 模块
// ============================================================================

// ProviderResult fx 提供者结果
type ProviderResult struct {
	fx.Out

	Provider     *Provider
	RouterClient *RouterClientConfig `name:"router_client_config"`
	Log          *LogConfig          `name:"log_config"`
}

// ProvideConfig 提供配置
//
// 会话配置与选项由上层 fx.Supply 注入。
func ProvideConfig(session *SessionConfig, options *Options) (ProviderResult, error) {
	if err := ValidateSession(session); err != nil {
		return ProviderResult{}, err
	}

	provider := NewProvider(session, options)
	return ProviderResult{
		Provider:     provider,
		RouterClient: provider.GetRouterClient(),
		Log:          provider.GetLog(),
	}, nil
}

// Module 返回配置 fx 模块
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(ProvideConfig),
	)
}
