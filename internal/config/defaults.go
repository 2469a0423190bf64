package config

import "time"

// ============================================================================
//                              预设默认值
// ============================================================================

// 路由器连接默认值
const (
	// DefaultRouterEndpoint 默认路由器端点
	DefaultRouterEndpoint = "ws://127.0.0.1:7447"

	// DefaultRouterListen 路由器默认监听地址
	DefaultRouterListen = "127.0.0.1:7447"

	// DefaultConnectTimeout 默认连接超时
	DefaultConnectTimeout = 10 * time.Second

	// DefaultCheckAttempts 默认路由器存活探测次数
	DefaultCheckAttempts = 10

	// DefaultCheckPeriod 默认探测间隔
	DefaultCheckPeriod = 1 * time.Second
)

// 帧与压缩默认值
const (
	// DefaultCompressionThreshold 默认压缩阈值（字节）
	DefaultCompressionThreshold = 16 * 1024

	// DefaultMaxFrameBytes 默认单帧上限（字节）
	DefaultMaxFrameBytes = 16 * 1024 * 1024
)

// DefaultSessionConfig 默认会话配置
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Mode: "ws",
		Router: RouterClientConfig{
			Endpoint:             DefaultRouterEndpoint,
			ConnectTimeout:       Duration(DefaultConnectTimeout),
			CheckAttempts:        DefaultCheckAttempts,
			CheckPeriod:          Duration(DefaultCheckPeriod),
			CompressionThreshold: DefaultCompressionThreshold,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultRouterConfig 默认路由器配置
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Listen:        DefaultRouterListen,
		MaxFrameBytes: DefaultMaxFrameBytes,
		Log: LogConfig{
			Level: "info",
		},
	}
}
