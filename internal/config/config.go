package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
//                              JSON 时长
// ============================================================================

// Duration 支持 "500ms"/"5s" 字符串与纳秒数字两种 JSON 形式的时长
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration: %v", raw)
	}
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std 返回标准库时长
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ============================================================================
//                              日志配置
// ============================================================================

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别: debug, info, warn, error
	Level string `json:"level"`

	// File 日志文件路径
	// 为空时输出到 stderr，非空时输出到指定文件
	File string `json:"file"`
}

// ============================================================================
//                              会话配置
// ============================================================================

// SessionConfig 会话端文件配置
//
// 经 LoadSessionConfig 从 JSONC 文件加载，
// 未出现的字段保持内置默认值。
type SessionConfig struct {
	// Mode 传输模式
	// 可选: ws (默认，经 WebSocket 连路由器), inproc (进程内路由)
	Mode string `json:"mode"`

	// Router 路由器连接配置（ws 模式）
	Router RouterClientConfig `json:"router"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// RouterClientConfig 路由器连接配置
type RouterClientConfig struct {
	// Endpoint 路由器端点，格式 ws://host:port 或 wss://host:port
	Endpoint string `json:"endpoint"`

	// ConnectTimeout 单次连接超时
	ConnectTimeout Duration `json:"connect_timeout"`

	// CheckAttempts 会话建立时探测路由器存活的尝试次数
	// 0 使用默认值，负数表示无限重试
	CheckAttempts int `json:"check_attempts"`

	// CheckPeriod 两次探测之间的间隔
	CheckPeriod Duration `json:"check_period"`

	// CompressionThreshold 负载超过该字节数时启用 zstd 压缩，0 关闭压缩
	CompressionThreshold int `json:"compression_threshold"`
}

// ============================================================================
//                              路由器配置
// ============================================================================

// RouterConfig 路由器守护进程（robomeshd）文件配置
type RouterConfig struct {
	// Listen WebSocket 监听地址，格式 host:port
	Listen string `json:"listen"`

	// MetricsListen 指标 HTTP 监听地址，为空时不暴露 /metrics
	MetricsListen string `json:"metrics_listen"`

	// MaxFrameBytes 单帧最大字节数
	MaxFrameBytes int `json:"max_frame_bytes"`

	// EnclaveKeyFile enclave 预共享密钥文件路径，为空时不校验握手令牌
	EnclaveKeyFile string `json:"enclave_key_file"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}
