package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError 配置校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个配置校验错误
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors 是否有错误
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator 配置校验器
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// addError 添加错误
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// Errors 返回所有错误
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// ValidateSession 校验会话配置
func ValidateSession(cfg *SessionConfig) error {
	v := NewValidator()

	v.validateMode(cfg.Mode)
	if cfg.Mode != "inproc" {
		v.validateRouterClient(&cfg.Router)
	}
	v.validateLog(&cfg.Log)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// ValidateRouter 校验路由器配置
func ValidateRouter(cfg *RouterConfig) error {
	v := NewValidator()

	if cfg.Listen == "" {
		v.addError("listen", "监听地址不能为空")
	} else if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		v.addError("listen", "必须为 host:port 格式")
	}

	if cfg.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsListen); err != nil {
			v.addError("metrics_listen", "必须为 host:port 格式")
		}
	}

	if cfg.MaxFrameBytes <= 0 {
		v.addError("max_frame_bytes", "必须大于 0")
	}

	v.validateLog(&cfg.Log)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateMode 校验传输模式
func (v *Validator) validateMode(mode string) {
	switch mode {
	case "ws", "inproc":
	default:
		v.addError("mode", fmt.Sprintf("未知传输模式 %q (可选: ws, inproc)", mode))
	}
}

// validateRouterClient 校验路由器连接配置
func (v *Validator) validateRouterClient(cfg *RouterClientConfig) {
	if cfg.Endpoint == "" {
		v.addError("router.endpoint", "端点不能为空")
	} else {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			v.addError("router.endpoint", "必须为 ws://host:port 或 wss://host:port")
		}
	}

	if cfg.ConnectTimeout < 0 {
		v.addError("router.connect_timeout", "不能为负数")
	}

	if cfg.CheckPeriod < 0 {
		v.addError("router.check_period", "不能为负数")
	}

	if cfg.CompressionThreshold < 0 {
		v.addError("router.compression_threshold", "不能为负数")
	}
}

// validateLog 校验日志配置
func (v *Validator) validateLog(cfg *LogConfig) {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("log.level", fmt.Sprintf("未知日志级别 %q", cfg.Level))
	}
}
