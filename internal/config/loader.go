package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// 配置文件路径环境变量
const (
	// EnvSessionConfig 会话配置文件路径
	EnvSessionConfig = "ROBOMESH_CONFIG"

	// EnvRouterConfig 路由器配置文件路径
	EnvRouterConfig = "ROBOMESH_ROUTER_CONFIG"
)

// LoadSessionConfig 加载会话配置
//
// 优先级: 显式路径 > ROBOMESH_CONFIG 环境变量 > 内置默认。
// 配置文件为 JSONC 格式（允许注释与尾逗号），
// 未出现的字段保持默认值。
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cfg := DefaultSessionConfig()
	if path == "" {
		path = os.Getenv(EnvSessionConfig)
	}
	if path == "" {
		return cfg, nil
	}
	if err := loadJSONC(path, cfg); err != nil {
		return nil, err
	}
	if err := ValidateSession(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRouterConfig 加载路由器配置
//
// 优先级: 显式路径 > ROBOMESH_ROUTER_CONFIG 环境变量 > 内置默认。
func LoadRouterConfig(path string) (*RouterConfig, error) {
	cfg := DefaultRouterConfig()
	if path == "" {
		path = os.Getenv(EnvRouterConfig)
	}
	if path == "" {
		return cfg, nil
	}
	if err := loadJSONC(path, cfg); err != nil {
		return nil, err
	}
	if err := ValidateRouter(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadJSONC 读取 JSONC 文件并解析到 v
func loadJSONC(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件: %w", err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(raw), v); err != nil {
		return fmt.Errorf("解析配置文件 %s: %w", path, err)
	}
	return nil
}
