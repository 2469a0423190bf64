package config

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ============================================================================
//                              安全选项
// ============================================================================

// SecurityEnforcement 安全策略执行级别
type SecurityEnforcement int

const (
	// SecurityPermissive 缺少安全材料时降级为明文继续
	SecurityPermissive SecurityEnforcement = iota
	// SecurityEnforce 缺少安全材料时拒绝建立会话
	SecurityEnforce
)

// String 返回执行级别的可读名称
func (s SecurityEnforcement) String() string {
	switch s {
	case SecurityPermissive:
		return "permissive"
	case SecurityEnforce:
		return "enforce"
	default:
		return "unknown"
	}
}

// SecurityOptions 安全选项
type SecurityOptions struct {
	// Enforce 安全策略执行级别
	Enforce SecurityEnforcement

	// KeystoreDir 密钥材料根目录（空表示未配置）
	KeystoreDir string

	// EnclaveKey enclave 预共享密钥
	//
	// 非空时，会话握手携带由此派生的认证令牌；
	// 路由器持有同一密钥方可验证。
	EnclaveKey []byte
}

// DefaultSecurityOptions 默认安全选项
func DefaultSecurityOptions() SecurityOptions {
	return SecurityOptions{
		Enforce: SecurityPermissive,
	}
}

// clone 深拷贝安全选项
func (s SecurityOptions) clone() (SecurityOptions, error) {
	key, err := cloneBytes(s.EnclaveKey)
	if err != nil {
		return SecurityOptions{}, err
	}
	dir, err := cloneString(s.KeystoreDir)
	if err != nil {
		return SecurityOptions{}, err
	}
	return SecurityOptions{
		Enforce:     s.Enforce,
		KeystoreDir: dir,
		EnclaveKey:  key,
	}, nil
}

// enclaveAuthSalt enclave 认证密钥派生盐值
const enclaveAuthSalt = "robomesh-enclave-auth-v1"

// DeriveEnclaveAuthKey 从 enclave 预共享密钥派生握手认证密钥
//
// 派生公式:
//
//	authKey = HKDF-SHA256(key = enclaveKey, salt = "robomesh-enclave-auth-v1", info = enclave)
//
// 会话与路由器两端各自派生，握手时比对。
func DeriveEnclaveAuthKey(enclaveKey []byte, enclave string) []byte {
	reader := hkdf.New(sha256.New, enclaveKey, []byte(enclaveAuthSalt), []byte(enclave))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		// HKDF 不应该失败，除非参数有问题
		panic("hkdf read failed: " + err.Error())
	}
	return key
}

// ============================================================================
//                              发现选项
// ============================================================================

// DiscoveryRange 自动发现范围
type DiscoveryRange int

const (
	// DiscoveryRangeSystemDefault 由实现选择默认范围
	DiscoveryRangeSystemDefault DiscoveryRange = iota
	// DiscoveryRangeOff 关闭自动发现，只连静态路由器
	DiscoveryRangeOff
	// DiscoveryRangeLocalhost 仅本机发现
	DiscoveryRangeLocalhost
	// DiscoveryRangeSubnet 子网范围发现
	DiscoveryRangeSubnet
)

// String 返回发现范围的可读名称
func (r DiscoveryRange) String() string {
	switch r {
	case DiscoveryRangeSystemDefault:
		return "system_default"
	case DiscoveryRangeOff:
		return "off"
	case DiscoveryRangeLocalhost:
		return "localhost"
	case DiscoveryRangeSubnet:
		return "subnet"
	default:
		return "unknown"
	}
}

// DiscoveryOptions 发现选项
type DiscoveryOptions struct {
	// Range 自动发现范围
	Range DiscoveryRange

	// StaticRouters 静态路由器端点列表
	//
	// 非空时跳过自动发现，直接连接列表中的端点。
	StaticRouters []string

	// RouterCheckAttempts 会话建立时探测路由器存活的尝试次数
	//
	// 0 使用默认值，负数表示无限重试。
	RouterCheckAttempts int
}

// DefaultDiscoveryOptions 默认发现选项
func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{
		Range: DiscoveryRangeLocalhost,
	}
}

// clone 深拷贝发现选项
func (d DiscoveryOptions) clone() (DiscoveryOptions, error) {
	routers, err := cloneStrings(d.StaticRouters)
	if err != nil {
		return DiscoveryOptions{}, err
	}
	return DiscoveryOptions{
		Range:               d.Range,
		StaticRouters:       routers,
		RouterCheckAttempts: d.RouterCheckAttempts,
	}, nil
}
