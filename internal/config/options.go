// Package config 提供 RoboMesh 配置管理层
//
// config 包负责：
// - 会话选项（Options）的初始化/拷贝/释放生命周期
// - 会话与路由器的文件配置（JSONC）
// - 配置校验与默认值
package config

import (
	"fmt"
	"math"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// implementationTag 实现标签
//
// Init 写入，Copy/Fini 校验；零值表示选项未初始化。
// 跨实现传递的选项在此被拒绝。
const implementationTag = "robomesh"

// DomainIDDefault 选项中表示"由实现选择默认域"的哨兵值
//
// 会话建立时解析为域 0。
const DomainIDDefault int64 = -1

// Options 会话初始化选项
//
// 生命周期契约：
//   - Init 只接受零值选项，填入默认值并打上实现标签
//   - Copy 只接受已初始化的源与零值目标；深拷贝在局部完成，
//     全部成功后才提交到目标，任何失败都不触碰目标
//   - Fini 只接受已初始化的选项，释放并归零
type Options struct {
	// DomainID 域 ID
	//
	// DomainIDDefault 表示使用默认域；其余取值范围 [0, math.MaxUint32]。
	DomainID int64

	// Enclave 安全 enclave 名称（空表示不启用 enclave 认证）
	Enclave string

	// InstanceID 进程内会话实例序号（由上层分配）
	InstanceID uint64

	// Security 安全选项
	Security SecurityOptions

	// Discovery 发现选项
	Discovery DiscoveryOptions

	// tag 实现标签，零值表示未初始化
	tag string
}

// Initialized 返回选项是否已由 Init 初始化
func (o *Options) Initialized() bool {
	return o != nil && o.tag != ""
}

// Init 以默认值初始化零值选项
func (o *Options) Init() error {
	if o == nil {
		return fmt.Errorf("%w: nil options", types.ErrInvalidArgument)
	}
	if o.tag != "" {
		return fmt.Errorf("%w: expected zero-initialized options", types.ErrInvalidArgument)
	}

	*o = Options{
		DomainID:  DomainIDDefault,
		Security:  DefaultSecurityOptions(),
		Discovery: DefaultDiscoveryOptions(),
		tag:       implementationTag,
	}
	return nil
}

// Copy 深拷贝选项到 dst
//
// 源必须已初始化且标签匹配，目标必须为零值。
// 可失败的拷贝步骤（安全 → 发现 → enclave）全部在局部完成，
// 只有全部成功才提交，失败时 dst 保持原样。
func (o *Options) Copy(dst *Options) error {
	if o == nil || dst == nil {
		return fmt.Errorf("%w: nil options", types.ErrInvalidArgument)
	}
	if o.tag == "" {
		return fmt.Errorf("%w: expected initialized source options", types.ErrInvalidArgument)
	}
	if o.tag != implementationTag {
		return types.ErrIncorrectImplementation
	}
	if dst.tag != "" {
		return fmt.Errorf("%w: expected zero-initialized destination options", types.ErrInvalidArgument)
	}

	tmp := Options{
		DomainID:   o.DomainID,
		InstanceID: o.InstanceID,
		tag:        implementationTag,
	}

	security, err := o.Security.clone()
	if err != nil {
		return err
	}
	tmp.Security = security

	discovery, err := o.Discovery.clone()
	if err != nil {
		return err
	}
	tmp.Discovery = discovery

	enclave, err := cloneString(o.Enclave)
	if err != nil {
		return err
	}
	tmp.Enclave = enclave

	*dst = tmp
	return nil
}

// Fini 释放选项并归零
func (o *Options) Fini() error {
	if o == nil {
		return fmt.Errorf("%w: nil options", types.ErrInvalidArgument)
	}
	if o.tag == "" {
		return fmt.Errorf("%w: expected initialized options", types.ErrInvalidArgument)
	}
	if o.tag != implementationTag {
		return types.ErrIncorrectImplementation
	}

	zeroBytes(o.Security.EnclaveKey)
	*o = Options{}
	return nil
}

// ActualDomainID 解析哨兵值后的域 ID
func (o *Options) ActualDomainID() (uint32, error) {
	if o.DomainID == DomainIDDefault {
		return 0, nil
	}
	if o.DomainID < 0 || o.DomainID > math.MaxUint32 {
		return 0, fmt.Errorf("%w: domain id %d out of range", types.ErrInvalidArgument, o.DomainID)
	}
	return uint32(o.DomainID), nil
}

// ============================================================================
//                              深拷贝基元
// ============================================================================

// allocBytes 深拷贝用的缓冲分配钩子，测试经 export_test.go 注入失败
var allocBytes = func(n int) ([]byte, error) {
	return make([]byte, n), nil
}

func cloneBytes(src []byte) ([]byte, error) {
	if src == nil {
		return nil, nil
	}
	buf, err := allocBytes(len(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBadAlloc, err)
	}
	copy(buf, src)
	return buf, nil
}

func cloneString(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	buf, err := cloneBytes([]byte(src))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func cloneStrings(src []string) ([]string, error) {
	if src == nil {
		return nil, nil
	}
	out := make([]string, len(src))
	for i, s := range src {
		cloned, err := cloneString(s)
		if err != nil {
			return nil, err
		}
		out[i] = cloned
	}
	return out, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
