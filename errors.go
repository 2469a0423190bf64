package robomesh

import "github.com/robomesh/go-robomesh/pkg/types"

// 公共错误定义
//
// 核心错误在 pkg/types 中定义，此处导出别名，
// 调用方无需额外导入 types 即可做 errors.Is 判断。
var (
	// ────────────────────────────────────────────────────────────────────────
	// 参数与生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = types.ErrInvalidArgument

	// ErrBadAlloc 资源分配失败
	ErrBadAlloc = types.ErrBadAlloc

	// ErrIncorrectImplementation 选项由其他实现初始化
	ErrIncorrectImplementation = types.ErrIncorrectImplementation

	// ErrShutdown 上下文已关闭
	ErrShutdown = types.ErrShutdown

	// ────────────────────────────────────────────────────────────────────────
	// 等待与事件错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrWaitTimeout 等待超时且无任何就绪项
	ErrWaitTimeout = types.ErrWaitTimeout

	// ErrWaitSetInUse 等待集已被另一个 Wait 占用
	ErrWaitSetInUse = types.ErrWaitSetInUse

	// ErrEventUnsupported 实体不支持该事件种类
	ErrEventUnsupported = types.ErrEventUnsupported

	// ────────────────────────────────────────────────────────────────────────
	// 图谱查询错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNodeNotFound 图谱中无此节点
	ErrNodeNotFound = types.ErrNodeNotFound
)
