// Package types 定义 RoboMesh 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              参数与生命周期错误
// ============================================================================

var (
	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBadAlloc 资源分配失败
	ErrBadAlloc = errors.New("allocation failed")

	// ErrIncorrectImplementation 选项由其他实现初始化
	ErrIncorrectImplementation = errors.New("options initialized by a different implementation")

	// ErrNotInitialized 对象未初始化
	ErrNotInitialized = errors.New("not initialized")

	// ErrShutdown 会话已关闭
	ErrShutdown = errors.New("session shut down")
)

// ============================================================================
//                              等待与事件错误
// ============================================================================

var (
	// ErrWaitTimeout 等待超时且无任何就绪项
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrWaitSetInUse 等待集已被另一个 Wait 占用
	ErrWaitSetInUse = errors.New("wait set already in use")

	// ErrEventUnsupported 实体不支持该事件种类
	ErrEventUnsupported = errors.New("event kind unsupported by this entity")
)

// ============================================================================
//                              传输与路由错误
// ============================================================================

var (
	// ErrNotConnected 未连接到路由器
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("connection closed")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("operation timeout")
)

// ============================================================================
//                              图谱查询错误
// ============================================================================

var (
	// ErrNodeNotFound 图谱中无此节点
	ErrNodeNotFound = errors.New("node not found in graph")
)
