// Package interfaces 定义 RoboMesh 公共接口
//
// 本文件定义 Transport 接口，抽象底层 pub/sub 传输。
package interfaces

import (
	"context"

	"github.com/robomesh/go-robomesh/pkg/types"
)

// SampleHandler 样本回调
//
// 由传输层 I/O 协程调用；回调内不得阻塞，样本所有权转移给回调方。
type SampleHandler func(sample types.Sample)

// Transport 定义传输层接口
//
// Transport 抽象不同的 pub/sub 传输实现（进程内、WebSocket 路由器）。
type Transport interface {
	// Open 打开一个会话
	Open(ctx context.Context) (Session, error)
}

// Session 定义传输会话接口
//
// 一个进程内通常只有一个会话，所有实体共享。
// 除 Close 外的方法在会话关闭后返回错误。
type Session interface {
	// ID 返回会话唯一标识
	ID() string

	// DeclarePublisher 在指定键表达式上声明发布者
	DeclarePublisher(keyexpr string) (Publisher, error)

	// DeclareSubscriber 在指定键表达式上声明订阅者
	//
	// keyexpr 支持 * 单段通配与 ** 多段通配。
	DeclareSubscriber(keyexpr string, handler SampleHandler) (Subscriber, error)

	// DeclareLivelinessToken 声明存活令牌
	//
	// 令牌存续期间，匹配的存活订阅者会收到 Put 样本；
	// 令牌撤销（或会话断开）时收到 Delete 样本。
	DeclareLivelinessToken(keyexpr string) (LivelinessToken, error)

	// SubscribeLiveliness 订阅存活令牌变化
	//
	// history 为 true 时，先以 Put 样本回放当前已存在的全部匹配令牌，
	// 再交付后续变化。
	SubscribeLiveliness(keyexpr string, history bool, handler SampleHandler) (Subscriber, error)

	// Close 关闭会话，撤销全部声明
	Close() error
}

// Publisher 定义传输发布者接口
type Publisher interface {
	// Keyexpr 返回声明的键表达式
	Keyexpr() string

	// Put 发布一条样本
	Put(payload, attachment []byte) error

	// Undeclare 撤销发布者
	Undeclare() error
}

// Subscriber 定义传输订阅者接口
type Subscriber interface {
	// Keyexpr 返回声明的键表达式
	Keyexpr() string

	// Undeclare 撤销订阅者，之后不再有回调
	Undeclare() error
}

// LivelinessToken 定义存活令牌接口
type LivelinessToken interface {
	// Keyexpr 返回令牌的键表达式
	Keyexpr() string

	// Undeclare 撤销令牌，触发 Delete 样本
	Undeclare() error
}
