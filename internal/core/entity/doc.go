// Package entity 实现四类数据端点的运行时状态
//
// 订阅、发布、服务、客户端各对应一个 Data 结构，持有传输句柄、
// 消息队列与事件状态，并负责自身的存活令牌。端点创建即声明，
// 销毁即撤销，图谱由令牌变化自动维护。
//
// # 快速开始
//
//	sub, err := entity.NewSubscription(deps, ent)
//	if err != nil { ... }
//	defer sub.Shutdown()
//
//	sub.SetDataCallback(func() {
//		if msg, ok := sub.TakeMessage(); ok {
//			handle(msg)
//		}
//	})
//
// # 架构定位
//
//	┌─────────────────────────┐
//	│        门面 (Node)       │
//	├─────────────────────────┤
//	│     entity (本包)        │  队列/序列号/事件状态
//	├────────────┬────────────┤
//	│   graph    │   events   │  匹配事件 / 状态事件
//	├────────────┴────────────┤
//	│    Transport 会话        │
//	└─────────────────────────┘
//
// # 并发安全
//
// 每个端点一把互斥锁保护队列与句柄；事件上报、数据回调与等待
// 句柄之外的用户回调都在端点锁之外执行，回调内可以重入端点方法。
package entity
