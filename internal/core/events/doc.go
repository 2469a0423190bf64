// Package events 实现实体状态事件管理
//
// 每个实体（发布者/订阅者/服务端/客户端）内嵌一个 Manager，按事件
// 种类记录状态（累计计数、增量、当前水平、附加负载），并通过
// "检查-挂接-触发-解除"协议与等待集协作，支持：
//   - 生产者侧常量时间、无阻塞的状态更新
//   - 读取即复位的状态快照（Take 语义）
//   - 回调补投（注册前累积的触发在注册时逐次重放）
//   - 无丢失唤醒的等待集挂接
//
// # 快速开始
//
//	mgr := events.NewManager()
//
//	// 传输 I/O 协程：状态变化时更新
//	mgr.UpdateStatus(events.KindSubscriptionMatched, +1)
//
//	// 消费协程：读取并复位
//	st := mgr.TakeStatus(events.KindSubscriptionMatched)
//
//	// 或注册回调即时感知
//	mgr.SetCallback(events.KindSubscriptionMatched, func() { ... })
//
// # 架构定位
//
// Tier: Core Layer Level 1
//
// 依赖关系：
//   - 依赖：pkg/types, internal/core/waitset
//   - 被依赖：internal/core/entity, 根门面
//
// # 并发安全
//
// Manager 用单把互斥锁保护状态、回调槽、补投计数与挂接槽；
// 用户回调一律在释放锁之后调用，回调内可以安全地重入 Manager。
// 挂接的等待条件在持锁期间触发（锁序 Manager → Condition，
// Condition 的方法不会反向调用 Manager）。
//
// 所有操作均为有界的常量时间更新，热路径上不做动态分配。
package events
