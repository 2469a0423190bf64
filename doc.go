// Package robomesh 提供机器人中间件的 Go 会话层
//
// RoboMesh 把发布/订阅、服务调用、图谱发现与等待集同步
// 映射到一个键表达式路由的 pub/sub 传输之上。实体的存活
// 经 liveliness 令牌声明，域内所有会话据此各自维护一份
// 图谱缓存，匹配与 QoS 事件由图谱变化驱动。
//
// # 核心概念
//
// RoboMesh 围绕四个核心概念构建：
//
//   - Context: 一个域内的传输会话与图谱缓存，实体的根
//   - Node: 命名空间中的一个命名参与者，端点的容器
//   - 端点: Publisher、Subscription、Service、Client
//   - WaitSet: 阻塞等待任意一组实体就绪的同步原语
//
// # 快速开始
//
//	import "github.com/robomesh/go-robomesh"
//
//	// 1. 建立会话（默认经 WebSocket 连接本机路由器 robomeshd）
//	rctx, err := robomesh.New(ctx, robomesh.WithDomainID(7))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rctx.Shutdown()
//
//	// 2. 创建节点与端点
//	node, _ := rctx.CreateNode("/fleet", "camera_driver")
//	pub, _ := node.CreatePublisher("/image", "sensor_msgs/msg/Image")
//	sub, _ := node.CreateSubscription("/cmd", "geometry_msgs/msg/Twist")
//
//	// 3. 等待数据
//	ws := rctx.CreateWaitSet()
//	ready, err := ws.Wait(ctx, time.Second, robomesh.Waitables{
//	    Subscriptions: []*robomesh.Subscription{sub},
//	})
//	if err == nil {
//	    msg, _ := ready.Subscriptions[0].TakeMessage()
//	    handle(msg)
//	}
//
// # API 层次结构
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  门面层                                                      │
//	│  Context / Node / Publisher / Subscription / Service /      │
//	│  Client / Event / WaitSet / GuardCondition                  │
//	├─────────────────────────────────────────────────────────────┤
//	│  核心层                                                      │
//	│  entity（端点状态） events（状态事件） waitset（等待原语）      │
//	│  graph（图谱缓存） liveliness（键表达式） qos                  │
//	├─────────────────────────────────────────────────────────────┤
//	│  传输层                                                      │
//	│  inproc（进程内路由） ws（WebSocket 连 robomeshd）            │
//	└─────────────────────────────────────────────────────────────┘
//
// # 文件组织
//
//	robomesh/
//	├── robomesh.go           # 版本信息
//	├── context.go            # Context 结构、New()、图谱查询、Shutdown
//	├── node.go               # Node 结构、端点创建
//	├── publisher.go          # Publisher 门面
//	├── subscription.go       # Subscription 门面
//	├── service.go            # Service 门面
//	├── client.go             # Client 门面
//	├── event.go              # 状态事件句柄
//	├── waitset.go            # WaitSet、GuardCondition、Waitables
//	├── options.go            # WithXxx 配置选项
//	├── fx.go                 # Fx 应用装配
//	└── errors.go             # 错误定义
//
// # 传输模式
//
// 默认模式 ws 经 WebSocket 连接 robomeshd 路由器进程，多进程
// 共享一个域；WithInprocTransport 切换为进程内路由，单进程内
// 多个 Context 互通，适合测试与单进程部署。
//
// # 版本
//
// 当前版本: v0.3.0
//
// 更多信息请访问: https://github.com/robomesh/go-robomesh
package robomesh
