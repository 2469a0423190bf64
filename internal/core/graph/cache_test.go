package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/internal/core/qos"
	"github.com/robomesh/go-robomesh/pkg/types"
)

func nodeInfo(ns, name string) liveliness.NodeInfo {
	return liveliness.NodeInfo{DomainID: 0, Namespace: ns, Name: name}
}

func imageTopic() liveliness.TopicInfo {
	return liveliness.TopicInfo{
		Name:     "/sensors/image",
		Type:     "sensor_msgs/msg/Image",
		TypeHash: "RIHS01_img",
		QoS:      qos.Default(),
	}
}

func mkEndpoint(t *testing.T, session string, nid, eid int64, kind types.EntityKind,
	node liveliness.NodeInfo, topic liveliness.TopicInfo) *liveliness.Entity {
	t.Helper()
	e, err := liveliness.NewEndpointEntity(session, nid, eid, kind, node, topic)
	require.NoError(t, err)
	return e
}

func mkNode(t *testing.T, session string, nid int64, node liveliness.NodeInfo) *liveliness.Entity {
	t.Helper()
	e, err := liveliness.NewNodeEntity(session, nid, node)
	require.NoError(t, err)
	return e
}

// TestNodeTokens 节点令牌的出现与消失反映在节点列表中
func TestNodeTokens(t *testing.T) {
	c := NewCache(0, nil)

	a := mkNode(t, "sess-a", 1, nodeInfo("/fleet", "alpha"))
	b := mkNode(t, "sess-b", 1, nodeInfo("/fleet", "beta"))
	c.ParsePut(a.Keyexpr())
	c.ParsePut(b.Keyexpr())

	names := c.NodeNames()
	require.Len(t, names, 2)
	assert.Equal(t, "alpha", names[0].Name)
	assert.Equal(t, "beta", names[1].Name)

	c.ParseDel(a.Keyexpr())
	names = c.NodeNames()
	require.Len(t, names, 1)
	assert.Equal(t, "beta", names[0].Name)
}

// TestEndpointImpliesNode 端点令牌先到时补出节点记录
func TestEndpointImpliesNode(t *testing.T) {
	c := NewCache(0, nil)

	pub := mkEndpoint(t, "sess-a", 1, 2, types.EntityPublisher, nodeInfo("/", "cam"), imageTopic())
	c.ParsePut(pub.Keyexpr())

	names := c.NodeNames()
	require.Len(t, names, 1)
	assert.Equal(t, "cam", names[0].Name)
}

// TestMatchedEvents 对端出现与消失驱动匹配事件
func TestMatchedEvents(t *testing.T) {
	c := NewCache(0, nil)

	sub := mkEndpoint(t, "local", 1, 2, types.EntitySubscription, nodeInfo("/", "viewer"), imageTopic())
	mgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, mgr)
	c.ParsePut(sub.Keyexpr())

	// 远端发布者出现
	pub := mkEndpoint(t, "remote", 1, 2, types.EntityPublisher, nodeInfo("/", "cam"), imageTopic())
	c.ParsePut(pub.Keyexpr())

	st := mgr.TakeStatus(events.KindSubscriptionMatched)
	assert.Equal(t, uint64(1), st.TotalCount)
	assert.Equal(t, uint64(1), st.CurrentCount)
	assert.True(t, st.Changed)

	// 远端发布者消失
	c.ParseDel(pub.Keyexpr())
	st = mgr.TakeStatus(events.KindSubscriptionMatched)
	assert.Equal(t, uint64(2), st.TotalCount)
	assert.Equal(t, uint64(0), st.CurrentCount)
}

// TestInitialMatchOnOwnToken 本地端点令牌回环时补齐与既有对端的匹配
func TestInitialMatchOnOwnToken(t *testing.T) {
	c := NewCache(0, nil)

	// 两个远端发布者先入图
	for eid := int64(1); eid <= 2; eid++ {
		pub := mkEndpoint(t, "remote", 1, eid, types.EntityPublisher, nodeInfo("/", "cam"), imageTopic())
		c.ParsePut(pub.Keyexpr())
	}

	sub := mkEndpoint(t, "local", 1, 2, types.EntitySubscription, nodeInfo("/", "viewer"), imageTopic())
	mgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, mgr)
	c.ParsePut(sub.Keyexpr())

	st := mgr.TakeStatus(events.KindSubscriptionMatched)
	assert.Equal(t, uint64(2), st.TotalCount)
	assert.Equal(t, uint64(2), st.CurrentCount)
}

// TestBothSidesLocal 同会话的发布订阅互相匹配
func TestBothSidesLocal(t *testing.T) {
	c := NewCache(0, nil)

	pub := mkEndpoint(t, "local", 1, 2, types.EntityPublisher, nodeInfo("/", "talker"), imageTopic())
	pubMgr := events.NewManager()
	c.RegisterLocalEndpoint(pub, pubMgr)
	c.ParsePut(pub.Keyexpr())

	sub := mkEndpoint(t, "local", 1, 3, types.EntitySubscription, nodeInfo("/", "listener"), imageTopic())
	subMgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, subMgr)
	c.ParsePut(sub.Keyexpr())

	assert.Equal(t, uint64(1), pubMgr.TakeStatus(events.KindPublicationMatched).CurrentCount)
	assert.Equal(t, uint64(1), subMgr.TakeStatus(events.KindSubscriptionMatched).CurrentCount)
}

// TestQoSWarningEvents 持久性组合触发两侧的 QoS 事件
func TestQoSWarningEvents(t *testing.T) {
	c := NewCache(0, nil)

	volatileTopic := imageTopic()
	volatileTopic.QoS = qos.Adapt(types.QoSProfile{Durability: types.DurabilityVolatile})

	sub := mkEndpoint(t, "local", 1, 2, types.EntitySubscription, nodeInfo("/", "viewer"), volatileTopic)
	subMgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, subMgr)
	c.ParsePut(sub.Keyexpr())

	pub := mkEndpoint(t, "local", 1, 3, types.EntityPublisher, nodeInfo("/", "cam"), imageTopic())
	pubMgr := events.NewManager()
	c.RegisterLocalEndpoint(pub, pubMgr)
	c.ParsePut(pub.Keyexpr())

	subSt := subMgr.TakeStatus(events.KindRequestedQoSIncompatible)
	assert.Equal(t, uint64(1), subSt.TotalCount)
	assert.NotEmpty(t, subSt.Data)

	pubSt := pubMgr.TakeStatus(events.KindOfferedQoSIncompatible)
	assert.Equal(t, uint64(1), pubSt.TotalCount)
	assert.NotEmpty(t, pubSt.Data)

	// 匹配事件照常发生
	assert.Equal(t, uint64(1), subMgr.TakeStatus(events.KindSubscriptionMatched).CurrentCount)
}

// TestTypeMismatchEvents 同名主题不同类型不匹配，报类型事件
func TestTypeMismatchEvents(t *testing.T) {
	c := NewCache(0, nil)

	sub := mkEndpoint(t, "local", 1, 2, types.EntitySubscription, nodeInfo("/", "viewer"), imageTopic())
	subMgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, subMgr)
	c.ParsePut(sub.Keyexpr())

	otherType := imageTopic()
	otherType.Type = "sensor_msgs/msg/CompressedImage"
	otherType.TypeHash = "RIHS01_cimg"
	pub := mkEndpoint(t, "remote", 1, 2, types.EntityPublisher, nodeInfo("/", "cam"), otherType)
	c.ParsePut(pub.Keyexpr())

	st := subMgr.TakeStatus(events.KindSubscriptionIncompatibleType)
	assert.Equal(t, uint64(1), st.TotalCount)
	assert.Contains(t, string(st.Data), "CompressedImage")

	assert.Equal(t, uint64(0), subMgr.TakeStatus(events.KindSubscriptionMatched).TotalCount)
}

// TestDuplicatePutIgnored 同一令牌重复送达只计一次
func TestDuplicatePutIgnored(t *testing.T) {
	c := NewCache(0, nil)

	sub := mkEndpoint(t, "local", 1, 2, types.EntitySubscription, nodeInfo("/", "viewer"), imageTopic())
	mgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, mgr)
	c.ParsePut(sub.Keyexpr())

	pub := mkEndpoint(t, "remote", 1, 2, types.EntityPublisher, nodeInfo("/", "cam"), imageTopic())
	c.ParsePut(pub.Keyexpr())
	c.ParsePut(pub.Keyexpr())

	st := mgr.TakeStatus(events.KindSubscriptionMatched)
	assert.Equal(t, uint64(1), st.TotalCount)
	assert.Equal(t, uint64(1), st.CurrentCount)
	assert.Equal(t, 1, c.CountPublishers("/sensors/image"))
}

// TestNotifyOnEveryChange 每次图谱变更都发出通知
func TestNotifyOnEveryChange(t *testing.T) {
	var notified int
	c := NewCache(0, func() { notified++ })

	node := mkNode(t, "s", 1, nodeInfo("/", "n"))
	c.ParsePut(node.Keyexpr())
	c.ParseDel(node.Keyexpr())
	assert.Equal(t, 2, notified)

	// 解析失败的令牌不通知
	c.ParsePut("garbage")
	assert.Equal(t, 2, notified)
}

// TestUnregisteredEndpointSilent 注销钩子后不再产生事件
func TestUnregisteredEndpointSilent(t *testing.T) {
	c := NewCache(0, nil)

	sub := mkEndpoint(t, "local", 1, 2, types.EntitySubscription, nodeInfo("/", "viewer"), imageTopic())
	mgr := events.NewManager()
	c.RegisterLocalEndpoint(sub, mgr)
	c.ParsePut(sub.Keyexpr())
	c.UnregisterLocalEndpoint(sub.GID())

	pub := mkEndpoint(t, "remote", 1, 2, types.EntityPublisher, nodeInfo("/", "cam"), imageTopic())
	c.ParsePut(pub.Keyexpr())

	st := mgr.TakeStatus(events.KindSubscriptionMatched)
	assert.Equal(t, uint64(0), st.TotalCount)
}
