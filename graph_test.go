package robomesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/internal/router"
	"github.com/robomesh/go-robomesh/internal/transport/inproc"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// TestGraphNodeNames 本端与远端节点都出现在图谱里
func TestGraphNodeNames(t *testing.T) {
	b := router.NewBroker()
	defer b.Close()

	rctx := newTestContext(t, WithTransport(inproc.New(b)))
	peer := newTestContext(t, WithTransport(inproc.New(b)))

	_, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	_, err = peer.CreateNode("/fleet", "lidar")
	require.NoError(t, err)

	hasNode := func(names []types.NodeName, name string) bool {
		for _, n := range names {
			if n.Name == name && n.Namespace == "/fleet" {
				return true
			}
		}
		return false
	}

	require.Eventually(t, func() bool {
		names := rctx.NodeNames()
		return hasNode(names, "camera") && hasNode(names, "lidar")
	}, 2*time.Second, 10*time.Millisecond)
}

// TestGraphTopicAndServiceNames 主题与服务的名字类型聚合
func TestGraphTopicAndServiceNames(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	_, err = node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = node.CreateService("/set_exposure", "camera_msgs/srv/SetExposure")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, tt := range rctx.TopicNamesAndTypes() {
			if tt.Name == "/image" {
				assert.Equal(t, []string{"sensor_msgs/msg/Image"}, tt.Types)
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, tt := range rctx.ServiceNamesAndTypes() {
			if tt.Name == "/set_exposure" {
				assert.Equal(t, []string{"camera_msgs/srv/SetExposure"}, tt.Types)
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// 服务不混入主题查询
	for _, tt := range rctx.TopicNamesAndTypes() {
		assert.NotEqual(t, "/set_exposure", tt.Name)
	}
}

// TestGraphCounts 各端点种类的计数查询
func TestGraphCounts(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	_, err = node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = node.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = node.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = node.CreateService("/calibrate", "camera_msgs/srv/Calibrate")
	require.NoError(t, err)
	_, err = node.CreateClient("/calibrate", "camera_msgs/srv/Calibrate")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rctx.CountPublishers("/image") == 2 &&
			rctx.CountSubscriptions("/image") == 1 &&
			rctx.CountServices("/calibrate") == 1 &&
			rctx.CountClients("/calibrate") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// 节点级便捷查询委托同一图谱
	assert.Equal(t, 2, node.CountPublishers("/image"))
	assert.Equal(t, 1, node.CountSubscriptions("/image"))
	assert.Zero(t, rctx.CountPublishers("/absent"))
}

// TestGraphEndpointInfo 端点信息包含节点归属与 QoS
func TestGraphEndpointInfo(t *testing.T) {
	rctx := newTestContext(t)

	node, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	pub, err := node.CreatePublisher("/image", "sensor_msgs/msg/Image",
		WithTypeHash("RIHS01_abc123"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		infos := rctx.PublishersInfoByTopic("/image")
		if len(infos) != 1 {
			return false
		}
		info := infos[0]
		assert.Equal(t, "camera", info.NodeName)
		assert.Equal(t, "/fleet", info.NodeNamespace)
		assert.Equal(t, "sensor_msgs/msg/Image", info.TopicType)
		assert.Equal(t, "RIHS01_abc123", info.TopicTypeHash)
		assert.Equal(t, types.EntityPublisher, info.EndpointKind)
		assert.Equal(t, pub.GID(), info.GID)
		assert.Equal(t, types.ReliabilityReliable, info.QoS.Reliability)
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, rctx.SubscriptionsInfoByTopic("/image"))
}

// TestGraphByNodeQueries 按节点过滤的端点查询
func TestGraphByNodeQueries(t *testing.T) {
	rctx := newTestContext(t)

	camera, err := rctx.CreateNode("/fleet", "camera")
	require.NoError(t, err)
	arm, err := rctx.CreateNode("/fleet", "arm")
	require.NoError(t, err)

	_, err = camera.CreatePublisher("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = arm.CreateSubscription("/image", "sensor_msgs/msg/Image")
	require.NoError(t, err)
	_, err = arm.CreateService("/set_pose", "arm_msgs/srv/SetPose")
	require.NoError(t, err)
	_, err = arm.CreateClient("/grip", "arm_msgs/srv/Grip")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pubs, err1 := rctx.PublisherNamesAndTypesByNode("camera", "/fleet")
		subs, err2 := rctx.SubscriptionNamesAndTypesByNode("arm", "/fleet")
		srvs, err3 := rctx.ServiceNamesAndTypesByNode("arm", "/fleet")
		clis, err4 := rctx.ClientNamesAndTypesByNode("arm", "/fleet")
		return err1 == nil && err2 == nil && err3 == nil && err4 == nil &&
			len(pubs) == 1 && len(subs) == 1 && len(srvs) == 1 && len(clis) == 1
	}, 2*time.Second, 10*time.Millisecond)

	pubs, err := rctx.PublisherNamesAndTypesByNode("camera", "/fleet")
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "/image", pubs[0].Name)

	// camera 节点没有订阅
	subs, err := rctx.SubscriptionNamesAndTypesByNode("camera", "/fleet")
	require.NoError(t, err)
	assert.Empty(t, subs)

	subs, err = rctx.SubscriptionNamesAndTypesByNode("arm", "/fleet")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "/image", subs[0].Name)

	srvs, err := rctx.ServiceNamesAndTypesByNode("arm", "/fleet")
	require.NoError(t, err)
	require.Len(t, srvs, 1)
	assert.Equal(t, "/set_pose", srvs[0].Name)

	clis, err := rctx.ClientNamesAndTypesByNode("arm", "/fleet")
	require.NoError(t, err)
	require.Len(t, clis, 1)
	assert.Equal(t, "/grip", clis[0].Name)
}

// TestGraphNodeNotFound 查询不存在的节点报 ErrNodeNotFound
func TestGraphNodeNotFound(t *testing.T) {
	rctx := newTestContext(t)

	_, err := rctx.PublisherNamesAndTypesByNode("ghost", "/fleet")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = rctx.SubscriptionNamesAndTypesByNode("ghost", "/fleet")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = rctx.ServiceNamesAndTypesByNode("ghost", "/fleet")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = rctx.ClientNamesAndTypesByNode("ghost", "/fleet")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

// TestGraphNodeDeparture 节点关闭后从图谱消失
func TestGraphNodeDeparture(t *testing.T) {
	b := router.NewBroker()
	defer b.Close()

	rctx := newTestContext(t, WithTransport(inproc.New(b)))
	peer := newTestContext(t, WithTransport(inproc.New(b)))

	peerNode, err := peer.CreateNode("/fleet", "transient")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, n := range rctx.NodeNames() {
			if n.Name == "transient" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, peerNode.Shutdown())

	require.Eventually(t, func() bool {
		for _, n := range rctx.NodeNames() {
			if n.Name == "transient" {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}
