package liveliness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robomesh/go-robomesh/internal/core/qos"
	"github.com/robomesh/go-robomesh/pkg/types"
)

func testNodeInfo() NodeInfo {
	return NodeInfo{
		DomainID:  7,
		Namespace: "/fleet/alpha",
		Name:      "camera_driver",
		Enclave:   "",
	}
}

func testTopicInfo() TopicInfo {
	return TopicInfo{
		Name:     "/sensors/image",
		Type:     "sensor_msgs/msg/Image",
		TypeHash: "RIHS01_abc123",
		QoS:      qos.Default(),
	}
}

// TestNodeEntityRoundTrip 节点令牌生成后解析还原全部字段
func TestNodeEntityRoundTrip(t *testing.T) {
	e, err := NewNodeEntity("sess-1", 3, testNodeInfo())
	require.NoError(t, err)

	assert.Equal(t, types.EntityNode, e.Kind())
	assert.Equal(t, int64(3), e.NodeID())
	assert.Equal(t, int64(3), e.EntityID())
	assert.True(t, strings.HasPrefix(e.Keyexpr(), AdminSpace+"/7/sess-1/"))

	parsed, err := ParseKeyexpr(e.Keyexpr())
	require.NoError(t, err)
	assert.Equal(t, e.Keyexpr(), parsed.Keyexpr())
	assert.Equal(t, e.Node(), parsed.Node())
	assert.Equal(t, e.GID(), parsed.GID())

	_, hasTopic := parsed.Topic()
	assert.False(t, hasTopic)
}

// TestEndpointEntityRoundTrip 端点令牌携带主题信息与 QoS
func TestEndpointEntityRoundTrip(t *testing.T) {
	e, err := NewEndpointEntity("sess-1", 3, 11, types.EntityPublisher, testNodeInfo(), testTopicInfo())
	require.NoError(t, err)

	parsed, err := ParseKeyexpr(e.Keyexpr())
	require.NoError(t, err)

	assert.Equal(t, types.EntityPublisher, parsed.Kind())
	assert.Equal(t, int64(3), parsed.NodeID())
	assert.Equal(t, int64(11), parsed.EntityID())
	assert.Equal(t, "sess-1", parsed.SessionID())

	topic, ok := parsed.Topic()
	require.True(t, ok)
	assert.Equal(t, testTopicInfo(), topic)
	assert.Equal(t, e.GID(), parsed.GID())
}

// TestEndpointKinds 四种端点种类都能往返
func TestEndpointKinds(t *testing.T) {
	kinds := []types.EntityKind{
		types.EntityPublisher,
		types.EntitySubscription,
		types.EntityService,
		types.EntityClient,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			e, err := NewEndpointEntity("s", 1, 2, kind, testNodeInfo(), testTopicInfo())
			require.NoError(t, err)

			parsed, err := ParseKeyexpr(e.Keyexpr())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed.Kind())
		})
	}
}

// TestGIDDeterministic 同一键表达式在两端算出同一 GID
func TestGIDDeterministic(t *testing.T) {
	a, err := NewNodeEntity("sess-1", 3, testNodeInfo())
	require.NoError(t, err)
	b, err := NewNodeEntity("sess-1", 3, testNodeInfo())
	require.NoError(t, err)

	assert.Equal(t, a.GID(), b.GID())
	assert.False(t, a.GID().IsEmpty())

	// 不同实体序号产生不同 GID
	c, err := NewNodeEntity("sess-1", 4, testNodeInfo())
	require.NoError(t, err)
	assert.NotEqual(t, a.GID(), c.GID())
}

// TestEntityValidation 非法构造参数逐一报错
func TestEntityValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Entity, error)
	}{
		{"empty_session", func() (*Entity, error) {
			return NewNodeEntity("", 1, testNodeInfo())
		}},
		{"slash_in_session", func() (*Entity, error) {
			return NewNodeEntity("a/b", 1, testNodeInfo())
		}},
		{"slash_in_node_name", func() (*Entity, error) {
			info := testNodeInfo()
			info.Name = "bad/name"
			return NewNodeEntity("s", 1, info)
		}},
		{"relative_namespace", func() (*Entity, error) {
			info := testNodeInfo()
			info.Namespace = "relative"
			return NewNodeEntity("s", 1, info)
		}},
		{"node_kind_as_endpoint", func() (*Entity, error) {
			return NewEndpointEntity("s", 1, 2, types.EntityNode, testNodeInfo(), testTopicInfo())
		}},
		{"endpoint_without_topic", func() (*Entity, error) {
			return NewEndpointEntity("s", 1, 2, types.EntityPublisher, testNodeInfo(), TopicInfo{})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.Error(t, err)
		})
	}
}

// TestEmptyNamespaceDefaultsToRoot 空命名空间归一化为根
func TestEmptyNamespaceDefaultsToRoot(t *testing.T) {
	info := testNodeInfo()
	info.Namespace = ""

	e, err := NewNodeEntity("s", 1, info)
	require.NoError(t, err)
	assert.Equal(t, "/", e.Node().Namespace)

	parsed, err := ParseKeyexpr(e.Keyexpr())
	require.NoError(t, err)
	assert.Equal(t, "/", parsed.Node().Namespace)
}
