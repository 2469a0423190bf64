package graph

import (
	"sort"

	"github.com/robomesh/go-robomesh/internal/core/liveliness"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ============================================================================
//                              图谱查询
// ============================================================================

// NodeNames 返回图中全部节点，按命名空间与名字排序
//
// 不同会话可以出现同名节点，结果不去重。
func (c *Cache) NodeNames() []types.NodeName {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]types.NodeName, 0, len(c.nodes))
	for _, info := range c.nodes {
		names = append(names, types.NodeName{
			Name:      info.Name,
			Namespace: info.Namespace,
			Enclave:   info.Enclave,
		})
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Namespace != names[j].Namespace {
			return names[i].Namespace < names[j].Namespace
		}
		return names[i].Name < names[j].Name
	})
	return names
}

// TopicNamesAndTypes 返回全部主题及其上出现过的类型
func (c *Cache) TopicNamesAndTypes() []types.TopicNameAndTypes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namesAndTypes(nil, c.pubs, c.subs)
}

// ServiceNamesAndTypes 返回全部服务及其类型
//
// 服务端与客户端任一存在即计入。
func (c *Cache) ServiceNamesAndTypes() []types.TopicNameAndTypes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namesAndTypes(nil, c.srvs, c.clis)
}

// CountPublishers 返回主题上的发布者数量
func (c *Cache) CountPublishers(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pubs[topic])
}

// CountSubscriptions 返回主题上的订阅者数量
func (c *Cache) CountSubscriptions(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[topic])
}

// CountServices 返回服务名下的服务端数量
func (c *Cache) CountServices(service string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.srvs[service])
}

// CountClients 返回服务名下的客户端数量
func (c *Cache) CountClients(service string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clis[service])
}

// PublishersInfoByTopic 返回主题上全部发布者的端点信息
func (c *Cache) PublishersInfoByTopic(topic string) []types.EndpointInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return endpointInfos(c.pubs[topic])
}

// SubscriptionsInfoByTopic 返回主题上全部订阅者的端点信息
func (c *Cache) SubscriptionsInfoByTopic(topic string) []types.EndpointInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return endpointInfos(c.subs[topic])
}

// PublisherNamesAndTypesByNode 返回指定节点的发布主题及类型
func (c *Cache) PublisherNamesAndTypesByNode(name, namespace string) []types.TopicNameAndTypes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namesAndTypes(nodeFilter(name, namespace), c.pubs)
}

// SubscriptionNamesAndTypesByNode 返回指定节点的订阅主题及类型
func (c *Cache) SubscriptionNamesAndTypesByNode(name, namespace string) []types.TopicNameAndTypes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namesAndTypes(nodeFilter(name, namespace), c.subs)
}

// ServiceNamesAndTypesByNode 返回指定节点提供的服务及类型
func (c *Cache) ServiceNamesAndTypesByNode(name, namespace string) []types.TopicNameAndTypes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namesAndTypes(nodeFilter(name, namespace), c.srvs)
}

// ClientNamesAndTypesByNode 返回指定节点使用的服务及类型
func (c *Cache) ClientNamesAndTypesByNode(name, namespace string) []types.TopicNameAndTypes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return namesAndTypes(nodeFilter(name, namespace), c.clis)
}

// ============================================================================
//                              查询辅助
// ============================================================================

func nodeFilter(name, namespace string) func(*liveliness.Entity) bool {
	return func(e *liveliness.Entity) bool {
		node := e.Node()
		return node.Name == name && node.Namespace == namespace
	}
}

// namesAndTypes 汇总若干端点表的主题名与类型名，持锁调用
//
// filter 为 nil 时不过滤。类型名按主题去重排序。
func namesAndTypes(filter func(*liveliness.Entity) bool,
	maps ...map[string]map[types.GID]*liveliness.Entity) []types.TopicNameAndTypes {

	byTopic := make(map[string]map[string]struct{})
	for _, m := range maps {
		for topic, byGID := range m {
			for _, e := range byGID {
				if filter != nil && !filter(e) {
					continue
				}
				info, _ := e.Topic()
				set, ok := byTopic[topic]
				if !ok {
					set = make(map[string]struct{})
					byTopic[topic] = set
				}
				set[info.Type] = struct{}{}
			}
		}
	}

	out := make([]types.TopicNameAndTypes, 0, len(byTopic))
	for topic, set := range byTopic {
		typeNames := make([]string, 0, len(set))
		for t := range set {
			typeNames = append(typeNames, t)
		}
		sort.Strings(typeNames)
		out = append(out, types.TopicNameAndTypes{Name: topic, Types: typeNames})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// endpointInfos 将端点表转换为查询结果，持锁调用
func endpointInfos(byGID map[types.GID]*liveliness.Entity) []types.EndpointInfo {
	out := make([]types.EndpointInfo, 0, len(byGID))
	for _, e := range byGID {
		node := e.Node()
		topic, _ := e.Topic()
		out = append(out, types.EndpointInfo{
			NodeName:      node.Name,
			NodeNamespace: node.Namespace,
			TopicType:     topic.Type,
			TopicTypeHash: topic.TypeHash,
			EndpointKind:  e.Kind(),
			GID:           e.GID(),
			QoS:           topic.QoS,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GID.String() < out[j].GID.String() })
	return out
}
