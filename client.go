package robomesh

import (
	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Client
// ════════════════════════════════════════════════════════════════════════════

// Client 客户端句柄
//
// SendRequest 返回请求序列号，应答按到达顺序进入队列，应用
// 用应答信息里的序列号与发出的请求配对。
type Client struct {
	node *Node
	data *entity.ClientData
}

// ServiceName 返回服务名
func (c *Client) ServiceName() string { return c.data.ServiceName() }

// GID 返回客户端的全局唯一标识
func (c *Client) GID() types.GID { return c.data.Entity().GID() }

// SendRequest 发送一条请求
//
// 返回本次请求的序列号。应答到达后经 TakeResponse 取出，
// 其 RequestID.SequenceNumber 与返回值一致。
func (c *Client) SendRequest(payload []byte) (int64, error) {
	return c.data.SendRequest(payload)
}

// TakeResponse 取出队列中最早一条应答
//
// 队列为空时返回 (nil, false)。
func (c *Client) TakeResponse() (*types.ServiceMessage, bool) {
	return c.data.TakeResponse()
}

// SetOnNewResponse 注册新应答回调
//
// cb 为 nil 时撤销；注册时队列非空则按待取条数补发。
func (c *Client) SetOnNewResponse(cb func()) {
	c.data.SetDataCallback(cb)
}

// ServiceAvailable 返回图谱中是否有服务端在提供本服务
func (c *Client) ServiceAvailable() bool {
	return c.node.ctx.CountServices(c.data.ServiceName()) > 0
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 关闭客户端，幂等
//
// 关闭后未取出的应答随队列丢弃，在途请求的应答到达时被忽略。
func (c *Client) Shutdown() error {
	c.node.removeClient(c)
	return c.data.Shutdown()
}
