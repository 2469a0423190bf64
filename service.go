package robomesh

import (
	"github.com/robomesh/go-robomesh/internal/core/entity"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Service
// ════════════════════════════════════════════════════════════════════════════

// Service 服务端句柄
//
// 请求进入有界队列，TakeRequest 取出后由应用处理，再以
// 请求携带的标识调用 SendResponse 送回对应客户端。
type Service struct {
	node *Node
	data *entity.ServiceData
}

// ServiceName 返回服务名
func (s *Service) ServiceName() string { return s.data.ServiceName() }

// GID 返回服务端的全局唯一标识
func (s *Service) GID() types.GID { return s.data.Entity().GID() }

// TakeRequest 取出队列中最早一条请求
//
// 队列为空时返回 (nil, false)。请求信息里的 RequestID 用于
// 应答时路由回发起方。
func (s *Service) TakeRequest() (*types.ServiceMessage, bool) {
	return s.data.TakeRequest()
}

// SendResponse 向指定请求送回应答
func (s *Service) SendResponse(id types.RequestID, payload []byte) error {
	return s.data.SendResponse(id, payload)
}

// SetOnNewRequest 注册新请求回调
//
// cb 为 nil 时撤销；注册时队列非空则按待取条数补发。
func (s *Service) SetOnNewRequest(cb func()) {
	s.data.SetDataCallback(cb)
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Shutdown 关闭服务端，幂等
func (s *Service) Shutdown() error {
	s.node.removeService(s)
	return s.data.Shutdown()
}
