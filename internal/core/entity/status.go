package entity

import (
	"github.com/robomesh/go-robomesh/internal/core/events"
	"github.com/robomesh/go-robomesh/internal/core/waitset"
	"github.com/robomesh/go-robomesh/pkg/types"
)

// StatusSource 携带状态事件的端点
//
// 发布与订阅端点经由内嵌的事件管理器满足本接口，事件句柄据此
// 统一读取状态、注册回调与参与等待。
type StatusSource interface {
	TakeStatus(kind events.Kind) types.EventStatus
	SetCallback(kind events.Kind, cb events.Callback)
	AttachConditionIfNotChanged(kind events.Kind, c *waitset.Condition) bool
	DetachConditionAndCheckChanged(kind events.Kind) bool
}

var (
	_ StatusSource = (*PublisherData)(nil)
	_ StatusSource = (*SubscriptionData)(nil)
)
