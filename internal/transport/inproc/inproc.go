// Package inproc 实现进程内传输
//
// 直接挂接本进程的路由核心，没有序列化与网络开销，用于单进程
// 部署与测试。多个会话共享同一个 Broker 即可互通。
package inproc

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/robomesh/go-robomesh/internal/router"
	ifaces "github.com/robomesh/go-robomesh/pkg/interfaces"
)

var errUndeclared = errors.New("inproc: entity undeclared")

// Transport 进程内传输
type Transport struct {
	broker *router.Broker
}

var _ ifaces.Transport = (*Transport)(nil)

// New 创建挂接指定路由核心的进程内传输
func New(b *router.Broker) *Transport {
	return &Transport{broker: b}
}

// Open 打开会话
func (t *Transport) Open(_ context.Context) (ifaces.Session, error) {
	conn, err := t.broker.Connect()
	if err != nil {
		return nil, err
	}
	return &session{conn: conn}, nil
}

// ============================================================================
// session
// ============================================================================

type session struct {
	conn *router.Conn
}

var _ ifaces.Session = (*session)(nil)

func (s *session) ID() string { return s.conn.ID() }

func (s *session) DeclarePublisher(keyexpr string) (ifaces.Publisher, error) {
	if !s.conn.Alive() {
		return nil, router.ErrConnClosed
	}
	return &publisher{conn: s.conn, keyexpr: keyexpr}, nil
}

func (s *session) DeclareSubscriber(keyexpr string, handler ifaces.SampleHandler) (ifaces.Subscriber, error) {
	id, err := s.conn.Subscribe(keyexpr, handler)
	if err != nil {
		return nil, err
	}
	return &subscriber{conn: s.conn, keyexpr: keyexpr, id: id}, nil
}

func (s *session) DeclareLivelinessToken(keyexpr string) (ifaces.LivelinessToken, error) {
	if err := s.conn.DeclareToken(keyexpr); err != nil {
		return nil, err
	}
	return &token{conn: s.conn, keyexpr: keyexpr}, nil
}

func (s *session) SubscribeLiveliness(keyexpr string, history bool, handler ifaces.SampleHandler) (ifaces.Subscriber, error) {
	id, err := s.conn.SubscribeLiveliness(keyexpr, history, handler)
	if err != nil {
		return nil, err
	}
	return &subscriber{conn: s.conn, keyexpr: keyexpr, id: id}, nil
}

func (s *session) Close() error {
	return s.conn.Close()
}

// ============================================================================
// 实体句柄
// ============================================================================

type publisher struct {
	conn       *router.Conn
	keyexpr    string
	undeclared atomic.Bool
}

func (p *publisher) Keyexpr() string { return p.keyexpr }

func (p *publisher) Put(payload, attachment []byte) error {
	if p.undeclared.Load() {
		return errUndeclared
	}
	return p.conn.Put(p.keyexpr, payload, attachment)
}

func (p *publisher) Undeclare() error {
	p.undeclared.Store(true)
	return nil
}

type subscriber struct {
	conn       *router.Conn
	keyexpr    string
	id         int64
	undeclared atomic.Bool
}

func (s *subscriber) Keyexpr() string { return s.keyexpr }

func (s *subscriber) Undeclare() error {
	if s.undeclared.Swap(true) {
		return nil
	}
	s.conn.Unsubscribe(s.id)
	return nil
}

type token struct {
	conn       *router.Conn
	keyexpr    string
	undeclared atomic.Bool
}

func (t *token) Keyexpr() string { return t.keyexpr }

func (t *token) Undeclare() error {
	if t.undeclared.Swap(true) {
		return nil
	}
	t.conn.UndeclareToken(t.keyexpr)
	return nil
}
