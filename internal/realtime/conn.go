package realtime

import (
	"errors"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/pribylovaa/go-community-board/internal/models"
)

// ErrAlreadyBound — личность соединения уже установлена и не меняется.
var ErrAlreadyBound = errors.New("realtime: connection identity already bound")

// Conn — состояние одного STOMP-соединения.
//
// Личность привязывается один раз кадром CONNECT и живёт до закрытия
// соединения; последующие кадры читают её через Principal без повторной
// проверки токена.
//
// send не закрывается: рассылка из Hub идёт конкурентно, закрытие
// сигнализируется через done.
type Conn struct {
	id   string
	send chan *frame.Frame

	done      chan struct{}
	closeOnce sync.Once

	mu        sync.RWMutex
	principal models.Principal
	bound     bool
	connected bool
}

// NewConn создаёт соединение с ограниченной очередью исходящих кадров.
func NewConn(id string, sendQueue int) *Conn {
	if sendQueue <= 0 {
		sendQueue = 64
	}

	return &Conn{
		id:   id,
		send: make(chan *frame.Frame, sendQueue),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Bind привязывает участника к соединению. Повторный вызов — ErrAlreadyBound.
func (c *Conn) Bind(p models.Principal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound {
		return ErrAlreadyBound
	}

	c.principal = p
	c.bound = true

	return nil
}

// Principal возвращает привязанного участника; ok=false для анонимного соединения.
func (c *Conn) Principal() (models.Principal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.principal, c.bound
}

// markConnected отмечает принятый CONNECT; false, если он уже был.
func (c *Conn) markConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return false
	}
	c.connected = true

	return true
}

func (c *Conn) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected
}

// Done закрывается при завершении соединения.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close сигнализирует горутинам соединения остановиться (идемпотентно).
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue кладёт кадр в очередь без блокировки.
// false — соединение закрыто или очередь переполнена.
func (c *Conn) enqueue(f *frame.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}
