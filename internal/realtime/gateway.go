package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-community-board/internal/metrics"
	logctx "github.com/pribylovaa/go-community-board/internal/pkg/log"
)

const (
	serverName = "board-service"

	maxFrameBytes = 64 << 10 // 64 KiB

	defaultSendQueue    = 256
	defaultWriteTimeout = 5 * time.Second
	pingTimeout         = 10 * time.Second
	maxPingFailures     = 3
)

// subprotocols — STOMP-over-WebSocket в порядке предпочтения.
var subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// supportedVersions — версии STOMP в порядке предпочтения.
var supportedVersions = []string{"1.2", "1.1", "1.0"}

// Options — параметры WebSocket-эндпоинта.
type Options struct {
	// AllowedOrigins — шаблоны хостов для кросс-доменного апгрейда ("localhost:5500", "*.example.com").
	AllowedOrigins []string
	SendQueue      int
	WriteTimeout   time.Duration
	// Heartbeat — период WebSocket ping; 0 отключает.
	Heartbeat time.Duration
}

// Gateway — STOMP-over-WebSocket эндпоинт.
//
// Каждое WebSocket-сообщение несёт один или несколько STOMP-кадров.
// Первый кадр обязан быть CONNECT/STOMP и проходит через HandshakeGate;
// дальше соединение работает с привязанной личностью.
type Gateway struct {
	gate    *HandshakeGate
	hub     *Hub
	metrics *metrics.Metrics

	originPatterns []string
	sendQueue      int
	writeTimeout   time.Duration
	heartbeat      time.Duration

	now func() time.Time
}

func NewGateway(gate *HandshakeGate, hub *Hub, m *metrics.Metrics, opts Options) *Gateway {
	if hub == nil {
		hub = NewHub()
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = defaultSendQueue
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	return &Gateway{
		gate:           gate,
		hub:            hub,
		metrics:        m,
		originPatterns: opts.AllowedOrigins,
		sendQueue:      opts.SendQueue,
		writeTimeout:   opts.WriteTimeout,
		heartbeat:      opts.Heartbeat,
		now:            time.Now,
	}
}

// Hub возвращает брокер подписок шлюза.
func (g *Gateway) Hub() *Hub { return g.hub }

// verdict — решение обработчика кадра о судьбе соединения.
type verdict struct {
	close  bool
	code   websocket.StatusCode
	reason string
}

var keepOpen = verdict{}

func closeWith(code websocket.StatusCode, reason string) verdict {
	return verdict{close: true, code: code, reason: reason}
}

// ServeHTTP апгрейдит запрос и обслуживает соединение до закрытия.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "realtime.gateway.ServeHTTP"

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   subprotocols,
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		logctx.From(r.Context()).Info("ws_accept_failed",
			slog.String("op", op),
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("err", err.Error()),
		)
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	c := NewConn(uuid.NewString(), g.sendQueue)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = logctx.With(ctx, slog.String("conn_id", c.ID()))
	lg := logctx.From(ctx)

	g.metrics.ConnOpened()
	defer g.metrics.ConnClosed()

	lg.Info("ws_connection_opened",
		slog.String("op", op),
		slog.String("subprotocol", ws.Subprotocol()),
	)

	writerDone := make(chan struct{})
	go g.writeLoop(ctx, cancel, ws, c, writerDone)

	if g.heartbeat > 0 {
		go g.pingLoop(ctx, cancel, ws, c)
	}

	v := g.readLoop(ctx, ws, c)

	g.hub.Drop(c)
	c.Close()
	<-writerDone

	_ = ws.Close(v.code, v.reason)

	lg.Info("ws_connection_closed",
		slog.String("op", op),
		slog.Int("code", int(v.code)),
		slog.String("reason", v.reason),
	)
}

func (g *Gateway) readLoop(ctx context.Context, ws *websocket.Conn, c *Conn) verdict {
	const op = "realtime.gateway.readLoop"

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			switch {
			case websocket.CloseStatus(err) != -1:
				return closeWith(websocket.StatusNormalClosure, "peer closed")
			case ctx.Err() != nil:
				return closeWith(websocket.StatusGoingAway, "shutdown")
			default:
				logctx.From(ctx).Info("ws_read_failed",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
				return closeWith(websocket.StatusGoingAway, "read failed")
			}
		}

		frames, err := decodeFrames(data)
		if err != nil {
			return g.fatal(ctx, c, "malformed frame", "", websocket.StatusProtocolError)
		}

		for _, f := range frames {
			if v := g.handle(ctx, c, f); v.close {
				return v
			}
		}
	}
}

// writeLoop — единственный писатель кадров в сокет.
// После c.Close дописывает то, что уже в очереди (например, ERROR перед закрытием).
func (g *Gateway) writeLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, c *Conn, done chan<- struct{}) {
	const op = "realtime.gateway.writeLoop"

	defer close(done)

	write := func(f *frame.Frame) bool {
		if err := g.write(ctx, ws, f); err != nil {
			logctx.From(ctx).Info("ws_write_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			cancel()
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.send:
			if !write(f) {
				return
			}
		case <-c.Done():
			for {
				select {
				case f := <-c.send:
					if !write(f) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) write(ctx context.Context, ws *websocket.Conn, f *frame.Frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()

	return ws.Write(wctx, websocket.MessageText, data)
}

func (g *Gateway) pingLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, c *Conn) {
	const op = "realtime.gateway.pingLoop"

	t := time.NewTicker(g.heartbeat)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := ws.Ping(pctx)
			pcancel()

			if err == nil {
				failures = 0
				continue
			}

			failures++
			logctx.From(ctx).Info("ws_ping_failed",
				slog.String("op", op),
				slog.Int("failures", failures),
				slog.String("err", err.Error()),
			)
			if failures >= maxPingFailures {
				cancel()
				return
			}
		}
	}
}

// handle маршрутизирует один входящий кадр.
func (g *Gateway) handle(ctx context.Context, c *Conn, f *frame.Frame) verdict {
	if f.Command == frame.CONNECT || f.Command == frame.STOMP {
		return g.onConnect(ctx, c, f)
	}

	if !c.isConnected() {
		return g.fatal(ctx, c, "expected CONNECT frame", "", websocket.StatusPolicyViolation)
	}

	// Дальше личность читается из c, токен не проверяется.
	receipt := f.Header.Get(frame.Receipt)

	switch f.Command {
	case frame.SUBSCRIBE:
		id, dest := f.Header.Get(frame.Id), f.Header.Get(frame.Destination)
		if id == "" || !subscribable(dest) {
			return g.fatal(ctx, c, "invalid subscription", receipt, websocket.StatusPolicyViolation)
		}
		g.hub.Subscribe(c, id, dest)

	case frame.UNSUBSCRIBE:
		id := f.Header.Get(frame.Id)
		if id == "" {
			return g.fatal(ctx, c, "missing subscription id", receipt, websocket.StatusPolicyViolation)
		}
		g.hub.Unsubscribe(c, id)

	case frame.SEND:
		if v := g.onSend(ctx, c, f, receipt); v.close {
			return v
		}

	case frame.DISCONNECT:
		if receipt != "" {
			c.enqueue(receiptFrame(receipt))
		}
		return closeWith(websocket.StatusNormalClosure, "disconnect")

	default:
		return g.fatal(ctx, c, "unsupported command "+f.Command, receipt, websocket.StatusPolicyViolation)
	}

	if receipt != "" {
		c.enqueue(receiptFrame(receipt))
	}

	return keepOpen
}

func (g *Gateway) onConnect(ctx context.Context, c *Conn, f *frame.Frame) verdict {
	const op = "realtime.gateway.onConnect"

	if c.isConnected() {
		return g.fatal(ctx, c, "already connected", "", websocket.StatusPolicyViolation)
	}

	out, err := g.gate.Intercept(ctx, c, f)
	if err != nil {
		logctx.From(ctx).Info("stomp_connect_refused",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		// Причина наружу не раскрывается.
		return g.fatal(ctx, c, "unauthenticated", "", websocket.StatusPolicyViolation)
	}

	version, ok := negotiateVersion(out.Header.Get(frame.AcceptVersion))
	if !ok {
		return g.fatal(ctx, c, "unsupported protocol version", "", websocket.StatusProtocolError)
	}

	c.markConnected()

	connected := frame.New(frame.CONNECTED,
		frame.Version, version,
		frame.HeartBeat, "0,0",
		frame.Server, serverName,
		frame.Session, c.ID(),
	)
	if p, ok := c.Principal(); ok {
		connected.Header.Set("user-name", p.DisplayName)
	}
	c.enqueue(connected)

	return keepOpen
}

func (g *Gateway) onSend(ctx context.Context, c *Conn, f *frame.Frame, receipt string) verdict {
	const op = "realtime.gateway.onSend"

	dest := f.Header.Get(frame.Destination)
	if dest != ChatSendDestination {
		return g.fatal(ctx, c, "unknown destination", receipt, websocket.StatusPolicyViolation)
	}

	p, ok := c.Principal()
	if !ok {
		return g.fatal(ctx, c, "unauthenticated", receipt, websocket.StatusPolicyViolation)
	}

	in, err := parseChatSend(f.Body)
	if err != nil {
		return g.fatal(ctx, c, err.Error(), receipt, websocket.StatusPolicyViolation)
	}

	body, err := json.Marshal(newChatMessage(p, in, g.now()))
	if err != nil {
		return g.fatal(ctx, c, "internal error", receipt, websocket.StatusInternalError)
	}

	topic := RoomTopic(in.RoomID)
	delivered, dropped := g.hub.Publish(topic, "application/json", body)

	logctx.From(ctx).Debug("chat_message_published",
		slog.String("op", op),
		slog.String("topic", topic),
		slog.Int("delivered", delivered),
		slog.Int("dropped", dropped),
	)

	return keepOpen
}

// fatal ставит ERROR в очередь и закрывает соединение после его отправки.
func (g *Gateway) fatal(ctx context.Context, c *Conn, message, receipt string, code websocket.StatusCode) verdict {
	logctx.From(ctx).Info("stomp_error",
		slog.String("message", message),
	)
	c.enqueue(errorFrame(message, receipt))

	return closeWith(code, message)
}

// negotiateVersion выбирает старшую общую версию из accept-version.
// Пустой заголовок означает STOMP 1.0.
func negotiateVersion(accept string) (string, bool) {
	if strings.TrimSpace(accept) == "" {
		return "1.0", true
	}

	offered := make(map[string]struct{})
	for _, v := range strings.Split(accept, ",") {
		offered[strings.TrimSpace(v)] = struct{}{}
	}

	for _, v := range supportedVersions {
		if _, ok := offered[v]; ok {
			return v, true
		}
	}

	return "", false
}
