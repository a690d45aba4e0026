// Package client keeps a websocket connection to the scene server.
//
// Sending is fire-and-forget: Send encodes and queues the message and returns at once.
// Inbound messages are decoded and handed to a callback from the reader goroutine.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"sova-cli/internal/protocol"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

var (
	ErrClosed = errors.New("client: connection closed")
	// ErrBackpressure means the outbound queue is full; the message was dropped.
	ErrBackpressure = errors.New("client: send queue full")
)

const (
	DefaultPath       = "/ws"
	defaultQueue      = 256
	writeWait         = 10 * time.Second
	maxMessageSize    = 8 << 20
	defaultSceneEvery = 5
)

type Config struct {
	// Addr is host:port, or a full ws:// or wss:// URL.
	Addr     string
	Username string
	// PollInterval is the GetClock cadence; zero disables polling.
	PollInterval time.Duration
	// SceneEvery requests the scene on every n-th poll tick.
	SceneEvery int
	QueueSize  int
	Dialer     *websocket.Dialer
}

// Handler receives every decoded server message, on the reader goroutine.
type Handler func(protocol.ServerMessage)

type Client struct {
	conn   *websocket.Conn
	out    chan []byte
	handle Handler
	cfg    Config

	group  *errgroup.Group
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// URL turns a configured server address into a websocket URL.
func URL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("client: missing server address")
	}
	if !strings.Contains(addr, "://") {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return "", fmt.Errorf("client: server address %q: %w", addr, err)
		}
		return "ws://" + addr + DefaultPath, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("client: server address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	return u.String(), nil
}

// Dial connects and starts the reader, writer and poller goroutines. They stop when ctx
// is cancelled, Close is called or the connection fails; Wait returns the first error.
func Dial(ctx context.Context, cfg Config, handle Handler) (*Client, error) {
	u, err := URL(cfg.Addr)
	if err != nil {
		return nil, err
	}
	d := cfg.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	conn, _, err := d.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", u, err)
	}
	conn.SetReadLimit(maxMessageSize)
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueue
	}
	if cfg.SceneEvery <= 0 {
		cfg.SceneEvery = defaultSceneEvery
	}
	if handle == nil {
		handle = func(protocol.ServerMessage) {}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	c := &Client{
		conn:   conn,
		out:    make(chan []byte, cfg.QueueSize),
		handle: handle,
		cfg:    cfg,
		group:  g,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	glog.Infof("connected to %s", u)

	if cfg.Username != "" {
		_ = c.Send(protocol.SetName{Name: cfg.Username})
	}

	g.Go(func() error { return c.readPump() })
	g.Go(func() error { return c.writePump(gctx) })
	if cfg.PollInterval > 0 {
		g.Go(func() error { return c.poll(gctx) })
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-ctx.Done():
		}
		c.markClosed()
		_ = conn.Close()
		return nil
	})
	go func() {
		err := g.Wait()
		if err != nil && !errors.Is(err, ErrClosed) {
			glog.Warningf("connection ended: %v", err)
		}
		close(c.done)
	}()
	return c, nil
}

// Send queues msg for the writer. It never blocks.
func (c *Client) Send(msg protocol.ClientMessage) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.out <- b:
		glog.V(3).Infof("-> %s", b)
		return nil
	default:
		glog.Warningf("dropping %s: send queue full", msg.Variant())
		return ErrBackpressure
	}
}

// Close flushes the queued messages, sends a close frame and stops every goroutine.
func (c *Client) Close() error {
	c.markClosed()
	select {
	case <-c.done:
	case <-time.After(writeWait):
		c.cancel()
		<-c.done
	}
	return nil
}

// Done is closed once every goroutine has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// Wait blocks until the connection ends and returns why.
func (c *Client) Wait() error {
	<-c.done
	err := c.group.Wait()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// markClosed refuses further sends and closes the queue, which tells the writer to drain
// it and say goodbye.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *Client) readPump() error {
	defer c.cancel()
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.isClosed() {
				return ErrClosed
			}
			return fmt.Errorf("client: read: %w", err)
		}
		msg, err := protocol.Decode(b)
		if err != nil {
			glog.Warningf("client: %v", err)
			continue
		}
		glog.V(3).Infof("<- %s", msg.ServerVariant())
		c.handle(msg)
	}
}

func (c *Client) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ErrClosed
		case b, ok := <-c.out:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return ErrClosed
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.cancel()
				return fmt.Errorf("client: write: %w", err)
			}
		}
	}
}

// poll requests the clock every tick and the scene every SceneEvery ticks.
func (c *Client) poll(ctx context.Context) error {
	t := time.NewTicker(c.cfg.PollInterval)
	defer t.Stop()
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			tick++
			if err := c.Send(protocol.GetClock); errors.Is(err, ErrClosed) {
				return nil
			}
			if tick%c.cfg.SceneEvery == 0 {
				_ = c.Send(protocol.GetScene)
			}
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
