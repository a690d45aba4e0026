package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sova-cli/internal/protocol"

	"github.com/gorilla/websocket"
)

// fakeServer upgrades every request, records what the client sends and lets the test push
// raw frames back.
type fakeServer struct {
	srv    *httptest.Server
	recv   chan string
	conns  chan *websocket.Conn
	onConn func(*websocket.Conn)
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{recv: make(chan string, 64), conns: make(chan *websocket.Conn, 1)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fs.conns <- conn
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fs.recv <- string(b)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) addr() string {
	return strings.TrimPrefix(fs.srv.URL, "http://")
}

func (fs *fakeServer) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-fs.recv:
		if got != want {
			t.Fatalf("server received %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func (fs *fakeServer) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fs.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection")
		return nil
	}
}

func TestURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080/ws"},
		{in: " localhost:9 ", want: "ws://localhost:9/ws"},
		{in: "ws://host:1/custom", want: "ws://host:1/custom"},
		{in: "https://host", want: "wss://host/ws"},
		{in: "", wantErr: true},
		{in: "nohost", wantErr: true},
		{in: "ftp://host", wantErr: true},
	}
	for _, tc := range cases {
		got, err := URL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("URL(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("URL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("URL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClient_SendsAndReceives(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)

	got := make(chan protocol.ServerMessage, 8)
	c, err := Dial(context.Background(), Config{Addr: fs.addr(), Username: "me"}, func(m protocol.ServerMessage) {
		got <- m
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	fs.expect(t, `{"SetName":"me"}`)

	if err := c.Send(protocol.RemoveFrame{Line: 0, Frame: 2, Timing: protocol.Immediate()}); err != nil {
		t.Fatalf("send: %v", err)
	}
	fs.expect(t, `{"RemoveFrame":[0,2,"Immediate"]}`)

	conn := fs.conn(t)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"FrameRemoved":[0,2]}`)); err != nil {
		t.Fatalf("server write: %v", err)
	}
	// Garbage is skipped, the connection survives.
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"FrameRemoved":"nope"}`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`"TransportStarted"`))

	for _, want := range []protocol.ServerMessage{protocol.FrameRemoved{Line: 0, Frame: 2}, protocol.TransportStarted} {
		select {
		case m := <-got:
			if m != want {
				t.Fatalf("got %#v, want %#v", m, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %#v", want)
		}
	}
}

func TestClient_SendAfterCloseFails(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)

	c, err := Dial(context.Background(), Config{Addr: fs.addr()}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Send(protocol.GetScene); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestClient_CloseFlushesQueuedMessages(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)

	c, err := Dial(context.Background(), Config{Addr: fs.addr()}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := c.Send(protocol.Chat{Text: "hi"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if err := c.Send(protocol.TransportStart{Timing: protocol.AtBeat(8)}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for i := 0; i < 3; i++ {
		fs.expect(t, `{"Chat":"hi"}`)
	}
	fs.expect(t, `{"TransportStart":{"AtBeat":8}}`)
}

func TestClient_ServerHangupEndsClient(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)

	c, err := Dial(context.Background(), Config{Addr: fs.addr()}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := fs.conn(t)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	_ = conn.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client did not stop after server hangup")
	}
	if err := c.Send(protocol.GetClock); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestClient_PollsClockAndScene(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)

	c, err := Dial(context.Background(), Config{Addr: fs.addr(), PollInterval: 5 * time.Millisecond, SceneEvery: 2}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	fs.expect(t, `"GetClock"`)
	fs.expect(t, `"GetClock"`)
	fs.expect(t, `"GetScene"`)
}

func TestClient_ContextCancelCloses(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := Dial(ctx, Config{Addr: fs.addr()}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client did not stop after cancel")
	}
}

func TestDial_Unreachable(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	addr := fs.addr()
	fs.srv.Close()

	if _, err := Dial(context.Background(), Config{Addr: addr}, nil); err == nil {
		t.Fatalf("expected dial error")
	}
}
