package cli

import (
	"context"

	"sova-cli/internal/client"
	"sova-cli/internal/protocol"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

// session is one short-lived connection used by a scriptable command.
type session struct {
	server string
	conn   *client.Client
	inbox  <-chan protocol.ServerMessage
	hello  protocol.Hello
}

// await returns the first inbound message accepted by match, skipping the rest.
func (s *session) await(ctx context.Context, what string, match func(protocol.ServerMessage) bool) (protocol.ServerMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, timeoutError{server: s.server, waiting: what}
		case <-s.conn.Done():
			// A refusal arrives just before the hangup; look at what is already queued.
			for len(s.inbox) > 0 {
				if m, ok, err := s.accept(<-s.inbox, what, match); ok || err != nil {
					return m, err
				}
			}
			if err := s.conn.Wait(); err != nil {
				return nil, err
			}
			return nil, client.ErrClosed
		case m := <-s.inbox:
			if m, ok, err := s.accept(m, what, match); ok || err != nil {
				return m, err
			}
		}
	}
}

func (s *session) accept(m protocol.ServerMessage, what string, match func(protocol.ServerMessage) bool) (protocol.ServerMessage, bool, error) {
	if r, ok := m.(protocol.ConnectionRefused); ok {
		return nil, false, refusedError{server: s.server, reason: r.Reason}
	}
	if match(m) {
		return m, true, nil
	}
	glog.V(2).Infof("skipping %s while waiting for %s", m.ServerVariant(), what)
	return nil, false, nil
}

// withSession dials the configured server, waits for its Hello and runs fn. Messages fn
// sends are flushed before the connection closes. The whole exchange is bounded by
// --timeout.
func withSession(cmd *cobra.Command, app *App, fn func(ctx context.Context, s *session) error) error {
	_, cfg, err := loadConfig(app)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), app.Timeout)
	defer cancel()

	inbox := make(chan protocol.ServerMessage, 64)
	stop := make(chan struct{})
	conn, err := client.Dial(ctx, client.Config{Addr: cfg.ServerAddr(), Username: cfg.Username}, func(m protocol.ServerMessage) {
		select {
		case inbox <- m:
		case <-stop:
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		close(stop)
		_ = conn.Close()
	}()

	s := &session{server: cfg.ServerAddr(), conn: conn, inbox: inbox}
	m, err := s.await(ctx, "Hello", func(m protocol.ServerMessage) bool {
		_, ok := m.(protocol.Hello)
		return ok
	})
	if err != nil {
		return err
	}
	s.hello = m.(protocol.Hello)
	return fn(ctx, s)
}
