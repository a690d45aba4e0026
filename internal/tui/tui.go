package tui

import (
	"context"
	"fmt"

	"sova-cli/internal/client"
	"sova-cli/internal/localedits"
	"sova-cli/internal/protocol"
	"sova-cli/internal/replica"
	"sova-cli/internal/scene"
	"sova-cli/internal/session"
	"sova-cli/internal/snap"
	"sova-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
)

// inboxSize bounds how far the reader may run ahead of the event loop.
const inboxSize = 256

// Run connects to the configured server and runs the editor until the user quits.
func Run(ctx context.Context, st store.Store, cfg *store.Config) error {
	applyThemePreference()
	applyColorProfilePreference(cfg.ColorProfile())
	if cfg.TUI != nil {
		applyGlyphPreference(cfg.TUI.Glyphs)
	} else {
		applyGlyphPreference("")
	}

	sn := snap.NewSetting(cfg.Snap())
	sc := scene.NewStore()
	edits := localedits.New()

	server := cfg.ServerAddr()
	if cfg.DraftsEnabled() {
		drafts, err := st.OpenDrafts(ctx, server)
		if err != nil {
			glog.Warningf("drafts disabled: %v", err)
		} else {
			defer drafts.Close()
			saved, err := drafts.Load(ctx)
			if err != nil {
				glog.Warningf("drafts: load: %v", err)
			}
			edits.Restore(saved)
			edits.SetJournal(drafts)
		}
	}

	inbox := make(chan protocol.ServerMessage, inboxSize)
	stop := make(chan struct{})
	conn, err := client.Dial(ctx, client.Config{
		Addr:         server,
		Username:     cfg.Username,
		PollInterval: cfg.PollInterval(),
	}, func(msg protocol.ServerMessage) {
		select {
		case inbox <- msg:
		case <-stop:
		}
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", server, err)
	}
	defer func() {
		// Release a handler stuck on a full inbox, then flush what is still queued.
		close(stop)
		_ = conn.Close()
	}()

	tl := session.New(session.Deps{
		Scene:  sc,
		Sender: conn,
		Snap:   sn,
		Layout: session.Layout{PixelsPerBeat: cfg.CellsPerBeat(), Vertical: cfg.Vertical},
	})
	rep := replica.New(sc, edits, tl)
	rep.Refresh = func() {
		if err := conn.Send(protocol.GetScene); err != nil {
			glog.V(1).Infof("refresh scene: %v", err)
		}
	}

	m := newAppModel(Options{
		Server:  server,
		Replica: rep,
		Sender:  conn,
		Snap:    sn,
		Store:   st,
		Config:  cfg,
		Inbox:   inbox,
		Conn:    conn,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx)).Run()
	return err
}
