package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"sova-cli/internal/localedits"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const (
	draftsFileName = "drafts.sqlite"

	// draftsFlushDelay is how long journal writes are held back so a burst of keystrokes
	// lands in one transaction.
	draftsFlushDelay = 300 * time.Millisecond
)

// Drafts journals the local edit buffer to sqlite so unsent script text survives a restart.
// Rows are scoped by server address since keys are positions in that server's scene.
//
// Journal calls only record the change in memory; a background writer applies pending
// changes after draftsFlushDelay of quiet, and Flush, List and Close apply them at once.
type Drafts struct {
	db     *sql.DB
	server string
	now    func() time.Time
	delay  time.Duration

	// mu guards pending and reset. A nil pending value deletes the row; reset deletes every
	// row of the server before pending is applied.
	mu      sync.Mutex
	pending map[localedits.Key]*localedits.Edit
	reset   bool

	// wmu serializes writes to the database.
	wmu sync.Mutex

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type Draft struct {
	ID        string
	Line      int
	Frame     int
	Content   string
	Lang      string
	UpdatedAt time.Time
}

func (s Store) DraftsPath() string {
	return s.path(draftsFileName)
}

// OpenDrafts opens (and creates) the drafts database for server.
func (s Store) OpenDrafts(ctx context.Context, server string) (*Drafts, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.DraftsPath())
	if err != nil {
		return nil, err
	}
	// The TUI and one-shot CLI commands may have the file open at once.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateDrafts(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	d := &Drafts{
		db:      db,
		server:  server,
		now:     time.Now,
		delay:   draftsFlushDelay,
		pending: map[localedits.Key]*localedits.Edit{},
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d, nil
}

func migrateDrafts(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drafts (
			server TEXT NOT NULL,
			line INTEGER NOT NULL,
			frame INTEGER NOT NULL,
			content TEXT NOT NULL,
			lang TEXT NOT NULL,
			draft_id TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			PRIMARY KEY(server, line, frame)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_updated ON drafts(updated_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("migrate drafts: %w", err)
		}
	}
	return nil
}

// Close applies pending changes and closes the database. It is safe to call more than once.
func (d *Drafts) Close() error {
	d.closeOnce.Do(func() {
		close(d.stop)
		<-d.done
		if err := d.Flush(context.Background()); err != nil {
			glog.Warningf("drafts: flush on close: %v", err)
		}
		d.closeErr = d.db.Close()
	})
	return d.closeErr
}

func (d *Drafts) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case <-d.kick:
		}
		t := time.NewTimer(d.delay)
		select {
		case <-d.stop:
			t.Stop()
			return
		case <-t.C:
		}
		if err := d.Flush(context.Background()); err != nil {
			glog.Warningf("drafts: flush: %v", err)
		}
	}
}

func (d *Drafts) schedule() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Flush writes pending journal changes in one transaction.
func (d *Drafts) Flush(ctx context.Context) error {
	d.wmu.Lock()
	defer d.wmu.Unlock()

	d.mu.Lock()
	pending, reset := d.pending, d.reset
	d.pending, d.reset = map[localedits.Key]*localedits.Edit{}, false
	d.mu.Unlock()
	if len(pending) == 0 && !reset {
		return nil
	}
	if err := d.apply(ctx, pending, reset); err != nil {
		d.requeue(pending, reset)
		return err
	}
	glog.V(2).Infof("drafts: flushed %d change(s), reset=%v", len(pending), reset)
	return nil
}

func (d *Drafts) apply(ctx context.Context, pending map[localedits.Key]*localedits.Edit, reset bool) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if reset {
		if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE server = ?`, d.server); err != nil {
			return err
		}
	}
	for k, e := range pending {
		if e == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE server = ? AND line = ? AND frame = ?`, d.server, k.Line, k.Frame); err != nil {
				return err
			}
			continue
		}
		if err := d.upsert(ctx, tx, k, *e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// requeue puts back changes a failed flush took, under anything recorded since.
func (d *Drafts) requeue(pending map[localedits.Key]*localedits.Edit, reset bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reset {
		return
	}
	for k, e := range pending {
		if _, newer := d.pending[k]; !newer {
			d.pending[k] = e
		}
	}
	d.reset = reset
}

// List returns the server's drafts ordered by position, including changes not yet flushed.
func (d *Drafts) List(ctx context.Context) ([]Draft, error) {
	if err := d.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT draft_id, line, frame, content, lang, updated_at_unixms FROM drafts WHERE server = ? ORDER BY line, frame`,
		d.server)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Draft
	for rows.Next() {
		var r Draft
		var ms int64
		if err := rows.Scan(&r.ID, &r.Line, &r.Frame, &r.Content, &r.Lang, &ms); err != nil {
			return nil, err
		}
		r.UpdatedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clear deletes every draft for the server and returns how many were removed.
func (d *Drafts) Clear(ctx context.Context) (int64, error) {
	d.mu.Lock()
	d.pending, d.reset = map[localedits.Key]*localedits.Edit{}, false
	d.mu.Unlock()
	d.wmu.Lock()
	defer d.wmu.Unlock()
	res, err := d.db.ExecContext(ctx, `DELETE FROM drafts WHERE server = ?`, d.server)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Drafts) upsert(ctx context.Context, ex interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, k localedits.Key, e localedits.Edit) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO drafts(server, line, frame, content, lang, draft_id, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server, line, frame) DO UPDATE SET
			content = excluded.content,
			lang = excluded.lang,
			updated_at_unixms = excluded.updated_at_unixms`,
		d.server, k.Line, k.Frame, e.Content, e.Lang, ulid.Make().String(), d.now().UnixMilli())
	return err
}

// The methods below implement localedits.Journal. They only touch memory; write errors
// surface in the log when the writer flushes.

func (d *Drafts) Saved(k localedits.Key, e localedits.Edit) {
	d.mu.Lock()
	d.pending[k] = &e
	d.mu.Unlock()
	d.schedule()
}

func (d *Drafts) Cleared(k localedits.Key) {
	d.mu.Lock()
	d.pending[k] = nil
	d.mu.Unlock()
	d.schedule()
}

func (d *Drafts) ClearedAll() {
	d.mu.Lock()
	d.pending, d.reset = map[localedits.Key]*localedits.Edit{}, true
	d.mu.Unlock()
	d.schedule()
}

// Rekeyed replaces the server's drafts with entries after a structural change.
func (d *Drafts) Rekeyed(entries map[localedits.Key]localedits.Edit) {
	d.mu.Lock()
	d.pending, d.reset = make(map[localedits.Key]*localedits.Edit, len(entries)), true
	for k, e := range entries {
		e := e
		d.pending[k] = &e
	}
	d.mu.Unlock()
	d.schedule()
}

var _ localedits.Journal = (*Drafts)(nil)
