// Package localedits buffers script text the user has typed but not yet sent to the server.
//
// Entries are addressed positionally by (line, frame). The server can insert or remove
// frames and lines at any time, so the buffer re-keys its entries whenever it is told about
// a confirmed structural change; an entry always keeps pointing at the same logical frame.
package localedits

import (
	"fmt"
	"sort"
	"sync"
)

type Key struct {
	Line  int `json:"line"`
	Frame int `json:"frame"`
}

func (k Key) String() string { return fmt.Sprintf("%d-%d", k.Line, k.Frame) }

type Edit struct {
	Content string `json:"content"`
	Lang    string `json:"lang"`
}

// Journal observes buffer mutations, e.g. to persist drafts across restarts.
// Calls happen with the buffer lock held; they must return quickly and must not call back
// into the buffer.
type Journal interface {
	Saved(k Key, e Edit)
	Cleared(k Key)
	ClearedAll()
	// Rekeyed is called after a structural reconciliation with the full new contents.
	Rekeyed(entries map[Key]Edit)
}

type Buffer struct {
	mu      sync.Mutex
	entries map[Key]Edit
	journal Journal
}

func New() *Buffer {
	return &Buffer{entries: map[Key]Edit{}}
}

// SetJournal attaches j; pass nil to detach.
func (b *Buffer) SetJournal(j Journal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = j
}

// Restore replaces the buffer contents without notifying the journal (used when loading
// previously journaled drafts).
func (b *Buffer) Restore(entries map[Key]Edit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[Key]Edit, len(entries))
	for k, v := range entries {
		b.entries[k] = v
	}
}

func (b *Buffer) Get(k Key) (Edit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[k]
	return e, ok
}

func (b *Buffer) Set(k Key, content, lang string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := Edit{Content: content, Lang: lang}
	b.entries[k] = e
	if b.journal != nil {
		b.journal.Saved(k, e)
	}
}

func (b *Buffer) Clear(k Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[k]; !ok {
		return
	}
	delete(b.entries, k)
	if b.journal != nil {
		b.journal.Cleared(k)
	}
}

func (b *Buffer) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = map[Key]Edit{}
	if b.journal != nil {
		b.journal.ClearedAll()
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Keys returns every buffered key ordered by line, then frame.
func (b *Buffer) Keys() []Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Key, 0, len(b.entries))
	for k := range b.entries {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func (b *Buffer) Snapshot() map[Key]Edit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Key]Edit, len(b.entries))
	for k, v := range b.entries {
		out[k] = v
	}
	return out
}

// OnFrameRemoved drops the entry for (line, frame) and shifts later frames of the same
// line down by one.
func (b *Buffer) OnFrameRemoved(line, frame int) {
	b.rekey(func(k Key) (Key, bool) {
		if k.Line != line {
			return k, true
		}
		switch {
		case k.Frame < frame:
			return k, true
		case k.Frame > frame:
			return Key{Line: k.Line, Frame: k.Frame - 1}, true
		default:
			return Key{}, false
		}
	})
}

// OnLineRemoved drops every entry of line and shifts later lines down by one.
func (b *Buffer) OnLineRemoved(line int) {
	b.rekey(func(k Key) (Key, bool) {
		switch {
		case k.Line < line:
			return k, true
		case k.Line > line:
			return Key{Line: k.Line - 1, Frame: k.Frame}, true
		default:
			return Key{}, false
		}
	})
}

// OnFrameInserted shifts entries at or after (line, frame) up by one. New frames arrive
// empty, so nothing is ever buffered for the inserted position itself.
func (b *Buffer) OnFrameInserted(line, frame int) {
	b.rekey(func(k Key) (Key, bool) {
		if k.Line == line && k.Frame >= frame {
			return Key{Line: k.Line, Frame: k.Frame + 1}, true
		}
		return k, true
	})
}

// OnLineInserted shifts entries of line and every later line up by one.
func (b *Buffer) OnLineInserted(line int) {
	b.rekey(func(k Key) (Key, bool) {
		if k.Line >= line {
			return Key{Line: k.Line + 1, Frame: k.Frame}, true
		}
		return k, true
	})
}

func (b *Buffer) rekey(move func(Key) (Key, bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make(map[Key]Edit, len(b.entries))
	changed := false
	for k, v := range b.entries {
		nk, keep := move(k)
		if !keep {
			changed = true
			continue
		}
		if nk != k {
			changed = true
		}
		next[nk] = v
	}
	b.entries = next
	if changed && b.journal != nil {
		b.journal.Rekeyed(next)
	}
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Line != keys[j].Line {
			return keys[i].Line < keys[j].Line
		}
		return keys[i].Frame < keys[j].Frame
	})
}
