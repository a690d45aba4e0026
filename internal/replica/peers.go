package replica

import (
	"sort"
	"sync"

	"sova-cli/internal/localedits"
	"sova-cli/internal/selection"
)

// Peer is what this client knows about another connected user.
type Peer struct {
	Name      string
	Selection *selection.Grid
	// Editing lists the frames the peer has an editor open on.
	Editing []localedits.Key
}

// Peers tracks other users' presence. Coordinates are reindexed on structural changes the
// same way local edits are.
type Peers struct {
	mu    sync.Mutex
	self  string
	peers map[string]*Peer
}

func NewPeers() *Peers {
	return &Peers{peers: map[string]*Peer{}}
}

// SetSelf names this client so its own echoes are ignored.
func (p *Peers) SetSelf(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.self = name
	delete(p.peers, name)
}

func (p *Peers) Self() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.self
}

// SetNames replaces the connected set, keeping state for peers still present.
func (p *Peers) SetNames(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]*Peer, len(names))
	for _, n := range names {
		if n == "" || n == p.self {
			continue
		}
		if old, ok := p.peers[n]; ok {
			next[n] = old
		} else {
			next[n] = &Peer{Name: n}
		}
	}
	p.peers = next
}

func (p *Peers) get(name string) *Peer {
	if name == "" || name == p.self {
		return nil
	}
	peer, ok := p.peers[name]
	if !ok {
		peer = &Peer{Name: name}
		p.peers[name] = peer
	}
	return peer
}

func (p *Peers) SetSelection(name string, g selection.Grid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if peer := p.get(name); peer != nil {
		peer.Selection = &g
	}
}

func (p *Peers) StartedEditing(name string, k localedits.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer := p.get(name)
	if peer == nil {
		return
	}
	for _, e := range peer.Editing {
		if e == k {
			return
		}
	}
	peer.Editing = append(peer.Editing, k)
}

func (p *Peers) StoppedEditing(name string, k localedits.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok := p.peers[name]
	if !ok {
		return
	}
	out := peer.Editing[:0]
	for _, e := range peer.Editing {
		if e != k {
			out = append(out, e)
		}
	}
	peer.Editing = out
}

// List returns a copy of every peer sorted by name.
func (p *Peers) List() []Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		cp := Peer{Name: peer.Name, Editing: append([]localedits.Key(nil), peer.Editing...)}
		if peer.Selection != nil {
			g := *peer.Selection
			cp.Selection = &g
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EditorsOf returns the peers editing (line, frame).
func (p *Peers) EditorsOf(line, frame int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := localedits.Key{Line: line, Frame: frame}
	var out []string
	for _, peer := range p.peers {
		for _, e := range peer.Editing {
			if e == k {
				out = append(out, peer.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (p *Peers) onFrameRemoved(line, frame int) {
	p.rekey(func(k localedits.Key) (localedits.Key, bool) {
		if k.Line != line {
			return k, true
		}
		if k.Frame == frame {
			return k, false
		}
		if k.Frame > frame {
			k.Frame--
		}
		return k, true
	})
}

func (p *Peers) onLineRemoved(line int) {
	p.rekey(func(k localedits.Key) (localedits.Key, bool) {
		if k.Line == line {
			return k, false
		}
		if k.Line > line {
			k.Line--
		}
		return k, true
	})
}

func (p *Peers) onFrameInserted(line, frame int) {
	p.rekey(func(k localedits.Key) (localedits.Key, bool) {
		if k.Line == line && k.Frame >= frame {
			k.Frame++
		}
		return k, true
	})
}

func (p *Peers) onLineInserted(line int) {
	p.rekey(func(k localedits.Key) (localedits.Key, bool) {
		if k.Line >= line {
			k.Line++
		}
		return k, true
	})
}

func (p *Peers) rekey(move func(localedits.Key) (localedits.Key, bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, peer := range p.peers {
		out := peer.Editing[:0]
		for _, k := range peer.Editing {
			if nk, keep := move(k); keep {
				out = append(out, nk)
			}
		}
		peer.Editing = out
	}
}
