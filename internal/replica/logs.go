package replica

import (
	"sync"
	"time"
)

// MaxLogs bounds the log ring.
const MaxLogs = 1000

type LogLevel int

const (
	LogInfo LogLevel = iota
	LogChat
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogChat:
		return "chat"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

type LogEntry struct {
	At      time.Time
	Level   LogLevel
	Message string
}

// Logs keeps the most recent MaxLogs server log lines, oldest first.
type Logs struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
	now     func() time.Time
}

func NewLogs() *Logs {
	return &Logs{max: MaxLogs, now: time.Now}
}

func (l *Logs) Add(level LogLevel, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{At: l.now(), Level: level, Message: msg})
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
}

func (l *Logs) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Last returns up to n of the newest entries, oldest first.
func (l *Logs) Last(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return append([]LogEntry(nil), l.entries[len(l.entries)-n:]...)
}

func (l *Logs) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
