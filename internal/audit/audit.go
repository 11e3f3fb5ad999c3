package audit

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Event kinds recorded by the engine and the configuration surface.
const (
	KindExecute         = "execute"
	KindWhitelistAdd    = "whitelist.add"
	KindWhitelistRemove = "whitelist.remove"
	KindOffsetSet       = "offset.set"
	KindOffsetClear     = "offset.clear"
	KindPause           = "pause"
	KindUnpause         = "unpause"
	KindAdminTransfer   = "admin.transfer"
	KindRecover         = "recover"
)

// Event is a single audit record.
type Event struct {
	Time   time.Time         `json:"time"`
	Kind   string            `json:"kind"`
	Actor  string            `json:"actor,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Sink receives audit events.
type Sink interface {
	Record(Event)
}

// Log appends events as JSON lines to a writer.
type Log struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLog creates a Log writing to w.
func NewLog(w io.Writer) *Log {
	return &Log{w: w}
}

// OpenFile opens (or creates) an append-only audit log file.
func OpenFile(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Log{w: f}, nil
}

// Record writes the event as one JSON line. Marshal or write failures are
// dropped; auditing must never abort the operation it describes.
func (l *Log) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(append(data, '\n')) //nolint:errcheck
}

// ReadFile parses a JSON-lines audit log. Malformed lines are skipped.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, sc.Err()
}

// Memory collects events in memory (for tests).
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record stores the event.
func (m *Memory) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of all recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Discard ignores all events.
type Discard struct{}

// Record drops the event.
func (Discard) Record(Event) {}
