// Package journal keeps a durable record of safety events (watchdog trips,
// rejected commands, actuation faults) in a SQLite database.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"

	"github.com/teslashibe/go-fpvcar/internal/log"
)

// Event kinds written by the service itself.
const (
	KindServiceStart = "service_start"
	KindServiceStop  = "service_stop"
)

const queueSize = 256

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Event is one journal entry.
type Event struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// Recorder is anything that accepts events.
type Recorder interface {
	Record(kind, detail string)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(string, string) {}

type request struct {
	event Event
	sync  chan struct{}
}

// Journal appends events from any goroutine without blocking on disk I/O.
// A single writer goroutine owns inserts.
type Journal struct {
	db     *sql.DB
	insert *sql.Stmt
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan request
	done   chan struct{}

	dropped atomic.Uint64
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id     TEXT PRIMARY KEY,
			kind   TEXT NOT NULL,
			detail TEXT NOT NULL,
			at_ms  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS events_at ON events(at_ms);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	insert, err := db.Prepare(`INSERT INTO events (id, kind, detail, at_ms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: prepare insert: %w", err)
	}

	j := &Journal{
		db:     db,
		insert: insert,
		logger: log.Component("journal"),
		queue:  make(chan request, queueSize),
		done:   make(chan struct{}),
	}
	go j.writer()
	return j, nil
}

// Record queues an event. When the queue is full the event is dropped and
// counted rather than stalling the caller.
func (j *Journal) Record(kind, detail string) {
	j.Append(Event{Kind: kind, Detail: detail})
}

// Append queues e, filling in ID and At when empty. It reports whether the
// event was accepted.
func (j *Journal) Append(e Event) bool {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return false
	}
	select {
	case j.queue <- request{event: e}:
		return true
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			j.logger.Warn("journal queue full, dropping events", "dropped", n)
		}
		return false
	}
}

// Sync blocks until everything queued before the call is written.
func (j *Journal) Sync() error {
	ack := make(chan struct{})

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	j.queue <- request{sync: ack}
	j.mu.RUnlock()

	<-ack
	return nil
}

// Recent returns up to n events, newest first.
func (j *Journal) Recent(n int) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.Query(`SELECT id, kind, detail, at_ms FROM events ORDER BY at_ms DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var atMS int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Detail, &atMS); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.At = time.UnixMilli(atMS)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events of kind, or of all kinds when
// kind is empty.
func (j *Journal) Count(kind string) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = j.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	} else {
		err = j.db.QueryRow(`SELECT COUNT(*) FROM events WHERE kind = ?`, kind).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

// Dropped returns how many events were lost to a full queue.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Close flushes queued events and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return errors.Join(j.insert.Close(), j.db.Close())
}

func (j *Journal) writer() {
	defer close(j.done)
	for req := range j.queue {
		if req.sync != nil {
			close(req.sync)
			continue
		}
		e := req.event
		if _, err := j.insert.Exec(e.ID, e.Kind, e.Detail, e.At.UnixMilli()); err != nil {
			j.logger.Error("journal insert failed", "kind", e.Kind, "error", err)
		}
	}
}
