// Package eventlog implements the durable append-only logs: one main log,
// one log per user, one log per conversation, each a newline-delimited
// sequence of JSON event envelopes. It is the sole durability boundary in
// the system; everything else is derived by replay.
package eventlog

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/loomchat/internal/errs"
	"github.com/hrygo/loomchat/internal/events"
)

// EventLog manages a family of logs rooted at a base directory. Each
// individual log is guarded by its own mutex so that appends (and any
// state mutation paired with one) are serialized per log, keeping each
// conversation single-writer while unrelated logs proceed concurrently.
type EventLog struct {
	baseDir string

	mu      sync.Mutex // guards handles map only
	handles map[string]*handle
}

type handle struct {
	mu          sync.Mutex
	path        string
	f           *os.File
	w           *bufio.Writer
	initialized bool
	closed      bool
}

// New creates an EventLog rooted at baseDir. baseDir is created lazily as
// individual logs are initialized.
func New(baseDir string) *EventLog {
	return &EventLog{
		baseDir: baseDir,
		handles: make(map[string]*handle),
	}
}

func (l *EventLog) handleFor(id LogID) (*handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := id.String()
	if h, ok := l.handles[key]; ok {
		return h, nil
	}
	p, err := path(l.baseDir, id)
	if err != nil {
		return nil, errs.Wrap(err, errs.Validation, "resolve log path")
	}
	h := &handle{path: p}
	l.handles[key] = h
	return h, nil
}

// Init creates (if necessary) and opens a log for appending, creating
// parent directories as needed. Init is idempotent.
func (l *EventLog) Init(id LogID) error {
	h, err := l.handleFor(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open()
}

func (h *handle) open() error {
	if h.initialized && !h.closed {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return errs.Wrap(err, errs.IoError, "create log directory")
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(err, errs.IoError, "open log file")
	}
	h.f = f
	h.w = bufio.NewWriter(f)
	h.initialized = true
	h.closed = false
	return nil
}

// Append writes one event line, flushing and fsyncing before returning
// success. Writes to a log that was never Init'd fail with a Validation
// error: the log must be created by the caller's lifecycle event before
// being appended to.
func (l *EventLog) Append(id LogID, env events.Envelope) error {
	h, err := l.handleFor(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized || h.closed {
		return errs.New(errs.Validation, "eventlog: log not initialized: "+id.String())
	}

	line, err := env.MarshalLine()
	if err != nil {
		return errs.Wrap(err, errs.Internal, "marshal event")
	}
	line = append(line, '\n')

	if _, err := h.w.Write(line); err != nil {
		return errs.Wrap(err, errs.IoError, "append event")
	}
	if err := h.w.Flush(); err != nil {
		return errs.Wrap(err, errs.IoError, "flush event")
	}
	if err := h.f.Sync(); err != nil {
		return errs.Wrap(err, errs.IoError, "fsync event")
	}
	return nil
}

// Close closes the underlying file handle, if any. Close is idempotent.
func (l *EventLog) Close(id LogID) error {
	l.mu.Lock()
	h, ok := l.handles[id.String()]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.f == nil {
		h.closed = true
		return nil
	}
	if err := h.w.Flush(); err != nil {
		return errs.Wrap(err, errs.IoError, "flush on close")
	}
	err := h.f.Close()
	h.closed = true
	if err != nil {
		return errs.Wrap(err, errs.IoError, "close log file")
	}
	return nil
}

// Load reads a log from disk in file order, invoking visit for each
// well-formed envelope. Blank lines are skipped silently; a line that
// fails to parse is skipped and logged, never aborting the read. If the
// log file does not yet exist, Load treats it as empty and returns nil:
// a log that has never been appended to has no events.
//
// If visit returns an error, Load stops and returns it immediately: that
// signals a failure applying the event (e.g. a replay invariant violation),
// distinct from a malformed line, which is never fatal.
func (l *EventLog) Load(id LogID, visit func(events.Envelope) error) error {
	p, err := path(l.baseDir, id)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(err, errs.IoError, "open log for read")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		var env events.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			slog.Warn("eventlog: skipping malformed line", "log", id.String(), "line", lineNo, "error", err)
			continue
		}
		if err := visit(env); err != nil {
			return errors.Wrapf(err, "eventlog: apply event at %s:%d", id.String(), lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(err, errs.IoError, "scan log")
	}
	return nil
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isSpace(b[i]) {
		i++
	}
	for j > i && isSpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// AllConversationShards walks the base directory for every conversation
// log present on disk (used at startup to replay everything, and by
// offline repair tools). It returns conversation IDs derived from file
// names, not full paths.
func (l *EventLog) AllConversationShards() ([]string, error) {
	root := filepath.Join(l.baseDir, "conversations")
	var ids []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		name := filepath.Base(p)
		ids = append(ids, name[:len(name)-len(".jsonl")])
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.IoError, "walk conversation shards")
	}
	return ids, nil
}
