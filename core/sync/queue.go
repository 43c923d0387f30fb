package sync

import (
	"encoding/json"
	stdsync "sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var NowFunc = time.Now // mockable

// Entry is one queued action awaiting push. On disk it keeps the original
// flat shape: the action's own fields plus "timestamp" and "attempts".
type Entry struct {
	Payload   json.RawMessage
	Timestamp time.Time
	Attempts  int
}

func (e Entry) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &m); err != nil {
			return nil, errors.Wrap(err, "flattening queue entry")
		}
	}
	ts, _ := json.Marshal(e.Timestamp.UTC().Format(time.RFC3339))
	attempts, _ := json.Marshal(e.Attempts)
	m["timestamp"] = ts
	m["attempts"] = attempts
	return json.Marshal(m)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if raw, ok := m["timestamp"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				e.Timestamp = ts
			}
		}
		delete(m, "timestamp")
	}
	if raw, ok := m["attempts"]; ok {
		_ = json.Unmarshal(raw, &e.Attempts)
		delete(m, "attempts")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	e.Payload = payload
	return nil
}

// Queue is the durable FIFO of actions whose push failed. It is read,
// modified and rewritten as a whole on every change.
type Queue struct {
	mu      stdsync.Mutex
	kv      core.KV
	key     string
	entries []Entry
}

func NewQueue(kv core.KV, queueKey string) *Queue {
	return &Queue{kv: kv, key: queueKey}
}

// Load restores pending entries from the KV. A corrupt queue is reset to
// empty rather than failing.
func (q *Queue) Load() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = nil
	data, err := q.kv.Get(q.key)
	if err != nil {
		if errors.Is(err, core.ErrKeyNotFound) {
			return nil
		}
		return errors.Wrap(err, "loading queue")
	}
	if err := json.Unmarshal(data, &q.entries); err != nil {
		q.entries = nil
		return q.persistLocked()
	}
	return nil
}

// Enqueue appends an action payload with a fresh timestamp and a zeroed
// attempt counter, and persists.
func (q *Queue) Enqueue(payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, Entry{
		Payload:   payload,
		Timestamp: NowFunc().UTC(),
	})
	return q.persistLocked()
}

// Entries returns a copy of the pending entries in FIFO order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ResolvePrefix replaces the first n entries with kept and persists. A drain
// pass works on a snapshot; resolving only the prefix it processed leaves
// entries enqueued while the pass ran untouched.
func (q *Queue) ResolvePrefix(n int, kept []Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.entries) {
		n = len(q.entries)
	}
	q.entries = append(append([]Entry{}, kept...), q.entries[n:]...)
	return q.persistLocked()
}

func (q *Queue) persistLocked() error {
	entries := q.entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "marshaling queue")
	}
	return errors.Wrap(q.kv.Set(q.key, data), "persisting queue")
}
