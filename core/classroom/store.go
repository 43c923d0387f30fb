package classroom

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Store holds the canonical in-memory snapshot of all collections. It is the
// single writer of local state: every mutation goes through Apply and is
// persisted to the backing KV right away.
type Store struct {
	mu     sync.RWMutex
	kv     core.KV
	key    string
	state  State
	unread int
}

type snapshot struct {
	Timestamp int64 `json:"timestamp"` // epoch ms
	Data      State `json:"data"`
}

func NewStore(kv core.KV, snapshotKey string) *Store {
	return &Store{kv: kv, key: snapshotKey, state: DefaultState()}
}

// Load restores the snapshot from the KV. A missing or corrupt snapshot
// resets to the empty default state; Load never fails.
func (st *Store) Load() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state = DefaultState()
	data, err := st.kv.Get(st.key)
	if err != nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return
	}
	st.state = normalize(snap.Data)
	st.unread = st.state.UnreadSubmissions()
}

// Persist serializes the full state plus a timestamp to the KV.
func (st *Store) Persist() error {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.persistLocked()
}

func (st *Store) persistLocked() error {
	data, err := json.Marshal(snapshot{Timestamp: NowFunc().UnixMilli(), Data: st.state})
	if err != nil {
		return errors.Wrap(err, "marshaling snapshot")
	}
	return errors.Wrap(st.kv.Set(st.key, data), "persisting snapshot")
}

// Apply runs one mutation against the state, recomputes the unread-submission
// count and persists. Applying the same action twice is a no-op the second
// time for all keyed kinds.
func (st *Store) Apply(a Action) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	a.apply(&st.state)
	st.unread = st.state.UnreadSubmissions()
	return st.persistLocked()
}

// State returns a copy of the current state safe for the caller to read.
func (st *Store) State() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.clone()
}

// SetState replaces the state wholesale and persists. Only the full-sync
// merge and the initial load may do this.
func (st *Store) SetState(s State) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state = normalize(s)
	st.unread = st.state.UnreadSubmissions()
	return st.persistLocked()
}

// UnreadSubmissions reports the number of submissions without a score.
func (st *Store) UnreadSubmissions() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.unread
}

// CleanupAttendance drops attendance records outside the given YYYY-MM month.
func (st *Store) CleanupAttendance(month string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	kept := st.state.Attendance[:0]
	for _, att := range st.state.Attendance {
		if strings.HasPrefix(att.Date, month) {
			kept = append(kept, att)
		}
	}
	st.state.Attendance = kept
	return st.persistLocked()
}

// Wipe resets to the empty default state and removes the stored snapshot.
func (st *Store) Wipe() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state = DefaultState()
	st.unread = 0
	if err := st.kv.Delete(st.key); err != nil && !errors.Is(err, core.ErrKeyNotFound) {
		return errors.Wrap(err, "wiping snapshot")
	}
	return nil
}

// normalize allocates any nil collection so consumers never see nil slices
// (older snapshots predate the schedules collection).
func normalize(s State) State {
	def := DefaultState()
	if s.Subjects == nil {
		s.Subjects = def.Subjects
	}
	if s.Classes == nil {
		s.Classes = def.Classes
	}
	if s.Students == nil {
		s.Students = def.Students
	}
	if s.Tasks == nil {
		s.Tasks = def.Tasks
	}
	if s.Scores == nil {
		s.Scores = def.Scores
	}
	if s.Attendance == nil {
		s.Attendance = def.Attendance
	}
	if s.Submissions == nil {
		s.Submissions = def.Submissions
	}
	if s.Materials == nil {
		s.Materials = def.Materials
	}
	if s.Schedules == nil {
		s.Schedules = def.Schedules
	}
	if s.Returns == nil {
		s.Returns = def.Returns
	}
	return s
}
