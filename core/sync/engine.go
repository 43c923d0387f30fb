package sync

import (
	"context"
	"encoding/json"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

// Status is the coarse outcome of a sync flow. The engine absorbs gateway
// failures internally and reports one of these instead of raw errors; no
// flow ever crashes the client, every failure degrades to working offline.
type Status string

const (
	StatusSuccess Status = "success"
	StatusQueued  Status = "queued"  // saved locally, push pending
	StatusOffline Status = "offline" // no network call attempted
	StatusStale   Status = "stale"   // endpoint replied, payload unusable; local data kept
	StatusFailed  Status = "failed"
)

const statusSuccess = "success" // endpoint reply envelope value

var ErrLoginFailed = errors.New("login rejected")

// Engine coordinates the three sync flows: full pull-and-merge, optimistic
// push with queue fallback, and periodic queue draining.
type Engine struct {
	store *classroom.Store
	gw    Gateway
	queue *Queue
	kv    core.KV
	conf  core.ClientConfig
	log   core.Logger

	online  atomic.Bool
	drainMu stdsync.Mutex // at most one drain pass in flight
}

func NewEngine(store *classroom.Store, gw Gateway, queue *Queue, kv core.KV, conf core.ClientConfig, log core.Logger) *Engine {
	eng := &Engine{store: store, gw: gw, queue: queue, kv: kv, conf: conf, log: log}
	eng.online.Store(true)
	return eng
}

// SetOnline flips the network-status flag, e.g. from a connectivity probe.
func (eng *Engine) SetOnline(online bool) {
	if eng.online.Swap(online) != online {
		if online {
			eng.log.Info("network is back")
		} else {
			eng.log.Warn("network lost; working offline")
		}
	}
}

func (eng *Engine) Online() bool { return eng.online.Load() }

// Reconnect marks the client online, pulls, and drains the pending queue.
func (eng *Engine) Reconnect(ctx context.Context) (Status, int) {
	eng.SetOnline(true)
	status := eng.FullSync(ctx)
	return status, eng.DrainQueue(ctx)
}

// FullSync pulls the complete server state and merges it into the local
// store. The store is never partially merged: it is either updated from a
// recognizable payload or left untouched.
func (eng *Engine) FullSync(ctx context.Context) Status {
	if !eng.Online() {
		eng.log.Debug("skipping sync: offline")
		return StatusOffline
	}

	server, err := eng.gw.FetchAll(ctx)
	switch {
	case errors.Is(err, ErrBadPayload):
		eng.log.Warn("sync: unusable payload, keeping local data", err)
		return StatusStale
	case err != nil:
		eng.log.Warn("sync failed", err)
		return StatusFailed
	}

	merged := MergeState(eng.store.State(), server)
	if err := eng.store.SetState(merged); err != nil {
		eng.log.Error("sync: persisting merged state", err)
	}
	return StatusSuccess
}

// Save applies an action optimistically and pushes it best-effort. The local
// change is never rolled back: any push failure lands the action in the
// durable retry queue instead. The only hard error is a malformed action,
// rejected before anything is applied.
func (eng *Engine) Save(ctx context.Context, a classroom.Action) (Status, error) {
	if err := classroom.ValidateAction(a); err != nil {
		return StatusFailed, err
	}

	if err := eng.store.Apply(a); err != nil {
		// the in-memory state did mutate; only durability suffered
		eng.log.Warn("save: persisting local state", err)
	}

	payload, err := classroom.MarshalAction(a)
	if err != nil {
		return StatusFailed, err
	}

	if !eng.Online() {
		return eng.enqueue(payload)
	}
	resp, err := eng.gw.Send(ctx, payload)
	if err != nil || resp.Status != statusSuccess {
		if err != nil {
			eng.log.Warn("save: push failed, queueing", err)
		} else {
			eng.log.Warn("save: endpoint refused action, queueing", map[string]interface{}{"status": resp.Status})
		}
		return eng.enqueue(payload)
	}
	return StatusSuccess, nil
}

func (eng *Engine) enqueue(payload []byte) (Status, error) {
	if err := eng.queue.Enqueue(payload); err != nil {
		eng.log.Error("save: queueing action", err)
	}
	return StatusQueued, nil
}

// DrainQueue re-pushes pending actions in FIFO order, sequentially, and
// reports how many succeeded. An action failing its third attempt is dropped
// for good; that is deliberate data loss and is surfaced at error level for
// the operator. At most one drain pass runs at a time; a second concurrent
// call returns immediately.
func (eng *Engine) DrainQueue(ctx context.Context) int {
	if !eng.drainMu.TryLock() {
		return 0
	}
	defer eng.drainMu.Unlock()

	entries := eng.queue.Entries()
	if len(entries) == 0 {
		return 0
	}
	eng.log.Debug("draining queue", map[string]interface{}{"pending": len(entries)})

	var (
		synced int
		kept   = make([]Entry, 0, len(entries))
	)
	for i, entry := range entries {
		if ctx.Err() != nil {
			// interrupted: keep the rest untouched, save partial progress
			kept = append(kept, entries[i:]...)
			break
		}

		resp, err := eng.gw.Send(ctx, entry.Payload)
		if err == nil && resp.Status == statusSuccess {
			synced++
			continue
		}

		entry.Attempts++
		if entry.Attempts < eng.conf.MaxPushAttempts {
			kept = append(kept, entry)
		} else {
			eng.log.Error("giving up on queued action", map[string]interface{}{
				"attempts": entry.Attempts,
				"payload":  string(entry.Payload),
			})
		}
	}

	if err := eng.queue.ResolvePrefix(len(entries), kept); err != nil {
		eng.log.Error("drain: persisting queue", err)
	}
	if synced > 0 {
		eng.log.Info("queue drained", map[string]interface{}{"synced": synced})
	}
	return synced
}

// Login exchanges admin credentials for a session token and stores it.
func (eng *Engine) Login(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(map[string]string{
		"action":   "login",
		"username": core.CleanString(username),
		"password": password,
	})
	if err != nil {
		return err
	}
	resp, err := eng.gw.Send(ctx, payload)
	if err != nil {
		return err
	}
	if resp.Status != statusSuccess || resp.Token == "" {
		return ErrLoginFailed
	}
	return errors.Wrap(eng.kv.Set(eng.conf.SessionKey, []byte(resp.Token)), "storing session")
}

// LoggedIn reports whether a stored session token is present.
func (eng *Engine) LoggedIn() bool {
	_, err := eng.kv.Get(eng.conf.SessionKey)
	return err == nil
}

// Logout discards the session and the local snapshot.
func (eng *Engine) Logout() error {
	if err := eng.kv.Delete(eng.conf.SessionKey); err != nil && !errors.Is(err, core.ErrKeyNotFound) {
		return errors.Wrap(err, "discarding session")
	}
	return eng.store.Wipe()
}

// Run drives the periodic work until ctx is canceled: queue drains, snapshot
// persistence and attendance cleanup, at the intervals configured.
func (eng *Engine) Run(ctx context.Context) {
	drain := newTicker(eng.conf.DrainEvery)
	persist := newTicker(eng.conf.PersistEvery)
	cleanup := newTicker(eng.conf.CleanupEvery)
	defer drain.Stop()
	defer persist.Stop()
	defer cleanup.Stop()

	eng.log.Info("sync engine running")
	for {
		select {
		case <-ctx.Done():
			eng.log.Info("sync engine stopped")
			return
		case <-drain.C:
			if eng.Online() {
				eng.DrainQueue(ctx)
			}
		case <-persist.C:
			if err := eng.store.Persist(); err != nil {
				eng.log.Warn("periodic persist", err)
			}
		case <-cleanup.C:
			month := classroom.NowFunc().UTC().Format("2006-01")
			if err := eng.store.CleanupAttendance(month); err != nil {
				eng.log.Warn("attendance cleanup", err)
			}
		}
	}
}

func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		d = time.Minute
	}
	return time.NewTicker(d)
}
