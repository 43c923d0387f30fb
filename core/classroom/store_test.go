package classroom

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/storage/kvstore"
)

func TestStorePersistLoadRoundTrip(t *testing.T) {
	origNow := NowFunc
	NowFunc = func() time.Time { return time.UnixMilli(1700000000000) }
	defer func() { NowFunc = origNow }()

	kv := kvstore.NewInMemKV()
	st := NewStore(kv, "data_backup")
	st.Load()

	assert.NoError(t, st.Apply(AddSubject{ID: "S1", Name: "Math"}))
	assert.NoError(t, st.Apply(AddScore{StudentID: "100", TaskID: "T1", Score: 9}))

	// persisted shape is {timestamp, data}
	raw, err := kv.Get("data_backup")
	assert.NoError(t, err)
	var snap map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "1700000000000", string(snap["timestamp"]))
	assert.Contains(t, snap, "data")

	st2 := NewStore(kv, "data_backup")
	st2.Load()
	state := st2.State()
	assert.Len(t, state.Subjects, 1)
	assert.Equal(t, "Math", state.Subjects[0].Name)
	assert.Len(t, state.Scores, 1)
}

func TestStoreLoadCorruptSnapshotResets(t *testing.T) {
	kv := kvstore.NewInMemKV()
	assert.NoError(t, kv.Set("data_backup", []byte("{not json")))

	st := NewStore(kv, "data_backup")
	st.Load()

	state := st.State()
	assert.Empty(t, state.Subjects)
	assert.Empty(t, state.Scores)
}

func TestStoreLoadAllocatesMissingCollections(t *testing.T) {
	kv := kvstore.NewInMemKV()
	// a snapshot written before schedules existed
	assert.NoError(t, kv.Set("data_backup", []byte(`{"timestamp":1,"data":{"subjects":[{"id":"S1","name":"Math"}]}}`)))

	st := NewStore(kv, "data_backup")
	st.Load()

	state := st.State()
	assert.Len(t, state.Subjects, 1)
	assert.NotNil(t, state.Schedules)
	assert.NotNil(t, state.Returns)
}

func TestStoreCleanupAttendance(t *testing.T) {
	st := newTestStore(t)
	assert.NoError(t, st.Apply(AddAttendance{StudentID: "1", ClassID: "10", Date: "2026-08-31", Status: StatusPresent}))
	assert.NoError(t, st.Apply(AddAttendance{StudentID: "1", ClassID: "10", Date: "2026-09-01", Status: StatusPresent}))
	assert.NoError(t, st.Apply(AddAttendance{StudentID: "2", ClassID: "10", Date: "2026-09-15", Status: StatusAbsent}))

	assert.NoError(t, st.CleanupAttendance("2026-09"))

	state := st.State()
	assert.Len(t, state.Attendance, 2)
	for _, att := range state.Attendance {
		assert.Contains(t, att.Date, "2026-09")
	}
}

func TestStoreWipe(t *testing.T) {
	kv := kvstore.NewInMemKV()
	st := NewStore(kv, "data_backup")
	st.Load()

	assert.NoError(t, st.Apply(AddSubject{ID: "S1", Name: "Math"}))
	assert.NoError(t, st.Wipe())

	assert.Empty(t, st.State().Subjects)
	_, err := kv.Get("data_backup")
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	// wiping twice must not fail on the missing key
	assert.NoError(t, st.Wipe())
}

func TestStoreUnreadRecomputedOnApply(t *testing.T) {
	st := newTestStore(t)

	assert.NoError(t, st.Apply(SubmitTask{TaskID: "T1", StudentIDs: []ID{"1", "2"}, Link: "https://x"}))
	assert.Equal(t, 2, st.UnreadSubmissions())

	assert.NoError(t, st.Apply(AddScore{StudentID: "1", TaskID: "T1", Score: 8}))
	assert.Equal(t, 1, st.UnreadSubmissions())
}
