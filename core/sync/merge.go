// Package sync implements the offline-first synchronization layer: the
// server-into-local merge, the durable retry queue and the engine that
// coordinates pulls, optimistic pushes and queue drains.
package sync

import (
	"encoding/json"
	"strings"

	"github.com/trezcool/darasa/core/classroom"
)

// MergeState reconciles a server state into a local one, collection by
// collection. The server is the durable source of truth: its records win
// field-for-field on key conflict, while local-only records (optimistic
// writes not yet round-tripped) are preserved. The reverse merge is
// intentionally never done.
//
// The returns collection is carried verbatim from the local side; the
// endpoint has never produced reconcilable records for it.
func MergeState(local, server classroom.State) classroom.State {
	out := local
	out.Subjects = mergeRecords(local.Subjects, server.Subjects,
		func(s classroom.Subject) string { return string(s.ID) })
	out.Classes = mergeRecords(local.Classes, server.Classes,
		func(c classroom.Class) string { return string(c.ID) })
	out.Students = mergeRecords(local.Students, server.Students,
		func(s classroom.Student) string { return string(s.ID) })
	out.Tasks = mergeRecords(local.Tasks, server.Tasks,
		func(t classroom.Task) string { return string(t.ID) })
	out.Scores = mergeRecords(local.Scores, server.Scores,
		func(s classroom.Score) string { return compositeKey(string(s.StudentID), string(s.TaskID)) })
	out.Attendance = mergeRecords(local.Attendance, server.Attendance,
		func(a classroom.Attendance) string { return compositeKey(string(a.StudentID), a.Date) })
	out.Submissions = mergeRecords(local.Submissions, server.Submissions,
		func(s classroom.Submission) string { return compositeKey(string(s.StudentID), string(s.TaskID)) })
	out.Materials = mergeRecords(local.Materials, server.Materials,
		func(m classroom.Material) string { return string(m.ID) })
	out.Schedules = mergeRecords(local.Schedules, server.Schedules,
		func(s classroom.Schedule) string { return string(s.ID) })
	return out
}

// mergeRecords merges a server collection into a local one by key. Runs in
// O(local × server) with a linear scan per server record; fine at classroom
// scale (hundreds of records). Revisit with a key index before reusing this
// at any larger scale.
func mergeRecords[T any](local, server []T, key func(T) string) []T {
	merged := append([]T(nil), local...)
	for _, sv := range server {
		k := key(sv)
		idx := -1
		for i := range merged {
			if key(merged[i]) == k {
				idx = i
				break
			}
		}
		if idx >= 0 {
			merged[idx] = overlay(merged[idx], sv)
		} else {
			merged = append(merged, sv)
		}
	}
	return merged
}

// overlay shallow-merges server over local at the JSON field level: every
// field the server serializes replaces the local one, fields the server
// omits keep their local value.
func overlay[T any](local, server T) T {
	lb, lerr := json.Marshal(local)
	sb, serr := json.Marshal(server)
	if lerr != nil || serr != nil {
		return server
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(lb, &m); err != nil {
		return server
	}
	var sm map[string]json.RawMessage
	if err := json.Unmarshal(sb, &sm); err != nil {
		return server
	}
	for k, v := range sm {
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		return server
	}
	var merged T
	if err := json.Unmarshal(out, &merged); err != nil {
		return server
	}
	return merged
}

func compositeKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
