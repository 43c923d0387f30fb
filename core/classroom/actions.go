package classroom

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind tags a mutation on the wire (the "action" envelope field).
type Kind string

const (
	KindAddSubject     Kind = "addSubject"
	KindAddClass       Kind = "addClass"
	KindAddStudent     Kind = "addStudent"
	KindAddTask        Kind = "addTask"
	KindAddScore       Kind = "addScore"
	KindAddAttendance  Kind = "addAttendance"
	KindSubmitTask     Kind = "submitTask"
	KindAddSchedule    Kind = "addSchedule"
	KindAddMaterial    Kind = "addMaterial"
	KindDeleteMaterial Kind = "deleteMaterial"
	KindDeleteSchedule Kind = "deleteSchedule"
)

var ErrUnknownAction = errors.New("unknown action")

// Action is one typed mutation of the local state. Applying an action twice
// leaves the state as if it had been applied once: keyed kinds upsert, id'd
// kinds skip existing records.
type Action interface {
	Kind() Kind
	apply(s *State)
}

type (
	AddSubject struct {
		ID   ID     `json:"id" validate:"required"`
		Name string `json:"name" validate:"required"`
	}

	AddClass struct {
		ID        ID     `json:"id" validate:"required"`
		Name      string `json:"name" validate:"required"`
		SubjectID ID     `json:"subjectId" validate:"required"`
	}

	AddStudent struct {
		ID      ID     `json:"id" validate:"required"`
		ClassID ID     `json:"classId" validate:"required"`
		No      Number `json:"no"`
		Code    string `json:"code" validate:"required"`
		Name    string `json:"name" validate:"required"`
	}

	// AddTask expands into one task per selected class, with ids of the form
	// "<id>-<index>".
	AddTask struct {
		ID         ID       `json:"id" validate:"required"`
		ClassIDs   []ID     `json:"classIds" validate:"required,min=1"`
		SubjectID  ID       `json:"subjectId" validate:"required"`
		Category   string   `json:"category" validate:"required,oneof=accum midterm final special"`
		Chapter    []string `json:"chapter,omitempty"`
		Name       string   `json:"name" validate:"required"`
		MaxScore   Number   `json:"maxScore"`
		DueDateISO string   `json:"dueDateISO,omitempty"`
	}

	AddScore struct {
		StudentID ID     `json:"studentId" validate:"required"`
		TaskID    ID     `json:"taskId" validate:"required"`
		Score     Number `json:"score"`
	}

	AddAttendance struct {
		StudentID ID     `json:"studentId" validate:"required"`
		ClassID   ID     `json:"classId" validate:"required"`
		Date      string `json:"date" validate:"required"`
		Status    string `json:"status" validate:"required,oneof=present leave absent"`
	}

	// SubmitTask expands into one submission per selected student.
	SubmitTask struct {
		TaskID     ID     `json:"taskId" validate:"required"`
		StudentIDs []ID   `json:"studentIds" validate:"required,min=1"`
		Link       string `json:"link" validate:"required"`
		Comment    string `json:"comment,omitempty"`
	}

	AddSchedule struct {
		ID      ID     `json:"id" validate:"required"`
		Day     Number `json:"day" validate:"min=0,max=6"`
		Period  Number `json:"period" validate:"min=1,max=8"`
		ClassID ID     `json:"classId" validate:"required"`
	}

	AddMaterial struct {
		ID        ID     `json:"id" validate:"required"`
		SubjectID ID     `json:"subjectId" validate:"required"`
		Title     string `json:"title" validate:"required"`
		Link      string `json:"link" validate:"required"`
	}

	DeleteMaterial struct {
		ID ID `json:"id" validate:"required"`
	}

	DeleteSchedule struct {
		ID ID `json:"id" validate:"required"`
	}
)

func (AddSubject) Kind() Kind     { return KindAddSubject }
func (AddClass) Kind() Kind       { return KindAddClass }
func (AddStudent) Kind() Kind     { return KindAddStudent }
func (AddTask) Kind() Kind        { return KindAddTask }
func (AddScore) Kind() Kind       { return KindAddScore }
func (AddAttendance) Kind() Kind  { return KindAddAttendance }
func (SubmitTask) Kind() Kind     { return KindSubmitTask }
func (AddSchedule) Kind() Kind    { return KindAddSchedule }
func (AddMaterial) Kind() Kind    { return KindAddMaterial }
func (DeleteMaterial) Kind() Kind { return KindDeleteMaterial }
func (DeleteSchedule) Kind() Kind { return KindDeleteSchedule }

func (a AddSubject) apply(s *State) {
	for _, sub := range s.Subjects {
		if sub.ID == a.ID {
			return
		}
	}
	s.Subjects = append(s.Subjects, Subject{ID: a.ID, Name: a.Name})
}

func (a AddClass) apply(s *State) {
	for _, c := range s.Classes {
		if c.ID == a.ID {
			return
		}
	}
	s.Classes = append(s.Classes, Class{ID: a.ID, Name: a.Name, SubjectID: a.SubjectID})
}

func (a AddStudent) apply(s *State) {
	for _, st := range s.Students {
		if st.ID == a.ID {
			return
		}
	}
	s.Students = append(s.Students, Student{ID: a.ID, ClassID: a.ClassID, No: a.No, Code: a.Code, Name: a.Name})
}

func (a AddTask) apply(s *State) {
	chapter := strings.Join(a.Chapter, ",")
	for idx, cid := range a.ClassIDs {
		taskID := ID(fmt.Sprintf("%s-%d", a.ID, idx))
		var exists bool
		for _, t := range s.Tasks {
			if t.ID == taskID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		s.Tasks = append(s.Tasks, Task{
			ID:         taskID,
			ClassID:    cid,
			SubjectID:  a.SubjectID,
			Category:   a.Category,
			Chapter:    chapter,
			Name:       a.Name,
			MaxScore:   a.MaxScore,
			DueDateISO: a.DueDateISO,
		})
	}
}

func (a AddScore) apply(s *State) {
	for i, sc := range s.Scores {
		if sc.StudentID == a.StudentID && sc.TaskID == a.TaskID {
			s.Scores[i].Score = a.Score
			return
		}
	}
	s.Scores = append(s.Scores, Score{StudentID: a.StudentID, TaskID: a.TaskID, Score: a.Score})
}

func (a AddAttendance) apply(s *State) {
	for i, att := range s.Attendance {
		if att.StudentID == a.StudentID && att.Date == a.Date {
			s.Attendance[i].Status = a.Status
			return
		}
	}
	s.Attendance = append(s.Attendance, Attendance{StudentID: a.StudentID, ClassID: a.ClassID, Date: a.Date, Status: a.Status})
}

func (a SubmitTask) apply(s *State) {
	now := NowFunc().UTC().Format(time.RFC3339)
	for _, sid := range a.StudentIDs {
		var found bool
		for i, sub := range s.Submissions {
			if sub.StudentID == sid && sub.TaskID == a.TaskID {
				s.Submissions[i].Link = a.Link
				s.Submissions[i].TimestampISO = now
				s.Submissions[i].Comment = a.Comment
				found = true
				break
			}
		}
		if !found {
			s.Submissions = append(s.Submissions, Submission{
				StudentID:    sid,
				TaskID:       a.TaskID,
				Link:         a.Link,
				TimestampISO: now,
				Comment:      a.Comment,
			})
		}
	}
}

func (a AddSchedule) apply(s *State) {
	for _, sch := range s.Schedules {
		if sch.ID == a.ID {
			return
		}
	}
	s.Schedules = append(s.Schedules, Schedule{ID: a.ID, Day: a.Day, Period: a.Period, ClassID: a.ClassID})
}

func (a AddMaterial) apply(s *State) {
	for _, m := range s.Materials {
		if m.ID == a.ID {
			return
		}
	}
	s.Materials = append(s.Materials, Material{ID: a.ID, SubjectID: a.SubjectID, Title: a.Title, Link: a.Link})
}

func (a DeleteMaterial) apply(s *State) {
	kept := s.Materials[:0]
	for _, m := range s.Materials {
		if m.ID != a.ID {
			kept = append(kept, m)
		}
	}
	s.Materials = kept
}

func (a DeleteSchedule) apply(s *State) {
	kept := s.Schedules[:0]
	for _, sch := range s.Schedules {
		if sch.ID != a.ID {
			kept = append(kept, sch)
		}
	}
	s.Schedules = kept
}

// MarshalAction serializes an action into its wire envelope,
// {"action": <kind>, ...fields}.
func MarshalAction(a Action) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling action")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "flattening action")
	}
	kind, err := json.Marshal(a.Kind())
	if err != nil {
		return nil, err
	}
	m["action"] = kind
	return json.Marshal(m)
}

// DecodeAction parses a wire envelope back into its typed action.
func DecodeAction(data []byte) (Action, error) {
	var env struct {
		Action Kind `json:"action"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decoding action envelope")
	}

	var a Action
	switch env.Action {
	case KindAddSubject:
		a = &AddSubject{}
	case KindAddClass:
		a = &AddClass{}
	case KindAddStudent:
		a = &AddStudent{}
	case KindAddTask:
		a = &AddTask{}
	case KindAddScore:
		a = &AddScore{}
	case KindAddAttendance:
		a = &AddAttendance{}
	case KindSubmitTask:
		a = &SubmitTask{}
	case KindAddSchedule:
		a = &AddSchedule{}
	case KindAddMaterial:
		a = &AddMaterial{}
	case KindDeleteMaterial:
		a = &DeleteMaterial{}
	case KindDeleteSchedule:
		a = &DeleteSchedule{}
	default:
		return nil, errors.Wrapf(ErrUnknownAction, "%q", env.Action)
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, errors.Wrapf(err, "decoding %q action", env.Action)
	}
	return a, nil
}
