package classroom

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var NowFunc = time.Now // mockable

// Task categories
const (
	CategoryAccum   = "accum"
	CategoryMidterm = "midterm"
	CategoryFinal   = "final"
	CategorySpecial = "special"
)

// Attendance statuses
const (
	StatusPresent = "present"
	StatusLeave   = "leave"
	StatusAbsent  = "absent"
)

// NumChapters is the number of chapter buckets accum scores are split across.
const NumChapters = 6

// ID is a record identifier as it appears on the wire. The endpoint is loose
// about types and returns both JSON strings and numbers for the same field,
// so decoding accepts either; comparisons happen on the string form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// NewID returns a fresh client-generated record ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// Number is a numeric wire field that may arrive as a JSON number or as a
// quoted string (scores are posted straight from text inputs). Unparsable
// values decode to 0, mirroring the endpoint's loose numeric handling.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

type (
	Subject struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	}

	Class struct {
		ID        ID     `json:"id"`
		Name      string `json:"name"`
		SubjectID ID     `json:"subjectId"`
	}

	Student struct {
		ID      ID     `json:"id"`
		ClassID ID     `json:"classId"`
		No      Number `json:"no"`
		Code    string `json:"code"` // human-entered login identifier
		Name    string `json:"name"`
	}

	Task struct {
		ID        ID     `json:"id"`
		ClassID   ID     `json:"classId"`
		SubjectID ID     `json:"subjectId"`
		Category  string `json:"category"`
		// Chapter is a comma list of chapter numbers; only meaningful when
		// Category == CategoryAccum.
		Chapter    string `json:"chapter,omitempty"`
		Name       string `json:"name"`
		MaxScore   Number `json:"maxScore"`
		DueDateISO string `json:"dueDateISO,omitempty"`
	}

	// Score is keyed by (StudentID, TaskID); at most one per pair.
	Score struct {
		StudentID ID     `json:"studentId"`
		TaskID    ID     `json:"taskId"`
		Score     Number `json:"score"`
	}

	// Attendance is keyed by (StudentID, Date); at most one per pair.
	Attendance struct {
		StudentID ID     `json:"studentId"`
		ClassID   ID     `json:"classId"`
		Date      string `json:"date"` // YYYY-MM-DD
		Status    string `json:"status"`
	}

	// Submission is keyed by (StudentID, TaskID); re-submission overwrites.
	Submission struct {
		StudentID    ID     `json:"studentId"`
		TaskID       ID     `json:"taskId"`
		Link         string `json:"link"`
		TimestampISO string `json:"timestampISO"`
		Comment      string `json:"comment,omitempty"`
	}

	Material struct {
		ID        ID     `json:"id"`
		SubjectID ID     `json:"subjectId"`
		Title     string `json:"title"`
		Link      string `json:"link"`
	}

	Schedule struct {
		ID      ID     `json:"id"`
		Day     Number `json:"day"`    // 0–6, Sunday first
		Period  Number `json:"period"` // 1–8
		ClassID ID     `json:"classId"`
	}
)

// State holds all collections mirrored from the endpoint. Returns is carried
// on the wire for compatibility but never reconciled locally.
type State struct {
	Subjects    []Subject         `json:"subjects"`
	Classes     []Class           `json:"classes"`
	Students    []Student         `json:"students"`
	Tasks       []Task            `json:"tasks"`
	Scores      []Score           `json:"scores"`
	Attendance  []Attendance      `json:"attendance"`
	Submissions []Submission      `json:"submissions"`
	Materials   []Material        `json:"materials"`
	Schedules   []Schedule        `json:"schedules"`
	Returns     []json.RawMessage `json:"returns"`
}

// DefaultState returns an empty state with all collections allocated.
func DefaultState() State {
	return State{
		Subjects:    []Subject{},
		Classes:     []Class{},
		Students:    []Student{},
		Tasks:       []Task{},
		Scores:      []Score{},
		Attendance:  []Attendance{},
		Submissions: []Submission{},
		Materials:   []Material{},
		Schedules:   []Schedule{},
		Returns:     []json.RawMessage{},
	}
}

func (s State) clone() State {
	out := s
	out.Subjects = append([]Subject(nil), s.Subjects...)
	out.Classes = append([]Class(nil), s.Classes...)
	out.Students = append([]Student(nil), s.Students...)
	out.Tasks = append([]Task(nil), s.Tasks...)
	out.Scores = append([]Score(nil), s.Scores...)
	out.Attendance = append([]Attendance(nil), s.Attendance...)
	out.Submissions = append([]Submission(nil), s.Submissions...)
	out.Materials = append([]Material(nil), s.Materials...)
	out.Schedules = append([]Schedule(nil), s.Schedules...)
	out.Returns = append([]json.RawMessage(nil), s.Returns...)
	return out
}

// UnreadSubmissions counts submissions that have no corresponding score yet.
func (s State) UnreadSubmissions() int {
	var count int
	for _, sub := range s.Submissions {
		var scored bool
		for _, sc := range s.Scores {
			if sc.StudentID == sub.StudentID && sc.TaskID == sub.TaskID {
				scored = true
				break
			}
		}
		if !scored {
			count++
		}
	}
	return count
}

// SortStudents orders students for display, by class number.
func SortStudents(students []Student) {
	sort.SliceStable(students, func(i, j int) bool { return students[i].No < students[j].No })
}

// SortSchedules orders schedule slots for display, by day then period.
func SortSchedules(schedules []Schedule) {
	sort.SliceStable(schedules, func(i, j int) bool {
		if schedules[i].Day != schedules[j].Day {
			return schedules[i].Day < schedules[j].Day
		}
		return schedules[i].Period < schedules[j].Period
	})
}
