package attempts

import "time"

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"

	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Turn is one question and its answer. Index is 1-based and dense.
type Turn struct {
	Index      int        `json:"index"`
	Question   string     `json:"question"`
	Answer     *string    `json:"answer"`
	AskedAt    time.Time  `json:"askedAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
	TimedOut   bool       `json:"timedOut"`
}

// Answered reports whether the turn has been closed, by an answer or a timeout.
func (t Turn) Answered() bool {
	return t.AnsweredAt != nil
}

// Attempt is one candidate's run through one interview.
type Attempt struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"subjectId"`
	PositionID     string     `json:"positionId"`
	JobTitle       string     `json:"jobTitle"`
	JobDescription string     `json:"jobDescription"`
	ResumeKey      string     `json:"resumeKey,omitempty"`
	ResumeText     string     `json:"resumeText,omitempty"`
	Questions      []string   `json:"questions,omitempty"`
	Turns          []Turn     `json:"turns"`
	QuestionCount  int        `json:"questionCount"`
	Score          *float64   `json:"score,omitempty"`
	Feedback       *string    `json:"feedback,omitempty"`
	Verdict        *string    `json:"verdict,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// Open reports whether a session may start on the attempt.
func (a Attempt) Open() bool {
	return a.Status == StatusInProgress && a.QuestionCount == 0
}

// SubjectContext is what the interviewer knows about the candidate and role.
type SubjectContext struct {
	JobTitle       string
	JobDescription string
	ResumeKey      string
	ResumeText     string
	Questions      []string
}

// Result is the evaluation outcome stored on completion.
type Result struct {
	Score       float64
	Feedback    string
	Verdict     string
	CompletedAt time.Time
}

// Timestamp normalizes t to the precision Postgres keeps, so stored and
// reloaded turns compare equal.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
