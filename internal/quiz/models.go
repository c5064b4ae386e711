package quiz

import "time"

// Question types.
const (
	TypeMCQ       = "mcq"
	TypeTrueFalse = "true_false"
	TypeImage     = "image"
)

// Terminal attempt statuses. Exactly one attempt row may exist per
// (student, category, question set), whatever its status.
const (
	StatusCompleted    = "completed"
	StatusIncomplete   = "incomplete"
	StatusDisqualified = "disqualified"
)

// DefaultCategory is the fallback when a student's section has no active set.
const DefaultCategory = "General"

type Student struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	// Marks mirrors the score of the most recent finalized attempt.
	// Last-attempt-wins; kept for the legacy leaderboard and rank queries.
	Marks        *int   `json:"marks,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	SessionToken string `json:"-"`
	SectionID    *int64 `json:"section_id,omitempty"`
	Shuffle      bool   `json:"shuffle_questions"`
}

type Section struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// QuestionSet is a named exam definition scoped to a category. At most one
// set per category may be active at a time.
type QuestionSet struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"quiz_category"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

type Question struct {
	ID           int64  `json:"q_id"`
	SetID        *int64 `json:"question_set_id,omitempty"`
	Category     string `json:"quiz_category"`
	Type         string `json:"type"`
	Text         string `json:"ques"`
	OptionA      string `json:"a"`
	OptionB      string `json:"b"`
	OptionC      string `json:"c,omitempty"`
	OptionD      string `json:"d,omitempty"`
	Answer       string `json:"-"`
	TimeLimitSec int    `json:"time_limit"`
	// Points is stored and displayed but scoring awards a flat 1 point per
	// correct on-time answer. Known gap carried over from the original app.
	Points      int    `json:"points"`
	Explanation string `json:"explanation,omitempty"`
	MediaKey    string `json:"media_key,omitempty"`
}

// Options returns the labeled options for rendering: two for true/false,
// up to four otherwise. Empty options are dropped.
func (q Question) Options() []string {
	if q.Type == TypeTrueFalse {
		return []string{q.OptionA, q.OptionB}
	}
	opts := make([]string, 0, 4)
	for _, o := range []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD} {
		if o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}

// Attempt is the durable terminal record of one pass through one question
// set. Its presence is the authoritative "already took this quiz" gate.
type Attempt struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"user_id"`
	Category  string    `json:"quiz_category"`
	SetID     int64     `json:"question_set_id"`
	Status    string    `json:"status"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"timestamp"`
}

// Response records one answered question, for analytics only. Scoring is
// session-accumulated and persisted once at finalization.
type Response struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"user_id"`
	QID       int64     `json:"q_id"`
	SetID     int64     `json:"question_set_id"`
	Category  string    `json:"quiz_category"`
	Selected  string    `json:"selected"`
	Correct   bool      `json:"is_correct"`
	CreatedAt time.Time `json:"timestamp"`
}
