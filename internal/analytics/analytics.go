// Package analytics is the read side of the quiz service: ranks,
// leaderboards and per-question tallies derived from persisted attempts
// and responses. Nothing here participates in the state machine's
// invariants.
package analytics

import (
	"context"
	"database/sql"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service { return &Service{db: db} }

type Leader struct {
	Username string `json:"username"`
	Marks    int    `json:"marks"`
}

// Rank is one plus the number of non-admin students whose legacy marks
// strictly beat the given score.
func (s *Service) Rank(ctx context.Context, score int) (int, error) {
	var better int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_admin=FALSE AND marks > $1`, score).Scan(&better)
	if err != nil {
		return 0, err
	}
	return better + 1, nil
}

func (s *Service) TopScorer(ctx context.Context) (*Leader, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, COALESCE(marks,0) FROM users WHERE is_admin=FALSE
		 ORDER BY COALESCE(marks,0) DESC LIMIT 1`)
	var l Leader
	if err := row.Scan(&l.Username, &l.Marks); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// Leaderboard returns the top scoring students, podium-sized by default.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Leader, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, COALESCE(marks,0) FROM users
		 WHERE is_admin=FALSE AND marks IS NOT NULL
		 ORDER BY marks DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Leader
	for rows.Next() {
		var l Leader
		if err := rows.Scan(&l.Username, &l.Marks); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type MissedQuestion struct {
	QID         int64  `json:"q_id"`
	Text        string `json:"ques"`
	Selected    string `json:"selected,omitempty"` // empty when never answered
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// MissedQuestions lists what a student got wrong in a set, straight from
// the persisted response rows, plus set questions that never got a
// response at all (expired or abandoned).
func (s *Service) MissedQuestions(ctx context.Context, studentID, setID int64) ([]MissedQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.q_id, q.ques, COALESCE(r.selected,''), q.ans, COALESCE(q.explanation,'')
		 FROM questions q
		 LEFT JOIN responses r ON r.q_id = q.q_id AND r.user_id = $1
		 WHERE q.question_set_id = $2 AND (r.id IS NULL OR r.is_correct = FALSE)
		 ORDER BY q.q_id ASC`, studentID, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MissedQuestion
	for rows.Next() {
		var m MissedQuestion
		if err := rows.Scan(&m.QID, &m.Text, &m.Selected, &m.Answer, &m.Explanation); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type QuestionStat struct {
	QID         int64          `json:"q_id"`
	Text        string         `json:"ques"`
	Correct     int            `json:"correct"`
	Wrong       int            `json:"wrong"`
	Distractors map[string]int `json:"distractors"` // selected option -> count, wrong answers only
}

// QuestionStats tallies correctness and distractor picks per question in a
// set, for the admin analytics screen.
func (s *Service) QuestionStats(ctx context.Context, setID int64) ([]QuestionStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.q_id, q.ques, r.selected, r.is_correct
		 FROM questions q
		 JOIN responses r ON r.q_id = q.q_id
		 WHERE q.question_set_id = $1
		 ORDER BY q.q_id ASC`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[int64]*QuestionStat{}
	var order []int64
	for rows.Next() {
		var qid int64
		var text, selected string
		var correct bool
		if err := rows.Scan(&qid, &text, &selected, &correct); err != nil {
			return nil, err
		}
		st, ok := byID[qid]
		if !ok {
			st = &QuestionStat{QID: qid, Text: text, Distractors: map[string]int{}}
			byID[qid] = st
			order = append(order, qid)
		}
		if correct {
			st.Correct++
		} else {
			st.Wrong++
			st.Distractors[selected]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]QuestionStat, 0, len(order))
	for _, qid := range order {
		out = append(out, *byID[qid])
	}
	return out, nil
}

type Counts struct {
	Questions int `json:"question_count"`
	Students  int `json:"student_count"`
	Admins    int `json:"admin_count"`
}

func (s *Service) DashboardCounts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&c.Questions); err != nil {
		return Counts{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin=FALSE`).Scan(&c.Students); err != nil {
		return Counts{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin=TRUE`).Scan(&c.Admins); err != nil {
		return Counts{}, err
	}
	return c, nil
}
