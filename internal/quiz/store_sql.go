package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) ActiveSet(ctx context.Context, category string) (QuestionSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, quiz_category, description, is_active
		 FROM question_sets WHERE quiz_category=$1 AND is_active=TRUE`, category)
	var qs QuestionSet
	if err := row.Scan(&qs.ID, &qs.Name, &qs.Category, &qs.Description, &qs.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuestionSet{}, ErrNoActiveSet
		}
		return QuestionSet{}, err
	}
	return qs, nil
}

func (s *SQLStore) SectionName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sections WHERE id=$1`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("section %d not found", id)
	}
	return name, err
}

func (s *SQLStore) QuestionIDs(ctx context.Context, setID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q_id FROM questions WHERE question_set_id=$1 ORDER BY q_id ASC`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) QuestionInSet(ctx context.Context, qid, setID int64) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT q_id, question_set_id, quiz_category, qtype, ques, a, b, c, d, ans,
		        time_limit, points, explanation, media_key
		 FROM questions WHERE q_id=$1 AND question_set_id=$2`, qid, setID)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrQuestionNotFound
	}
	return q, err
}

func (s *SQLStore) AttemptFor(ctx context.Context, studentID int64, category string, setID int64) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, quiz_category, question_set_id, status, score, created_at
		 FROM quiz_scores WHERE user_id=$1 AND quiz_category=$2 AND question_set_id=$3`,
		studentID, category, setID)
	var a Attempt
	if err := row.Scan(&a.ID, &a.StudentID, &a.Category, &a.SetID, &a.Status, &a.Score, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// FinalizeAttempt inserts the terminal row and mirrors the score onto the
// student's legacy marks field in one transaction. The UNIQUE constraint on
// (user_id, quiz_category, question_set_id) is the arbiter when two
// finalize-type writes race; the loser sees ErrAttemptExists.
func (s *SQLStore) FinalizeAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO quiz_scores (user_id, quiz_category, question_set_id, status, score, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		a.StudentID, a.Category, a.SetID, a.Status, a.Score, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Attempt{}, ErrAttemptExists
		}
		return Attempt{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET marks=$1 WHERE id=$2`, a.Score, a.StudentID); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) InsertResponse(ctx context.Context, r Response) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (user_id, q_id, question_set_id, quiz_category, selected, is_correct, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.StudentID, r.QID, r.SetID, r.Category, r.Selected, r.Correct, r.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	var setID sql.NullInt64
	var c, d, expl, media sql.NullString
	err := row.Scan(&q.ID, &setID, &q.Category, &q.Type, &q.Text, &q.OptionA, &q.OptionB,
		&c, &d, &q.Answer, &q.TimeLimitSec, &q.Points, &expl, &media)
	if err != nil {
		return Question{}, err
	}
	if setID.Valid {
		q.SetID = &setID.Int64
	}
	q.OptionC, q.OptionD = c.String, d.String
	q.Explanation, q.MediaKey = expl.String, media.String
	return q, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") || // postgres
		strings.Contains(msg, "sqlstate 23505")
}
