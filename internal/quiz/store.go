package quiz

import "context"

// Store is the persistence surface the state machine needs. The SQL
// implementation lives in store_sql.go; tests use an in-memory fake.
type Store interface {
	// ActiveSet returns the single active question set for a category, or
	// ErrNoActiveSet when the category has none.
	ActiveSet(ctx context.Context, category string) (QuestionSet, error)

	// SectionName resolves a section ID to its name (sections double as
	// quiz categories). Missing sections report an error.
	SectionName(ctx context.Context, id int64) (string, error)

	// QuestionIDs lists the IDs of every question in a set, ascending.
	QuestionIDs(ctx context.Context, setID int64) ([]int64, error)

	// QuestionInSet fetches a question only if it belongs to the given set;
	// ErrQuestionNotFound otherwise.
	QuestionInSet(ctx context.Context, qid, setID int64) (Question, error)

	// AttemptFor returns the attempt row for (student, category, set), or
	// nil when the student has not finalized this quiz.
	AttemptFor(ctx context.Context, studentID int64, category string, setID int64) (*Attempt, error)

	// FinalizeAttempt inserts the terminal attempt row and mirrors the
	// score onto the student's legacy marks field in one transaction.
	// A row already present for the tuple yields ErrAttemptExists and no
	// other change.
	FinalizeAttempt(ctx context.Context, a Attempt) (Attempt, error)

	// InsertResponse records one answered question for analytics.
	InsertResponse(ctx context.Context, r Response) error
}
