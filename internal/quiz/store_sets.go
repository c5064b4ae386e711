package quiz

import (
	"context"
	"database/sql"
	"errors"
)

var ErrSetNotFound = errors.New("question set not found")

// ActivateQuestionSet makes one set the active set for its category.
// Deactivating the siblings and activating the target run in a single
// transaction so at most one set per category is active at any observable
// instant, even when two admins toggle concurrently.
func (s *SQLStore) ActivateQuestionSet(ctx context.Context, setID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var category string
	err = tx.QueryRowContext(ctx,
		`SELECT quiz_category FROM question_sets WHERE id=$1`, setID).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSetNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE question_sets SET is_active=FALSE WHERE quiz_category=$1`, category); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE question_sets SET is_active=TRUE WHERE id=$1`, setID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeactivateQuestionSet leaves the category with no active set, which
// renders the quiz unavailable for its students.
func (s *SQLStore) DeactivateQuestionSet(ctx context.Context, setID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE question_sets SET is_active=FALSE WHERE id=$1`, setID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSetNotFound
	}
	return nil
}
