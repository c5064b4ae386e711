package auth

import (
	"context"

	"github.com/classware/quizdesk/internal/quiz"
)

type ctxKey struct{}

var ctxKeyStudent = ctxKey{}

func WithStudent(ctx context.Context, st quiz.Student) context.Context {
	return context.WithValue(ctx, ctxKeyStudent, st)
}

func StudentFromContext(ctx context.Context) (quiz.Student, bool) {
	v := ctx.Value(ctxKeyStudent)
	if v == nil {
		return quiz.Student{}, false
	}
	st, ok := v.(quiz.Student)
	return st, ok
}
