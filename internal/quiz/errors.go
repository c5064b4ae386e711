package quiz

import "errors"

var (
	ErrNoActiveSet      = errors.New("no active question set for category")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptExists    = errors.New("attempt already recorded")
	ErrNoLiveSession    = errors.New("no quiz in progress")
	ErrTimerRunning     = errors.New("timer already started for question")
	ErrAdminCannotTake  = errors.New("admins cannot take the quiz")
	ErrNoAnswerSelected = errors.New("no answer selected")
)
