package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classware/quizdesk/internal/analytics"
	"github.com/classware/quizdesk/internal/audit"
	"github.com/classware/quizdesk/internal/auth"
	"github.com/classware/quizdesk/internal/quiz"
)

func qidParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "qid"), 10, 64)
}

func student(r *http.Request, w http.ResponseWriter) (quiz.Student, bool) {
	st, ok := auth.StudentFromContext(r.Context())
	if !ok {
		errJSON(w, http.StatusUnauthorized, "not logged in")
	}
	return st, ok
}

// quizError maps the core sentinels onto user-facing replies. None of the
// flow-control conditions are server errors.
func quizError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrAdminCannotTake):
		errJSON(w, http.StatusForbidden, "admins cannot take the quiz, use a student account")
	case errors.Is(err, quiz.ErrNoActiveSet):
		errJSON(w, http.StatusNotFound, "no quiz available right now, contact your administrator")
	case errors.Is(err, quiz.ErrNoLiveSession):
		writeJSON(w, http.StatusOK, quiz.Directive{Step: quiz.StepStart})
	case errors.Is(err, quiz.ErrQuestionNotFound):
		errJSON(w, http.StatusNotFound, "question not found")
	case errors.Is(err, quiz.ErrTimerRunning):
		errJSON(w, http.StatusConflict, "timer already running for this question")
	case errors.Is(err, quiz.ErrNoAnswerSelected):
		errJSON(w, http.StatusBadRequest, "please select an answer")
	default:
		errJSON(w, http.StatusInternalServerError, "something went wrong, please retry")
	}
}

// POST /quiz/start
func StartQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		d, err := svc.StartQuiz(r.Context(), st)
		if err != nil {
			quizError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// GET /quiz/ready/{qid}
func ReadyHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		qid, err := qidParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		view, err := svc.EnterReady(r.Context(), st, qid)
		if err != nil {
			quizError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// POST /quiz/timer/{qid}
func StartTimerHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		qid, err := qidParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		d, err := svc.StartTimer(r.Context(), st, qid)
		if err != nil {
			quizError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// GET /quiz/question/{qid}
func ViewQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		qid, err := qidParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		out, err := svc.ViewQuestion(r.Context(), st, qid)
		if err != nil {
			quizError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /quiz/question/{qid} {"selected": "..."}
func SubmitAnswerHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		qid, err := qidParam(r)
		if err != nil {
			errJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		var req struct {
			Selected string `json:"selected"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "bad json")
			return
		}
		res, err := svc.SubmitAnswer(r.Context(), st, qid, req.Selected)
		if err != nil {
			quizError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /quiz/score: finalizes a live attempt (idempotently) and decorates
// the result with rank, top scorer and the missed-question list.
func ScoreHandler(svc *quiz.Service, stats *analytics.Service, events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		res, fresh, err := svc.Result(r.Context(), st)
		if err != nil {
			quizError(w, err)
			return
		}
		if fresh {
			key := fmt.Sprintf("%d:%d", res.Attempt.StudentID, res.Attempt.SetID)
			if err := events.Append(r.Context(), audit.TypeAttemptCompleted, key, res.Attempt); err != nil {
				log.Printf("event log append failed: %v", err)
			}
		}

		rank, err := stats.Rank(r.Context(), res.Attempt.Score)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "score lookup failed")
			return
		}
		top, err := stats.TopScorer(r.Context())
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "score lookup failed")
			return
		}
		missed, err := stats.MissedQuestions(r.Context(), st.ID, res.Attempt.SetID)
		if err != nil {
			errJSON(w, http.StatusInternalServerError, "score lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"attempt":            res.Attempt,
			"total_questions":    res.TotalQuestions,
			"max_possible_score": res.MaxPossible,
			"rank":               rank,
			"top_scorer":         top,
			"missed_questions":   missed,
		})
	}
}

func beaconEvent(status quiz.BeaconStatus) string {
	switch status {
	case quiz.BeaconDisqualified:
		return audit.TypeAttemptDisqualified
	case quiz.BeaconSuccess:
		return audit.TypeAttemptIncomplete
	default:
		return ""
	}
}

// POST /quiz/disqualify: fire-and-forget beacon on tab blur.
func DisqualifyHandler(svc *quiz.Service, events *audit.EventRepo) http.HandlerFunc {
	return beaconHandler(events, func(r *http.Request, st quiz.Student) quiz.BeaconStatus {
		return svc.Disqualify(r.Context(), st)
	})
}

// POST /quiz/abandon: fire-and-forget beacon on page unload.
func AbandonHandler(svc *quiz.Service, events *audit.EventRepo) http.HandlerFunc {
	return beaconHandler(events, func(r *http.Request, st quiz.Student) quiz.BeaconStatus {
		return svc.AutoRecordAbandoned(r.Context(), st)
	})
}

func beaconHandler(events *audit.EventRepo, fn func(*http.Request, quiz.Student) quiz.BeaconStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := student(r, w)
		if !ok {
			return
		}
		status := fn(r, st)
		if typ := beaconEvent(status); typ != "" {
			if err := events.Append(r.Context(), typ, strconv.FormatInt(st.ID, 10), map[string]any{"status": status}); err != nil {
				log.Printf("event log append failed: %v", err)
			}
		}
		code := http.StatusOK
		if status == quiz.BeaconError {
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, map[string]quiz.BeaconStatus{"status": status})
	}
}
