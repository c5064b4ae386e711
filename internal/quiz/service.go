package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Step tells the caller which screen to route the student to next.
type Step string

const (
	StepStart    Step = "start"
	StepReady    Step = "ready"
	StepQuestion Step = "question"
	StepScore    Step = "score"
)

type Directive struct {
	Step       Step  `json:"step"`
	QuestionID int64 `json:"question_id,omitempty"`
}

// BeaconStatus is the structured reply for the fire-and-forget page
// lifecycle calls (disqualify, abandonment).
type BeaconStatus string

const (
	BeaconIgnored         BeaconStatus = "ignored"
	BeaconDisqualified    BeaconStatus = "disqualified"
	BeaconAlreadyRecorded BeaconStatus = "already_recorded"
	BeaconSuccess         BeaconStatus = "success"
	BeaconError           BeaconStatus = "error"
)

type ReadyView struct {
	QuestionID   int64 `json:"question_id"`
	TimeLimitSec int   `json:"time_limit"`
	Current      int   `json:"current_question"`
	Total        int   `json:"total_questions"`
}

type QuestionView struct {
	Question     Question `json:"question"`
	Options      []string `json:"options"`
	RemainingSec int      `json:"remaining_time"`
	Current      int      `json:"current_question"`
	Total        int      `json:"total_questions"`
}

// QuestionOutcome is either a rendered question or a directive to move on.
type QuestionOutcome struct {
	Next *Directive    `json:"next,omitempty"`
	View *QuestionView `json:"view,omitempty"`
}

// FinalizeResult is the terminal payload of a completed attempt. Rank and
// leaderboard decoration are read-side and added by the analytics layer.
type FinalizeResult struct {
	Attempt        Attempt `json:"attempt"`
	TotalQuestions int     `json:"total_questions"`
	MaxPossible    int     `json:"max_possible_score"`
}

// GraceSec absorbs network latency on submissions: answers arriving past
// the limit but within the grace window are recorded, just never scored.
const GraceSec = 5

// Service is the quiz session state machine. All operations take the
// acting student explicitly; there is no ambient request state.
type Service struct {
	store    Store
	sessions *SessionStore
	grace    time.Duration
	now      func() time.Time
	shuffle  func(n int, swap func(i, j int))
}

func NewService(store Store, sessions *SessionStore) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		grace:    GraceSec * time.Second,
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
}

// SetGrace overrides the default submission grace window. Zero or
// negative values are ignored.
func (s *Service) SetGrace(d time.Duration) {
	if d > 0 {
		s.grace = d
	}
}

// resolveCategory picks the effective quiz category for a student: the home
// section's category when that section has an active set, else General.
func (s *Service) resolveCategory(ctx context.Context, st Student) (string, error) {
	if st.SectionID == nil {
		return DefaultCategory, nil
	}
	name, err := s.store.SectionName(ctx, *st.SectionID)
	if err != nil {
		return "", fmt.Errorf("resolve section: %w", err)
	}
	if _, err := s.store.ActiveSet(ctx, name); err != nil {
		if errors.Is(err, ErrNoActiveSet) {
			return DefaultCategory, nil
		}
		return "", err
	}
	return name, nil
}

// StartQuiz begins a new attempt at the active set for the student's
// effective category. A stale live session is auto-recorded as incomplete
// first, and the terminal-state guard is re-checked afterwards.
func (s *Service) StartQuiz(ctx context.Context, st Student) (Directive, error) {
	if st.IsAdmin {
		return Directive{}, ErrAdminCannotTake
	}
	category, err := s.resolveCategory(ctx, st)
	if err != nil {
		return Directive{}, err
	}
	set, err := s.store.ActiveSet(ctx, category)
	if err != nil {
		return Directive{}, err
	}

	check := func() (*Attempt, error) {
		return s.store.AttemptFor(ctx, st.ID, category, set.ID)
	}
	if prev, err := check(); err != nil {
		return Directive{}, err
	} else if prev != nil {
		return Directive{Step: StepScore}, nil
	}

	// Abandoned in-progress session (same or different target): record it
	// as incomplete with whatever score it accumulated, so navigating back
	// to /quiz/start can never grant a free retry.
	if live, ok := s.sessions.Get(st.ID); ok {
		live.mu.Lock()
		err := s.recordTerminal(ctx, st, live, StatusIncomplete)
		live.mu.Unlock()
		if err != nil && !errors.Is(err, ErrAttemptExists) {
			return Directive{}, err
		}
		s.sessions.Delete(st.ID)
		// The auto-record may have landed on the very tuple we are about
		// to start, or raced a genuine finalize. Re-check.
		if prev, err := check(); err != nil {
			return Directive{}, err
		} else if prev != nil {
			return Directive{Step: StepScore}, nil
		}
	}

	ids, err := s.store.QuestionIDs(ctx, set.ID)
	if err != nil {
		return Directive{}, err
	}
	if len(ids) == 0 {
		return Directive{}, ErrNoActiveSet
	}
	queue := append([]int64(nil), ids...)
	if st.Shuffle {
		s.shuffle(len(queue), func(i, j int) { queue[i], queue[j] = queue[j], queue[i] })
	}

	s.sessions.Put(st.ID, newLiveSession(category, set.ID, queue, s.now()))
	return Directive{Step: StepReady, QuestionID: queue[0]}, nil
}

// EnterReady serves the interstitial before a question's timer is armed.
func (s *Service) EnterReady(ctx context.Context, st Student, qid int64) (ReadyView, error) {
	live, ok := s.sessions.Get(st.ID)
	if !ok {
		return ReadyView{}, ErrNoLiveSession
	}
	q, err := s.store.QuestionInSet(ctx, qid, live.SetID)
	if err != nil {
		return ReadyView{}, err
	}
	live.mu.Lock()
	cur, total := live.Progress()
	live.mu.Unlock()
	return ReadyView{QuestionID: q.ID, TimeLimitSec: q.TimeLimitSec, Current: cur, Total: total}, nil
}

// StartTimer arms the server-side clock for a question. Re-arming an
// already running timer is rejected so a replayed request cannot reset the
// window.
func (s *Service) StartTimer(ctx context.Context, st Student, qid int64) (Directive, error) {
	live, ok := s.sessions.Get(st.ID)
	if !ok {
		return Directive{}, ErrNoLiveSession
	}
	if _, err := s.store.QuestionInSet(ctx, qid, live.SetID); err != nil {
		return Directive{}, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	if live.Answered[qid] {
		// Expired or already-submitted questions are consumed; arming a
		// fresh timer for one cannot buy a second shot at it.
		return s.advance(live, qid), nil
	}
	if err := live.Arm(qid, s.now()); err != nil {
		return Directive{}, err
	}
	return Directive{Step: StepQuestion, QuestionID: qid}, nil
}

// advance moves past qid: the next queue entry's ready screen, or the
// score step when qid was the last entry. Stale IDs that never belonged to
// the queue fall forward to the first unanswered question.
func (s *Service) advance(live *LiveSession, qid int64) Directive {
	for i, id := range live.Queue {
		if id == qid {
			if i+1 < len(live.Queue) {
				return Directive{Step: StepReady, QuestionID: live.Queue[i+1]}
			}
			return Directive{Step: StepScore}
		}
	}
	for _, id := range live.Queue {
		if !live.Answered[id] {
			return Directive{Step: StepReady, QuestionID: id}
		}
	}
	return Directive{Step: StepScore}
}

// gate runs the shared checks for viewing or submitting a question and
// returns the question plus its elapsed time when the caller may proceed.
// The caller holds live.mu.
func (s *Service) gate(ctx context.Context, live *LiveSession, qid int64) (Question, time.Duration, *Directive, error) {
	q, err := s.store.QuestionInSet(ctx, qid, live.SetID)
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			// Stale bookmark: skip forward, never a hard error.
			d := s.advance(live, qid)
			return Question{}, 0, &d, nil
		}
		return Question{}, 0, nil, err
	}
	if live.Answered[qid] {
		// Replay guard: already handled, move on without rescoring.
		live.Disarm(qid)
		d := s.advance(live, qid)
		return Question{}, 0, &d, nil
	}
	started, armed := live.ArmedAt(qid)
	if !armed {
		// Clock must be explicitly armed before the question is shown.
		return Question{}, 0, &Directive{Step: StepReady, QuestionID: qid}, nil
	}
	return q, s.now().Sub(started), nil, nil
}

// ViewQuestion renders a question with its remaining time, or redirects
// per the session checks.
func (s *Service) ViewQuestion(ctx context.Context, st Student, qid int64) (QuestionOutcome, error) {
	if st.IsAdmin {
		return QuestionOutcome{}, ErrAdminCannotTake
	}
	live, ok := s.sessions.Get(st.ID)
	if !ok {
		return QuestionOutcome{Next: &Directive{Step: StepStart}}, nil
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	q, elapsed, redirect, err := s.gate(ctx, live, qid)
	if err != nil {
		return QuestionOutcome{}, err
	}
	if redirect != nil {
		return QuestionOutcome{Next: redirect}, nil
	}
	if elapsed > time.Duration(q.TimeLimitSec)*time.Second {
		// Expired while unanswered: a normal transition, no score awarded.
		// The question is consumed; it cannot be re-armed for credit.
		live.Answered[qid] = true
		live.Disarm(qid)
		d := s.advance(live, qid)
		return QuestionOutcome{Next: &d}, nil
	}
	remaining := q.TimeLimitSec - int(elapsed.Seconds())
	if remaining < 0 {
		remaining = 0
	}
	q.Answer = ""
	cur, total := live.Progress()
	return QuestionOutcome{View: &QuestionView{
		Question:     q,
		Options:      q.Options(),
		RemainingSec: remaining,
		Current:      cur,
		Total:        total,
	}}, nil
}

// SubmitResult reports where to go next and whether the submission landed
// outside the grace window (recorded, but worth nothing).
type SubmitResult struct {
	Next Directive `json:"next"`
	Late bool      `json:"late,omitempty"`
}

// SubmitAnswer scores one submission. The response row is persisted
// unconditionally for analytics; points are awarded only for a correct
// answer inside the time limit. Submissions past the limit are still
// accepted, with the grace window absorbing ordinary network latency
// before they get flagged as late.
func (s *Service) SubmitAnswer(ctx context.Context, st Student, qid int64, selected string) (SubmitResult, error) {
	if st.IsAdmin {
		return SubmitResult{}, ErrAdminCannotTake
	}
	if selected == "" {
		return SubmitResult{}, ErrNoAnswerSelected
	}
	live, ok := s.sessions.Get(st.ID)
	if !ok {
		return SubmitResult{Next: Directive{Step: StepStart}}, nil
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	q, elapsed, redirect, err := s.gate(ctx, live, qid)
	if err != nil {
		return SubmitResult{}, err
	}
	if redirect != nil {
		return SubmitResult{Next: *redirect}, nil
	}

	correct := selected == q.Answer
	if err := s.store.InsertResponse(ctx, Response{
		StudentID: st.ID,
		QID:       q.ID,
		SetID:     live.SetID,
		Category:  live.Category,
		Selected:  selected,
		Correct:   correct,
		CreatedAt: s.now(),
	}); err != nil {
		return SubmitResult{}, fmt.Errorf("record response: %w", err)
	}

	live.Answered[qid] = true
	limit := time.Duration(q.TimeLimitSec) * time.Second
	if correct && elapsed <= limit {
		// Flat 1 point per correct on-time answer; q.Points is displayed
		// but not applied.
		live.Marks++
	}
	live.Disarm(qid)
	return SubmitResult{Next: s.advance(live, qid), Late: elapsed > limit+s.grace}, nil
}

// Finalize writes the completed attempt exactly once and clears the live
// session. A persistence failure leaves the session untouched so the same
// finalize can be retried; a duplicate row is treated as already done.
func (s *Service) Finalize(ctx context.Context, st Student) (FinalizeResult, error) {
	live, ok := s.sessions.Get(st.ID)
	if !ok {
		return FinalizeResult{}, ErrNoLiveSession
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	a := Attempt{
		StudentID: st.ID,
		Category:  live.Category,
		SetID:     live.SetID,
		Status:    StatusCompleted,
		Score:     live.Marks,
		CreatedAt: s.now(),
	}
	saved, err := s.store.FinalizeAttempt(ctx, a)
	switch {
	case errors.Is(err, ErrAttemptExists):
		// A racing finalize (e.g. an abandonment beacon) already recorded
		// this tuple. Swallow and surface whatever was recorded.
		if prev, aerr := s.store.AttemptFor(ctx, st.ID, live.Category, live.SetID); aerr == nil && prev != nil {
			saved = *prev
		} else {
			saved = a
		}
	case err != nil:
		return FinalizeResult{}, fmt.Errorf("finalize attempt: %w", err)
	}

	total := len(live.Queue)
	s.sessions.Delete(st.ID)
	return FinalizeResult{Attempt: saved, TotalQuestions: total, MaxPossible: total}, nil
}

// Result serves the score screen. A live session gets finalized; without
// one the existing attempt for the student's current target is surfaced.
// The second return reports whether a fresh attempt row was just written.
func (s *Service) Result(ctx context.Context, st Student) (FinalizeResult, bool, error) {
	if _, ok := s.sessions.Get(st.ID); ok {
		res, err := s.Finalize(ctx, st)
		return res, err == nil, err
	}
	category, err := s.resolveCategory(ctx, st)
	if err != nil {
		return FinalizeResult{}, false, err
	}
	set, err := s.store.ActiveSet(ctx, category)
	if err != nil {
		return FinalizeResult{}, false, err
	}
	prev, err := s.store.AttemptFor(ctx, st.ID, category, set.ID)
	if err != nil {
		return FinalizeResult{}, false, err
	}
	if prev == nil {
		return FinalizeResult{}, false, ErrNoLiveSession
	}
	ids, err := s.store.QuestionIDs(ctx, set.ID)
	if err != nil {
		return FinalizeResult{}, false, err
	}
	return FinalizeResult{Attempt: *prev, TotalQuestions: len(ids), MaxPossible: len(ids)}, false, nil
}

// recordTerminal persists a non-completed terminal attempt for the live
// session. The caller holds live.mu and clears the session itself.
func (s *Service) recordTerminal(ctx context.Context, st Student, live *LiveSession, status string) error {
	_, err := s.store.FinalizeAttempt(ctx, Attempt{
		StudentID: st.ID,
		Category:  live.Category,
		SetID:     live.SetID,
		Status:    status,
		Score:     live.Marks,
		CreatedAt: s.now(),
	})
	return err
}

// Disqualify terminates a live attempt after a proctoring violation
// (tab blur / visibility change). No live session means nothing to do.
func (s *Service) Disqualify(ctx context.Context, st Student) BeaconStatus {
	return s.beacon(ctx, st, StatusDisqualified, BeaconDisqualified)
}

// AutoRecordAbandoned records a live attempt as incomplete. Invoked from
// unload beacons and logout; StartQuiz runs the same write inline.
func (s *Service) AutoRecordAbandoned(ctx context.Context, st Student) BeaconStatus {
	return s.beacon(ctx, st, StatusIncomplete, BeaconSuccess)
}

func (s *Service) beacon(ctx context.Context, st Student, status string, ok BeaconStatus) BeaconStatus {
	live, found := s.sessions.Get(st.ID)
	if !found {
		return BeaconIgnored
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	err := s.recordTerminal(ctx, st, live, status)
	switch {
	case errors.Is(err, ErrAttemptExists):
		s.sessions.Delete(st.ID)
		return BeaconAlreadyRecorded
	case err != nil:
		// Unconfirmed write: keep the session so the beacon can retry.
		return BeaconError
	}
	s.sessions.Delete(st.ID)
	return ok
}

// HasLiveSession reports whether the student has a quiz in progress.
func (s *Service) HasLiveSession(studentID int64) bool {
	_, ok := s.sessions.Get(studentID)
	return ok
}
