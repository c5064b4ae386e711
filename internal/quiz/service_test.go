package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeStore is the in-memory Store used by the state machine tests. One
// category, one active set, attempts keyed by tuple. Guarded by a mutex so
// concurrency tests can hammer it from multiple goroutines.
type fakeStore struct {
	mu        sync.Mutex
	set       QuestionSet
	questions map[int64]Question
	order     []int64
	attempts  map[string]Attempt
	responses []Response
	sections  map[int64]string

	failFinalize bool
	failResponse bool
}

func attemptKey(studentID int64, category string, setID int64) string {
	return fmt.Sprintf("%d|%s|%d", studentID, category, setID)
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		set:       QuestionSet{ID: 10, Name: "week-1", Category: DefaultCategory, IsActive: true},
		questions: map[int64]Question{},
		attempts:  map[string]Attempt{},
		sections:  map[int64]string{},
	}
	for _, q := range []Question{
		{ID: 1, Type: TypeMCQ, Text: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", Answer: "4", TimeLimitSec: 30, Points: 1},
		{ID: 2, Type: TypeTrueFalse, Text: "go has generics", OptionA: "True", OptionB: "False", Answer: "True", TimeLimitSec: 20, Points: 1},
		{ID: 3, Type: TypeMCQ, Text: "capital of france?", OptionA: "Paris", OptionB: "Lyon", Answer: "Paris", TimeLimitSec: 30, Points: 1},
	} {
		setID := s.set.ID
		q.SetID = &setID
		q.Category = s.set.Category
		s.questions[q.ID] = q
		s.order = append(s.order, q.ID)
	}
	return s
}

func (s *fakeStore) ActiveSet(_ context.Context, category string) (QuestionSet, error) {
	if s.set.IsActive && s.set.Category == category {
		return s.set, nil
	}
	return QuestionSet{}, ErrNoActiveSet
}

func (s *fakeStore) SectionName(_ context.Context, id int64) (string, error) {
	name, ok := s.sections[id]
	if !ok {
		return "", errors.New("section not found")
	}
	return name, nil
}

func (s *fakeStore) QuestionIDs(_ context.Context, setID int64) ([]int64, error) {
	if setID != s.set.ID {
		return nil, nil
	}
	return append([]int64(nil), s.order...), nil
}

func (s *fakeStore) QuestionInSet(_ context.Context, qid, setID int64) (Question, error) {
	q, ok := s.questions[qid]
	if !ok || q.SetID == nil || *q.SetID != setID {
		return Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func (s *fakeStore) AttemptFor(_ context.Context, studentID int64, category string, setID int64) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptKey(studentID, category, setID)]
	if !ok {
		return nil, nil
	}
	out := a
	return &out, nil
}

func (s *fakeStore) FinalizeAttempt(_ context.Context, a Attempt) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFinalize {
		return Attempt{}, errors.New("db down")
	}
	key := attemptKey(a.StudentID, a.Category, a.SetID)
	if _, ok := s.attempts[key]; ok {
		return Attempt{}, ErrAttemptExists
	}
	a.ID = int64(len(s.attempts) + 1)
	s.attempts[key] = a
	return a, nil
}

func (s *fakeStore) InsertResponse(_ context.Context, r Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failResponse {
		return errors.New("db down")
	}
	s.responses = append(s.responses, r)
	return nil
}

func (s *fakeStore) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// clock is a manual test clock.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(store *fakeStore) (*Service, *clock) {
	c := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc := NewService(store, NewSessionStore())
	svc.now = c.now
	return svc, c
}

func testStudent() Student {
	return Student{ID: 7, Username: "ada"}
}

// walk answers qid and fails the test on error.
func submit(t *testing.T, svc *Service, st Student, qid int64, selected string) SubmitResult {
	t.Helper()
	res, err := svc.SubmitAnswer(context.Background(), st, qid, selected)
	if err != nil {
		t.Fatalf("submit q%d: %v", qid, err)
	}
	return res
}

func arm(t *testing.T, svc *Service, st Student, qid int64) {
	t.Helper()
	if _, err := svc.StartTimer(context.Background(), st, qid); err != nil {
		t.Fatalf("start timer q%d: %v", qid, err)
	}
}

func TestStartQuizHappyPath(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()

	d, err := svc.StartQuiz(context.Background(), st)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if d.Step != StepReady || d.QuestionID != 1 {
		t.Fatalf("got %+v, want ready at q1", d)
	}
	if !svc.HasLiveSession(st.ID) {
		t.Fatal("expected a live session")
	}
}

func TestStartQuizAdminRejected(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	_, err := svc.StartQuiz(context.Background(), Student{ID: 1, IsAdmin: true})
	if !errors.Is(err, ErrAdminCannotTake) {
		t.Fatalf("got %v, want ErrAdminCannotTake", err)
	}
}

func TestStartQuizNoActiveSet(t *testing.T) {
	store := newFakeStore()
	store.set.IsActive = false
	svc, _ := newTestService(store)
	_, err := svc.StartQuiz(context.Background(), testStudent())
	if !errors.Is(err, ErrNoActiveSet) {
		t.Fatalf("got %v, want ErrNoActiveSet", err)
	}
}

func TestSectionCategoryFallsBackToGeneral(t *testing.T) {
	store := newFakeStore()
	store.sections[3] = "Physics" // no active set for Physics
	svc, _ := newTestService(store)
	st := testStudent()
	sectionID := int64(3)
	st.SectionID = &sectionID

	d, err := svc.StartQuiz(context.Background(), st)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if d.Step != StepReady {
		t.Fatalf("got %+v, want ready in General", d)
	}
}

func TestFullRunThroughScoresOnTimeAnswers(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}

	// q1 correct in time
	arm(t, svc, st, 1)
	clk.advance(5 * time.Second)
	res := submit(t, svc, st, 1, "4")
	if res.Next.Step != StepReady || res.Next.QuestionID != 2 {
		t.Fatalf("after q1 got %+v, want ready q2", res.Next)
	}
	// q2 wrong
	arm(t, svc, st, 2)
	clk.advance(2 * time.Second)
	submit(t, svc, st, 2, "False")
	// q3 correct
	arm(t, svc, st, 3)
	res = submit(t, svc, st, 3, "Paris")
	if res.Next.Step != StepScore {
		t.Fatalf("after last question got %+v, want score", res.Next)
	}

	fin, err := svc.Finalize(ctx, st)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if fin.Attempt.Score != 2 {
		t.Fatalf("score = %d, want 2", fin.Attempt.Score)
	}
	if fin.Attempt.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", fin.Attempt.Status)
	}
	if fin.TotalQuestions != 3 || fin.MaxPossible != 3 {
		t.Fatalf("totals = %d/%d, want 3/3", fin.TotalQuestions, fin.MaxPossible)
	}
	if svc.HasLiveSession(st.ID) {
		t.Fatal("session should be cleared after finalize")
	}
	if len(store.responses) != 3 {
		t.Fatalf("responses recorded = %d, want 3", len(store.responses))
	}
}

func TestTimerCannotBeRearmed(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	clk.advance(10 * time.Second)

	// A replayed timer-start must not reset the window.
	if _, err := svc.StartTimer(ctx, st, 1); !errors.Is(err, ErrTimerRunning) {
		t.Fatalf("got %v, want ErrTimerRunning", err)
	}

	out, err := svc.ViewQuestion(ctx, st, 1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if out.View == nil {
		t.Fatalf("expected a rendered question, got %+v", out)
	}
	if out.View.RemainingSec != 20 {
		t.Fatalf("remaining = %d, want 20", out.View.RemainingSec)
	}
	if out.View.Question.Answer != "" {
		t.Fatal("answer must not leak to the client")
	}
}

func TestExpiredQuestionCannotBeRearmed(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	clk.advance(31 * time.Second)
	out, err := svc.ViewQuestion(ctx, st, 1)
	if err != nil || out.Next == nil || out.Next.QuestionID != 2 {
		t.Fatalf("expiry view: out=%+v err=%v", out, err)
	}

	// Going back to q1's ready screen must not grant a fresh window: the
	// question was consumed by the expiry.
	d, err := svc.StartTimer(ctx, st, 1)
	if err != nil {
		t.Fatalf("timer on consumed question: %v", err)
	}
	if d.Step != StepReady || d.QuestionID != 2 {
		t.Fatalf("got %+v, want advance to q2", d)
	}
	res := submit(t, svc, st, 1, "4")
	if res.Next.Step != StepReady || res.Next.QuestionID != 2 {
		t.Fatalf("got %+v, want advance to q2", res.Next)
	}
	live, _ := svc.sessions.Get(st.ID)
	if live.Marks != 0 {
		t.Fatalf("marks = %d, want 0 for an expired question", live.Marks)
	}
	if len(store.responses) != 0 {
		t.Fatalf("responses = %d, want none for a consumed question", len(store.responses))
	}
}

func TestViewBeforeTimerRedirectsToReady(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := svc.ViewQuestion(ctx, st, 1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if out.Next == nil || out.Next.Step != StepReady || out.Next.QuestionID != 1 {
		t.Fatalf("got %+v, want redirect to ready q1", out)
	}
}

func TestExpiredViewAdvancesWithoutScore(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	clk.advance(31 * time.Second) // past the 30s limit

	out, err := svc.ViewQuestion(ctx, st, 1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if out.Next == nil || out.Next.Step != StepReady || out.Next.QuestionID != 2 {
		t.Fatalf("got %+v, want advance to q2", out)
	}
	live, _ := svc.sessions.Get(st.ID)
	if live.Marks != 0 {
		t.Fatalf("marks = %d, want 0 after expiry", live.Marks)
	}
}

func TestLateSubmissionRecordedButNotScored(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	clk.advance(32 * time.Second) // inside the 5s grace

	res := submit(t, svc, st, 1, "4")
	if res.Late {
		t.Fatal("inside grace should not be flagged late")
	}
	live, _ := svc.sessions.Get(st.ID)
	if live.Marks != 0 {
		t.Fatalf("marks = %d, want 0 for a correct-but-overtime answer", live.Marks)
	}
	if len(store.responses) != 1 {
		t.Fatalf("responses = %d, want the late answer recorded", len(store.responses))
	}

	// Well past the grace window on the next question.
	arm(t, svc, st, 2)
	clk.advance(40 * time.Second)
	res = submit(t, svc, st, 2, "True")
	if !res.Late {
		t.Fatal("past limit+grace should be flagged late")
	}
}

func TestSubmitReplayIgnored(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	submit(t, svc, st, 1, "4")

	// Replaying the same submission must neither rescore nor re-record.
	res := submit(t, svc, st, 1, "4")
	if res.Next.Step != StepReady || res.Next.QuestionID != 2 {
		t.Fatalf("replay got %+v, want advance to q2", res.Next)
	}
	live, _ := svc.sessions.Get(st.ID)
	if live.Marks != 1 {
		t.Fatalf("marks = %d, want 1 after replay", live.Marks)
	}
	if len(store.responses) != 1 {
		t.Fatalf("responses = %d, want 1 after replay", len(store.responses))
	}
}

func TestSubmitEmptyAnswerRejected(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	if _, err := svc.SubmitAnswer(ctx, st, 1, ""); !errors.Is(err, ErrNoAnswerSelected) {
		t.Fatalf("got %v, want ErrNoAnswerSelected", err)
	}
}

func TestStaleQuestionIDAdvances(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	// A bookmarked qid from an older set is not a hard error.
	out, err := svc.ViewQuestion(ctx, st, 999)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if out.Next == nil || out.Next.Step != StepReady || out.Next.QuestionID != 1 {
		t.Fatalf("got %+v, want redirect to first unanswered", out)
	}
}

func TestNoSessionRoutesToStart(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	out, err := svc.ViewQuestion(context.Background(), testStudent(), 1)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if out.Next == nil || out.Next.Step != StepStart {
		t.Fatalf("got %+v, want start", out)
	}
}

func TestSecondStartAfterCompletionRoutesToScore(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, qid := range []int64{1, 2, 3} {
		arm(t, svc, st, qid)
		submit(t, svc, st, qid, store.questions[qid].Answer)
	}
	if _, err := svc.Finalize(ctx, st); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	d, err := svc.StartQuiz(ctx, st)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if d.Step != StepScore {
		t.Fatalf("got %+v, want score", d)
	}
	if len(store.attempts) != 1 {
		t.Fatalf("attempts = %d, want exactly 1", len(store.attempts))
	}
}

func TestRestartMidQuizRecordsIncomplete(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	submit(t, svc, st, 1, "4") // one point banked

	// Navigating back to the start mid-quiz is not a free retry: the
	// partial attempt is recorded and the score screen is the only way on.
	d, err := svc.StartQuiz(ctx, st)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if d.Step != StepScore {
		t.Fatalf("got %+v, want score", d)
	}
	a, _ := store.AttemptFor(ctx, st.ID, DefaultCategory, store.set.ID)
	if a == nil {
		t.Fatal("expected an attempt row")
	}
	if a.Status != StatusIncomplete || a.Score != 1 {
		t.Fatalf("got status=%q score=%d, want incomplete/1", a.Status, a.Score)
	}
	if svc.HasLiveSession(st.ID) {
		t.Fatal("stale session should be cleared")
	}
}

func TestDisqualifyRecordsAndClears(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	arm(t, svc, st, 1)
	submit(t, svc, st, 1, "4")

	if got := svc.Disqualify(ctx, st); got != BeaconDisqualified {
		t.Fatalf("got %q, want disqualified", got)
	}
	a, _ := store.AttemptFor(ctx, st.ID, DefaultCategory, store.set.ID)
	if a == nil || a.Status != StatusDisqualified || a.Score != 1 {
		t.Fatalf("got %+v, want disqualified with partial score 1", a)
	}
	if svc.HasLiveSession(st.ID) {
		t.Fatal("session should be cleared")
	}
}

func TestBeaconWithoutSessionIgnored(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	if got := svc.Disqualify(context.Background(), testStudent()); got != BeaconIgnored {
		t.Fatalf("got %q, want ignored", got)
	}
	if got := svc.AutoRecordAbandoned(context.Background(), testStudent()); got != BeaconIgnored {
		t.Fatalf("got %q, want ignored", got)
	}
}

func TestBeaconIdempotentAgainstExistingAttempt(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Simulate a racing beacon that already wrote the tuple.
	if _, err := store.FinalizeAttempt(ctx, Attempt{
		StudentID: st.ID, Category: DefaultCategory, SetID: store.set.ID,
		Status: StatusIncomplete,
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	if got := svc.AutoRecordAbandoned(ctx, st); got != BeaconAlreadyRecorded {
		t.Fatalf("got %q, want already_recorded", got)
	}
	if svc.HasLiveSession(st.ID) {
		t.Fatal("session should be cleared once the row exists")
	}
	if len(store.attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(store.attempts))
	}
}

func TestBeaconKeepsSessionOnWriteFailure(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	store.failFinalize = true
	if got := svc.AutoRecordAbandoned(ctx, st); got != BeaconError {
		t.Fatalf("got %q, want error", got)
	}
	if !svc.HasLiveSession(st.ID) {
		t.Fatal("session must survive an unconfirmed write so the beacon can retry")
	}

	store.failFinalize = false
	if got := svc.AutoRecordAbandoned(ctx, st); got != BeaconSuccess {
		t.Fatalf("retry got %q, want success", got)
	}
}

func TestSubmitAndBeaconConcurrently(t *testing.T) {
	// A submission and an unload beacon for the same student can land at
	// the same time. Whichever order they serialize in, exactly one attempt
	// row comes out and the session ends up cleared.
	for i := 0; i < 50; i++ {
		store := newFakeStore()
		svc, _ := newTestService(store)
		st := testStudent()
		ctx := context.Background()

		if _, err := svc.StartQuiz(ctx, st); err != nil {
			t.Fatalf("start: %v", err)
		}
		arm(t, svc, st, 1)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.SubmitAnswer(ctx, st, 1, "4")
		}()
		go func() {
			defer wg.Done()
			svc.AutoRecordAbandoned(ctx, st)
		}()
		wg.Wait()

		if n := store.attemptCount(); n != 1 {
			t.Fatalf("attempts = %d, want exactly 1", n)
		}
		if svc.HasLiveSession(st.ID) {
			t.Fatal("session should be cleared once the attempt is recorded")
		}
	}
}

func TestFinalizeSurvivesRaceWithBeacon(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Beacon wins the race.
	if _, err := store.FinalizeAttempt(ctx, Attempt{
		StudentID: st.ID, Category: DefaultCategory, SetID: store.set.ID,
		Status: StatusIncomplete, Score: 2,
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	fin, err := svc.Finalize(ctx, st)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if fin.Attempt.Status != StatusIncomplete || fin.Attempt.Score != 2 {
		t.Fatalf("got %+v, want the previously recorded attempt surfaced", fin.Attempt)
	}
	if svc.HasLiveSession(st.ID) {
		t.Fatal("session should be cleared")
	}
}

func TestResultWithoutSessionSurfacesExistingAttempt(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := store.FinalizeAttempt(ctx, Attempt{
		StudentID: st.ID, Category: DefaultCategory, SetID: store.set.ID,
		Status: StatusCompleted, Score: 3,
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	res, fresh, err := svc.Result(ctx, st)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if fresh {
		t.Fatal("surfacing an old attempt is not a fresh finalize")
	}
	if res.Attempt.Score != 3 || res.TotalQuestions != 3 {
		t.Fatalf("got %+v, want score 3 over 3 questions", res)
	}
}

func TestResultWithNothingToShow(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	_, _, err := svc.Result(context.Background(), testStudent())
	if !errors.Is(err, ErrNoLiveSession) {
		t.Fatalf("got %v, want ErrNoLiveSession", err)
	}
}

func TestShuffleFreezesQueueOrder(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	// Deterministic "shuffle": reverse.
	svc.shuffle = func(n int, swap func(i, j int)) {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			swap(i, j)
		}
	}
	st := testStudent()
	st.Shuffle = true
	ctx := context.Background()

	d, err := svc.StartQuiz(ctx, st)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if d.QuestionID != 3 {
		t.Fatalf("first question = %d, want 3 after reverse", d.QuestionID)
	}
	live, _ := svc.sessions.Get(st.ID)
	want := []int64{3, 2, 1}
	for i, id := range live.Queue {
		if id != want[i] {
			t.Fatalf("queue = %v, want %v", live.Queue, want)
		}
	}
}

func TestQueueExhaustionAlwaysTerminates(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)
	st := testStudent()
	ctx := context.Background()

	if _, err := svc.StartQuiz(ctx, st); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Mix of expiries and submissions: q1 expires, q2 answered, q3 expires.
	arm(t, svc, st, 1)
	clk.advance(31 * time.Second)
	out, err := svc.ViewQuestion(ctx, st, 1)
	if err != nil || out.Next == nil || out.Next.QuestionID != 2 {
		t.Fatalf("q1 expiry: out=%+v err=%v", out, err)
	}
	arm(t, svc, st, 2)
	submit(t, svc, st, 2, "True")
	arm(t, svc, st, 3)
	clk.advance(31 * time.Second)
	out, err = svc.ViewQuestion(ctx, st, 3)
	if err != nil {
		t.Fatalf("q3 view: %v", err)
	}
	if out.Next == nil || out.Next.Step != StepScore {
		t.Fatalf("got %+v, want score after last expiry", out)
	}

	fin, err := svc.Finalize(ctx, st)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if fin.Attempt.Score != 1 {
		t.Fatalf("score = %d, want 1 (only q2 counted)", fin.Attempt.Score)
	}
}
