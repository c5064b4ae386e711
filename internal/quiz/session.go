package quiz

import (
	"sync"
	"time"
)

// LiveSession is the working memory of one in-progress attempt. It is
// transient: every entry point reconciles it against the durable Attempt
// row, so losing it never grants a second scored attempt.
//
// A session is normally touched only by its own student's requests, but a
// submission can race an unload beacon for the same student, so every
// operation on the mutable fields must hold mu.
type LiveSession struct {
	mu sync.Mutex

	Category   string
	SetID      int64
	Queue      []int64 // frozen question ordering, computed once at StartQuiz
	Marks      int
	Answered   map[int64]bool
	StartTimes map[int64]time.Time
	StartedAt  time.Time
}

func newLiveSession(category string, setID int64, queue []int64, now time.Time) *LiveSession {
	return &LiveSession{
		Category:   category,
		SetID:      setID,
		Queue:      queue,
		Answered:   make(map[int64]bool),
		StartTimes: make(map[int64]time.Time),
		StartedAt:  now,
	}
}

// Arm records the start timestamp for a question. It refuses to re-arm a
// question whose clock is already running, so a replayed request cannot
// buy a fresh timer window.
func (s *LiveSession) Arm(qid int64, now time.Time) error {
	if _, ok := s.StartTimes[qid]; ok {
		return ErrTimerRunning
	}
	s.StartTimes[qid] = now
	return nil
}

func (s *LiveSession) Disarm(qid int64) { delete(s.StartTimes, qid) }

func (s *LiveSession) ArmedAt(qid int64) (time.Time, bool) {
	t, ok := s.StartTimes[qid]
	return t, ok
}

// NextAfter returns the queue entry following qid, or false when qid is the
// last entry or absent from the queue.
func (s *LiveSession) NextAfter(qid int64) (int64, bool) {
	for i, id := range s.Queue {
		if id == qid {
			if i+1 < len(s.Queue) {
				return s.Queue[i+1], true
			}
			return 0, false
		}
	}
	return 0, false
}

// Progress reports the 1-based number of the question being worked on and
// the queue length.
func (s *LiveSession) Progress() (current, total int) {
	return len(s.Answered) + 1, len(s.Queue)
}

// SessionStore holds live sessions keyed by student ID. Session state is
// only ever touched by that student's own requests, so a single lock over
// the map is enough.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*LiveSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[int64]*LiveSession{}}
}

func (st *SessionStore) Get(studentID int64) (*LiveSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[studentID]
	return s, ok
}

func (st *SessionStore) Put(studentID int64, s *LiveSession) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[studentID] = s
}

func (st *SessionStore) Delete(studentID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, studentID)
}
