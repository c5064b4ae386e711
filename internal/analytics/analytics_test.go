package analytics

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/classware/quizdesk/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "analytics_test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

func mustExec(t *testing.T, dbh *sql.DB, q string, args ...any) {
	t.Helper()
	if _, err := dbh.ExecContext(context.Background(), q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func seed(t *testing.T, dbh *sql.DB) {
	t.Helper()
	mustExec(t, dbh, `INSERT INTO question_sets (id, name, quiz_category, is_active) VALUES (1,'week-1','General',TRUE)`)
	mustExec(t, dbh, `INSERT INTO questions (q_id, question_set_id, quiz_category, qtype, ques, a, b, ans, time_limit, explanation)
		VALUES (1,1,'General','mcq','2+2?','3','4','4',30,'basic arithmetic'),
		       (2,1,'General','true_false','go has generics','True','False','True',20,NULL),
		       (3,1,'General','mcq','capital of france?','Paris','Lyon','Paris',30,NULL)`)
	mustExec(t, dbh, `INSERT INTO users (id, username, email, password_hash, marks, is_admin)
		VALUES (1,'ada','ada@example.com','x',3,FALSE),
		       (2,'bob','bob@example.com','x',1,FALSE),
		       (3,'eve','eve@example.com','x',NULL,FALSE),
		       (4,'root','root@example.com','x',99,TRUE)`)
}

func TestRankIgnoresAdmins(t *testing.T) {
	dbh := openTestDB(t)
	seed(t, dbh)
	s := NewService(dbh)
	ctx := context.Background()

	// ada has 3, bob has 1. A score of 1 is beaten only by ada; the admin's
	// 99 must not count.
	rank, err := s.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank != 2 {
		t.Fatalf("rank = %d, want 2", rank)
	}

	top, err := s.TopScorer(ctx)
	if err != nil {
		t.Fatalf("top scorer: %v", err)
	}
	if top == nil || top.Username != "ada" || top.Marks != 3 {
		t.Fatalf("top = %+v, want ada/3", top)
	}
}

func TestLeaderboardPodium(t *testing.T) {
	dbh := openTestDB(t)
	seed(t, dbh)
	s := NewService(dbh)

	leaders, err := s.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// eve has no marks yet and stays off the board.
	if len(leaders) != 2 {
		t.Fatalf("leaders = %v, want ada and bob only", leaders)
	}
	if leaders[0].Username != "ada" || leaders[1].Username != "bob" {
		t.Fatalf("order = %v", leaders)
	}
}

func TestMissedQuestionsFromResponseRows(t *testing.T) {
	dbh := openTestDB(t)
	seed(t, dbh)
	s := NewService(dbh)
	ctx := context.Background()

	// bob: q1 wrong, q2 correct, q3 never answered (expired).
	mustExec(t, dbh, `INSERT INTO responses (user_id, q_id, question_set_id, quiz_category, selected, is_correct, created_at)
		VALUES (2,1,1,'General','3',FALSE,CURRENT_TIMESTAMP),
		       (2,2,1,'General','True',TRUE,CURRENT_TIMESTAMP)`)

	missed, err := s.MissedQuestions(ctx, 2, 1)
	if err != nil {
		t.Fatalf("missed: %v", err)
	}
	if len(missed) != 2 {
		t.Fatalf("missed = %+v, want q1 and q3", missed)
	}
	if missed[0].QID != 1 || missed[0].Selected != "3" || missed[0].Answer != "4" {
		t.Fatalf("missed[0] = %+v", missed[0])
	}
	if missed[0].Explanation != "basic arithmetic" {
		t.Fatalf("explanation = %q", missed[0].Explanation)
	}
	if missed[1].QID != 3 || missed[1].Selected != "" {
		t.Fatalf("missed[1] = %+v, want unanswered q3", missed[1])
	}
}

func TestQuestionStatsDistractors(t *testing.T) {
	dbh := openTestDB(t)
	seed(t, dbh)
	s := NewService(dbh)

	mustExec(t, dbh, `INSERT INTO responses (user_id, q_id, question_set_id, quiz_category, selected, is_correct, created_at)
		VALUES (1,1,1,'General','4',TRUE,CURRENT_TIMESTAMP),
		       (2,1,1,'General','3',FALSE,CURRENT_TIMESTAMP),
		       (3,1,1,'General','3',FALSE,CURRENT_TIMESTAMP)`)

	stats, err := s.QuestionStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats = %+v, want just q1 (others have no responses)", stats)
	}
	q1 := stats[0]
	if q1.Correct != 1 || q1.Wrong != 2 {
		t.Fatalf("q1 tallies = %d/%d, want 1/2", q1.Correct, q1.Wrong)
	}
	if q1.Distractors["3"] != 2 {
		t.Fatalf("distractors = %v", q1.Distractors)
	}
}

func TestDashboardCounts(t *testing.T) {
	dbh := openTestDB(t)
	seed(t, dbh)
	s := NewService(dbh)

	c, err := s.DashboardCounts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Questions != 3 || c.Students != 3 || c.Admins != 1 {
		t.Fatalf("counts = %+v", c)
	}
}
