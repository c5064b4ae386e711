package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:quizdesk.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizdesk?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS sections (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  marks INTEGER,
  is_admin INTEGER NOT NULL DEFAULT 0,
  session_token TEXT,
  section_id INTEGER REFERENCES sections(id) ON DELETE SET NULL,
  shuffle_questions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS question_sets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  quiz_category TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 0,
  UNIQUE (quiz_category, name)
);

CREATE TABLE IF NOT EXISTS questions (
  q_id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_set_id INTEGER REFERENCES question_sets(id) ON DELETE CASCADE,
  quiz_category TEXT NOT NULL DEFAULT 'General',
  qtype TEXT NOT NULL DEFAULT 'mcq',
  ques TEXT NOT NULL,
  a TEXT NOT NULL,
  b TEXT NOT NULL,
  c TEXT,
  d TEXT,
  ans TEXT NOT NULL,
  time_limit INTEGER NOT NULL DEFAULT 60,
  points INTEGER NOT NULL DEFAULT 1,
  explanation TEXT,
  media_key TEXT
);

-- One terminal attempt per (student, category, set); the constraint is the
-- arbiter when concurrent finalize writes race.
CREATE TABLE IF NOT EXISTS quiz_scores (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  quiz_category TEXT NOT NULL,
  question_set_id INTEGER NOT NULL REFERENCES question_sets(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  UNIQUE (user_id, quiz_category, question_set_id)
);

CREATE TABLE IF NOT EXISTS responses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  q_id INTEGER NOT NULL REFERENCES questions(q_id) ON DELETE CASCADE,
  question_set_id INTEGER NOT NULL,
  quiz_category TEXT NOT NULL,
  selected TEXT NOT NULL,
  is_correct INTEGER NOT NULL,
  created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS sections (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  marks INTEGER,
  is_admin BOOLEAN NOT NULL DEFAULT FALSE,
  session_token TEXT,
  section_id BIGINT REFERENCES sections(id) ON DELETE SET NULL,
  shuffle_questions BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS question_sets (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  quiz_category TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT FALSE,
  UNIQUE (quiz_category, name)
);

CREATE TABLE IF NOT EXISTS questions (
  q_id BIGSERIAL PRIMARY KEY,
  question_set_id BIGINT REFERENCES question_sets(id) ON DELETE CASCADE,
  quiz_category TEXT NOT NULL DEFAULT 'General',
  qtype TEXT NOT NULL DEFAULT 'mcq',
  ques TEXT NOT NULL,
  a TEXT NOT NULL,
  b TEXT NOT NULL,
  c TEXT,
  d TEXT,
  ans TEXT NOT NULL,
  time_limit INTEGER NOT NULL DEFAULT 60,
  points INTEGER NOT NULL DEFAULT 1,
  explanation TEXT,
  media_key TEXT
);

CREATE TABLE IF NOT EXISTS quiz_scores (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  quiz_category TEXT NOT NULL,
  question_set_id BIGINT NOT NULL REFERENCES question_sets(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (user_id, quiz_category, question_set_id)
);

CREATE TABLE IF NOT EXISTS responses (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  q_id BIGINT NOT NULL REFERENCES questions(q_id) ON DELETE CASCADE,
  question_set_id BIGINT NOT NULL,
  quiz_category TEXT NOT NULL,
  selected TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  id BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
