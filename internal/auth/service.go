package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/classware/quizdesk/internal/quiz"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionRevoked     = errors.New("session has been invalidated")
)

type AuthService struct {
	hmac []byte
	db   *sql.DB
	ttl  time.Duration
}

func NewAuthService(secret string, db *sql.DB) *AuthService {
	return &AuthService{hmac: []byte(secret), db: db, ttl: 8 * time.Hour}
}

type Claims struct {
	Role string `json:"role"` // "admin" or "student"
	// SessionToken must match the one stored on the user row. Logging in
	// elsewhere rotates the stored token, which revokes this one: that is
	// the whole single-active-browser rule.
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

func (a *AuthService) issueJWT(userID int64, role, sessionToken string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:         role,
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    "quizdesk",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}

// Login verifies the password, rotates the stored session token (kicking
// any other browser), and issues a JWT carrying the fresh token.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, quiz.Student, error) {
	st, err := a.studentByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", quiz.Student{}, ErrInvalidCredentials
		}
		return "", quiz.Student{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)) != nil {
		return "", quiz.Student{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	if _, err := a.db.ExecContext(ctx,
		`UPDATE users SET session_token=$1 WHERE id=$2`, token, st.ID); err != nil {
		return "", quiz.Student{}, fmt.Errorf("rotate session token: %w", err)
	}
	st.SessionToken = token

	jwtStr, err := a.issueJWT(st.ID, roleOf(st), token)
	if err != nil {
		return "", quiz.Student{}, err
	}
	return jwtStr, st, nil
}

// ClearSession drops the stored token on logout so the JWT dies with it.
func (a *AuthService) ClearSession(ctx context.Context, userID int64) error {
	_, err := a.db.ExecContext(ctx, `UPDATE users SET session_token=NULL WHERE id=$1`, userID)
	return err
}

// Authenticate resolves claims to a student and enforces the rotating
// token comparison.
func (a *AuthService) Authenticate(ctx context.Context, c *Claims) (quiz.Student, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return quiz.Student{}, fmt.Errorf("bad subject: %w", err)
	}
	st, err := a.studentByID(ctx, id)
	if err != nil {
		return quiz.Student{}, err
	}
	if st.SessionToken == "" || st.SessionToken != c.SessionToken {
		return quiz.Student{}, ErrSessionRevoked
	}
	return st, nil
}

func roleOf(st quiz.Student) string {
	if st.IsAdmin {
		return "admin"
	}
	return "student"
}

// Role is exported for handlers issuing tokens outside Login (register).
func Role(st quiz.Student) string { return roleOf(st) }

const studentCols = `id, username, email, password_hash, marks, is_admin,
	COALESCE(session_token,''), section_id, shuffle_questions`

func (a *AuthService) studentByID(ctx context.Context, id int64) (quiz.Student, error) {
	return scanStudent(a.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM users WHERE id=$1`, id))
}

func (a *AuthService) studentByUsername(ctx context.Context, username string) (quiz.Student, error) {
	return scanStudent(a.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM users WHERE username=$1`, username))
}

func scanStudent(row *sql.Row) (quiz.Student, error) {
	var st quiz.Student
	var marks sql.NullInt64
	var section sql.NullInt64
	err := row.Scan(&st.ID, &st.Username, &st.Email, &st.PasswordHash, &marks,
		&st.IsAdmin, &st.SessionToken, &section, &st.Shuffle)
	if err != nil {
		return quiz.Student{}, err
	}
	if marks.Valid {
		m := int(marks.Int64)
		st.Marks = &m
	}
	if section.Valid {
		st.SectionID = &section.Int64
	}
	return st, nil
}

// Register creates a student account with a bcrypt-hashed password and
// logs it straight in.
func (a *AuthService) Register(ctx context.Context, username, email, password string) (string, quiz.Student, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", quiz.Student{}, err
	}
	token := uuid.NewString()
	var id int64
	err = a.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, is_admin, session_token, shuffle_questions)
		 VALUES ($1,$2,$3,FALSE,$4,FALSE) RETURNING id`,
		username, email, string(hash), token).Scan(&id)
	if err != nil {
		return "", quiz.Student{}, fmt.Errorf("create user: %w", err)
	}
	st := quiz.Student{ID: id, Username: username, Email: email, SessionToken: token}
	jwtStr, err := a.issueJWT(id, roleOf(st), token)
	if err != nil {
		return "", quiz.Student{}, err
	}
	return jwtStr, st, nil
}
