package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/classware/quizdesk/internal/db"
	"github.com/classware/quizdesk/internal/rbac"
)

func TestMiddlewareEnforcesRotatingToken(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "auth_test.db")
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	a := NewAuthService("test-secret", dbh)
	token, st, err := a.Register(ctx, "ada", "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	var sawRole string
	var sawID int64
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := StudentFromContext(r.Context())
		if !ok {
			t.Fatal("student missing from context")
		}
		sawID = got.ID
		sawRole = rbac.RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(a)(inner)

	do := func(authz string) int {
		req := httptest.NewRequest(http.MethodGet, "/home", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(""); code != http.StatusUnauthorized {
		t.Fatalf("no header: got %d, want 401", code)
	}
	if code := do("Bearer not-a-token"); code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d, want 401", code)
	}
	if code := do("Bearer " + token); code != http.StatusOK {
		t.Fatalf("fresh token: got %d, want 200", code)
	}
	if sawID != st.ID || sawRole != "student" {
		t.Fatalf("context carried id=%d role=%q", sawID, sawRole)
	}

	// A login elsewhere rotates the stored token; the old JWT dies.
	if _, err := dbh.ExecContext(ctx,
		`UPDATE users SET session_token='rotated-elsewhere' WHERE id=$1`, st.ID); err != nil {
		t.Fatalf("rotate token: %v", err)
	}
	if code := do("Bearer " + token); code != http.StatusUnauthorized {
		t.Fatalf("revoked token: got %d, want 401", code)
	}
}

func TestLoginRotatesAndVerifies(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "login_test.db")
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })

	a := NewAuthService("test-secret", dbh)
	first, st, err := a.Register(ctx, "bob", "bob@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := a.Login(ctx, "bob", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, _, err := a.Login(ctx, "nobody", "hunter22"); err != ErrInvalidCredentials {
		t.Fatalf("unknown user: got %v", err)
	}

	second, _, err := a.Login(ctx, "bob", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	// The register-issued token is revoked by the fresh login.
	c, err := a.Parse(first)
	if err != nil {
		t.Fatalf("parse old token: %v", err)
	}
	if _, err := a.Authenticate(ctx, c); err != ErrSessionRevoked {
		t.Fatalf("old token: got %v, want ErrSessionRevoked", err)
	}
	c, err = a.Parse(second)
	if err != nil {
		t.Fatalf("parse new token: %v", err)
	}
	got, err := a.Authenticate(ctx, c)
	if err != nil {
		t.Fatalf("authenticate new token: %v", err)
	}
	if got.ID != st.ID {
		t.Fatalf("authenticated id = %d, want %d", got.ID, st.ID)
	}

	if err := a.ClearSession(ctx, st.ID); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if _, err := a.Authenticate(ctx, c); err != ErrSessionRevoked {
		t.Fatalf("after logout: got %v, want ErrSessionRevoked", err)
	}
}
