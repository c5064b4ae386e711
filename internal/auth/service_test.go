package auth

import (
	"testing"

	"github.com/classware/quizdesk/internal/quiz"
)

func TestJWTRoundTrip(t *testing.T) {
	a := NewAuthService("test-secret", nil)

	token, err := a.issueJWT(42, "student", "sid-abc")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := a.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Subject != "42" || c.Role != "student" || c.SessionToken != "sid-abc" {
		t.Fatalf("claims = %+v", c)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	a := NewAuthService("test-secret", nil)
	token, err := a.issueJWT(1, "admin", "sid")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other := NewAuthService("different-secret", nil)
	if _, err := other.Parse(token); err == nil {
		t.Fatal("token signed with another key must not verify")
	}
}

func TestRoleOf(t *testing.T) {
	if roleOf(quiz.Student{IsAdmin: true}) != "admin" {
		t.Fatal("admin flag should map to admin role")
	}
	if roleOf(quiz.Student{}) != "student" {
		t.Fatal("default role is student")
	}
}
