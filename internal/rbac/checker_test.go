package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	if !c.Has("student", "quiz:take") {
		t.Fatal("student should take quizzes")
	}
	if c.Has("student", "questions:manage") {
		t.Fatal("student must not manage questions")
	}
	if !c.Has("admin", "questions:manage") {
		t.Fatal("admin wildcard should cover question management")
	}
	if c.Has("nobody", "quiz:take") {
		t.Fatal("unknown role has nothing")
	}
}

func TestPrefixPattern(t *testing.T) {
	c := NewChecker(map[string][]string{"aide": {"quiz:*"}})
	if !c.Has("aide", "quiz:score") {
		t.Fatal("prefix pattern should match")
	}
	if c.Has("aide", "users:list") {
		t.Fatal("prefix pattern must not leak across namespaces")
	}
	if !c.Any("aide", "users:list", "quiz:take") {
		t.Fatal("Any should pass when one permission matches")
	}
}
