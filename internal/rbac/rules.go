package rbac

// Simple default policy. Students own the quiz flow; admins own everything
// else (and deliberately cannot take the quiz, enforced in the quiz core).
var RolePermissions = map[string][]string{
	"student": {
		"quiz:take",
		"quiz:score",
		"quiz:beacon",
	},
	"admin": {
		"*", // everything
	},
}
