package identity

import "testing"

func TestParseRole(t *testing.T) {
	for _, s := range []string{"User", "Admin"} {
		r, err := ParseRole(s)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", s, err)
		}
		if r.String() != s {
			t.Fatalf("round trip: got %q want %q", r, s)
		}
	}

	for _, s := range []string{"", "user", "ADMIN", "Root"} {
		if _, err := ParseRole(s); !IsInvalidInput(err) {
			t.Fatalf("ParseRole(%q): expected invalid input, got %v", s, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Mixed.Case@Example.ORG\t"); got != "mixed.case@example.org" {
		t.Fatalf("NormalizeEmail: %q", got)
	}
	if got := NormalizeUserName("  Navid "); got != "Navid" {
		t.Fatalf("NormalizeUserName: %q", got)
	}
}

func TestUser_DisplayName(t *testing.T) {
	if got := (User{Email: "a@b.c"}).DisplayName(); got != "a@b.c" {
		t.Fatalf("fallback: %q", got)
	}
	if got := (User{Email: "a@b.c", UserName: "ab"}).DisplayName(); got != "ab" {
		t.Fatalf("user name: %q", got)
	}
}
