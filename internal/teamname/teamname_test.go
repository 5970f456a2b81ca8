package teamname

import (
	"errors"
	"testing"
)

func TestValidateAccepts(t *testing.T) {
	cases := []string{
		"demo",
		"a1",
		"team-with-dashes",
		"a23456789012345678901234567890123456789012345678z",
	}
	for _, name := range cases {
		got, err := Validate(name)
		if err != nil {
			t.Errorf("Validate(%q) unexpected error: %v", name, err)
		}
		if got != name {
			t.Errorf("Validate(%q) = %q, want unchanged", name, got)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []string{
		"",
		"A",
		"Team",
		"-team",
		"team-",
		"team name",
		"team_name",
		"team;rm -rf",
		"team`ls`",
		"a",
	}
	for _, name := range cases {
		if _, err := Validate(name); err == nil {
			t.Errorf("Validate(%q) expected error, got nil", name)
		}
	}
}

func TestInvalidNameErrorMessage(t *testing.T) {
	_, err := Validate("Bad Name")
	if err == nil {
		t.Fatal("expected error")
	}
	var nameErr *InvalidNameError
	if !errors.As(err, &nameErr) {
		t.Fatalf("expected *InvalidNameError, got %T", err)
	}
	if nameErr.Name != "Bad Name" {
		t.Errorf("Name = %q, want %q", nameErr.Name, "Bad Name")
	}
}
