package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/viralforge/taskboard/internal/identity/domain"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	valid := []string{"secret1234", "a1b2c3d4", strings.Repeat("a", 127) + "1"}
	for _, password := range valid {
		if err := domain.ValidatePassword(password); err != nil {
			t.Fatalf("expected %q to be valid, got %v", password, err)
		}
	}

	invalid := []string{
		"",
		"short1",
		"lettersonly",
		"12345678",
		strings.Repeat("a", 128) + "1",
	}
	for _, password := range invalid {
		if err := domain.ValidatePassword(password); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected %q to be rejected, got %v", password, err)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	trimmed, err := domain.ValidateUsername("  alice  ")
	if err != nil {
		t.Fatalf("expected trimmed username, got %v", err)
	}
	if trimmed != "alice" {
		t.Fatalf("expected trimmed username, got %q", trimmed)
	}

	if _, err := domain.ValidateUsername("   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected blank username rejection, got %v", err)
	}
	if _, err := domain.ValidateUsername(strings.Repeat("x", 151)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected long username rejection, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.Role{
		"admin":    domain.RoleAdmin,
		"Worker":   domain.RoleWorker,
		" MANAGER": domain.RoleManager,
	}
	for raw, want := range cases {
		got, err := domain.ParseRole(raw)
		if err != nil {
			t.Fatalf("parse role %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse role %q: got %q want %q", raw, got, want)
		}
	}

	if _, err := domain.ParseRole("superuser"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected unknown role rejection, got %v", err)
	}
}
