//go:build !integration

package model

import (
	"errors"
	"strings"
	"testing"

	"future-self-ai/internal/domain"
)

func TestProfessions(t *testing.T) {
	ps := Professions()
	if len(ps) != 10 {
		t.Fatalf("expected 10 professions, got %d", len(ps))
	}
	if ps[0].ID != "artist" || ps[0].Name != "Artist" {
		t.Errorf("expected sorted catalogue starting with Artist, got %+v", ps[0])
	}
}

func TestNormalizeProfession(t *testing.T) {
	t.Run("should accept any casing", func(t *testing.T) {
		got, err := NormalizeProfession("  FireFighter ")
		if err != nil || got != "firefighter" {
			t.Fatalf("expected firefighter, got %q / %v", got, err)
		}
	})

	t.Run("should list the choices for an unknown profession", func(t *testing.T) {
		_, err := NormalizeProfession("wizard")
		if !errors.Is(err, domain.ErrInvalidArgument) || !strings.Contains(err.Error(), "astronaut") {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestValidateTargetAge(t *testing.T) {
	for age, ok := range map[int]bool{19: false, 20: true, 35: true, 60: true, 61: false} {
		if err := ValidateTargetAge(age); (err == nil) != ok {
			t.Errorf("age %d: expected ok=%v, got %v", age, ok, err)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("should render the age into the profession template", func(t *testing.T) {
		p := BuildPrompt("Engineer", 35)
		if !strings.HasPrefix(p, "engineer, safety helmet") || !strings.Contains(p, "age 35") {
			t.Fatalf("unexpected prompt %q", p)
		}
		if !strings.HasSuffix(p, "masterpiece, best quality") {
			t.Fatalf("missing quality suffix: %q", p)
		}
	})

	t.Run("should fall back for unknown professions", func(t *testing.T) {
		p := BuildPrompt("wizard", 40)
		if !strings.HasPrefix(p, "professional adult, office setting, age 40") {
			t.Fatalf("unexpected fallback %q", p)
		}
	})
}
