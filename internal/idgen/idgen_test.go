package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerate_Length(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	wantLen := len(DefaultPrefix) + Length
	if len(id) != wantLen {
		t.Errorf("Generate() length = %d, want %d (id=%q)", len(id), wantLen, id)
	}
}

func TestGenerate_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(DefaultPrefix) + `[a-z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Generate() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestForResource(t *testing.T) {
	for _, tc := range []struct {
		resource string
		prefix   string
	}{
		{"feedback", "fb-"},
		{"contacts", "ct-"},
		{"documents", "doc-"},
		{"tickets", "tk-"},
		{"calendar", DefaultPrefix},
	} {
		id, err := ForResource(tc.resource)
		if err != nil {
			t.Fatalf("ForResource(%q) error: %v", tc.resource, err)
		}
		if !strings.HasPrefix(id, tc.prefix) || len(id) != len(tc.prefix)+Length {
			t.Errorf("ForResource(%q) = %q, want prefix %q", tc.resource, id, tc.prefix)
		}
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	prefix := "test-"
	id, err := GenerateWithPrefix(prefix)
	if err != nil {
		t.Fatalf("GenerateWithPrefix(%q) error: %v", prefix, err)
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[a-z0-9]{10}$`)
	if !pattern.MatchString(id) {
		t.Errorf("GenerateWithPrefix(%q) = %q, does not match expected pattern", prefix, id)
	}
}
