package interval

import (
	"errors"
	"testing"
	"time"
)

func TestNewCategoryValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "plain", input: "Chores", ok: true},
		{name: "with space", input: "Deep Work", ok: true},
		{name: "with colon", input: "cal:personal", ok: true},
		{name: "leading digit", input: "9lives", ok: false},
		{name: "empty", input: "", ok: false},
		{name: "slash", input: "a/b", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCategory(tt.input, nil)
			if tt.ok && err != nil {
				t.Fatalf("NewCategory(%q) error: %v", tt.input, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidName) {
				t.Fatalf("NewCategory(%q) error = %v, want ErrInvalidName", tt.input, err)
			}
		})
	}
}

func TestCategoryContains(t *testing.T) {
	t.Parallel()
	pool := NewCategoryPool()
	root, err := pool.Get("Life")
	if err != nil {
		t.Fatalf("Get root: %v", err)
	}
	leaf, err := pool.Get("Life/Chores/Kitchen")
	if err != nil {
		t.Fatalf("Get leaf: %v", err)
	}
	other, err := pool.Get("Work")
	if err != nil {
		t.Fatalf("Get other: %v", err)
	}

	now := time.Now()
	tag := NewTag("dishes", leaf, MustSpan(now, now.Add(time.Hour)))
	if !root.Contains(tag) {
		t.Fatal("ancestor should contain the tag")
	}
	if !leaf.Contains(tag) {
		t.Fatal("own category should contain the tag")
	}
	if other.Contains(tag) {
		t.Fatal("unrelated category should not contain the tag")
	}
}

func TestCategoryPoolSharesNodes(t *testing.T) {
	t.Parallel()
	pool := NewCategoryPool()
	a, err := pool.Get("Life/Chores")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := pool.Get("Life/Chores")
	if err != nil {
		t.Fatalf("Get again: %v", err)
	}
	if a != b {
		t.Fatal("repeated Get should return the cached node")
	}
	if !pool.Has("Life") {
		t.Fatal("intermediate node should be cached")
	}
	if a.FullPath() != "Life/Chores" {
		t.Fatalf("FullPath = %q", a.FullPath())
	}
	if _, err := pool.Get("Life//Chores"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("empty element error = %v, want ErrInvalidName", err)
	}
}

func TestTagSameOccurrence(t *testing.T) {
	t.Parallel()
	pool := NewCategoryPool()
	c1, _ := pool.Get("A")
	c2, _ := pool.Get("B")
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := MustSpan(start, start.Add(time.Hour))

	a := NewTag("standup", c1, s)
	b := NewTag("standup", c2, s)
	if !a.SameOccurrence(b) {
		t.Fatal("category must not affect occurrence identity")
	}
	c := NewTag("standup", c1, MustSpan(start.Add(time.Minute), start.Add(time.Hour)))
	if a.SameOccurrence(c) {
		t.Fatal("shifted start must break occurrence identity")
	}

	if got := a.Recategorize(c2).Category; got != c2 {
		t.Fatal("Recategorize should swap the category")
	}
	if a.Category != c1 {
		t.Fatal("Recategorize must not mutate the receiver")
	}
}
