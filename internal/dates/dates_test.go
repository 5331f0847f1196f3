package dates

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	d, err := Parse("2025-04-01")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("Parse = %v, want %v", d, want)
	}

	if _, err := Parse("01.04.2025"); err == nil {
		t.Fatalf("expected error for wrong format")
	}
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty string")
	}
}

func TestNormalize(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	d := Normalize(time.Date(2025, 4, 1, 23, 59, 59, 0, msk))

	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("Normalize = %v, want %v", d, want)
	}
}

func TestEach_HalfOpenRange(t *testing.T) {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)

	var visited []string
	err := Each(start, end, func(d time.Time) error {
		visited = append(visited, Format(d))
		return nil
	})
	if err != nil {
		t.Fatalf("Each error: %v", err)
	}

	// Конечная дата в диапазон не входит.
	want := []string{"2025-04-01", "2025-04-02"}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	}
}

func TestEach_EmptyRange(t *testing.T) {
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	called := false
	err := Each(day, day, func(time.Time) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Each error: %v", err)
	}
	if called {
		t.Fatalf("fn must not be called for an empty range")
	}
}

func TestEach_StopsOnError(t *testing.T) {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	calls := 0
	err := Each(start, end, func(time.Time) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	if !errors.Is(err, boom) {
		t.Fatalf("Each error = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		start string
		end   string
		want  int
	}{
		{"2025-04-01", "2025-04-03", 2},
		{"2025-04-01", "2025-04-02", 1},
		{"2025-04-01", "2025-04-01", 0},
		{"2025-04-03", "2025-04-01", 0},
	}

	for _, tt := range tests {
		start, _ := Parse(tt.start)
		end, _ := Parse(tt.end)
		if got := Count(start, end); got != tt.want {
			t.Fatalf("Count(%s, %s) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
}
