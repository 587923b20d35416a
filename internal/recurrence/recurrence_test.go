package recurrence

import (
	"testing"
	"time"
)

// 2025-11-25 is a Tuesday.
var tuesday = time.Date(2025, 11, 25, 8, 1, 0, 0, time.UTC)

func TestNextDailyRollsToNextDay(t *testing.T) {
	t.Parallel()
	// 08:00 already passed at 08:01, so the next daily occurrence is
	// exactly one day later, not same-day.
	got, err := Next(Daily, nil, TimeOfDay{Hour: 8}, tuesday, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2025, 11, 26, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextDailySameDayWhenStillFuture(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 11, 25, 7, 59, 0, 0, time.UTC)
	got, err := Next(Daily, nil, TimeOfDay{Hour: 8}, from, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2025, 11, 25, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextExactHitIsConsumed(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 11, 25, 8, 0, 0, 0, time.UTC)
	got, err := Next(Daily, nil, TimeOfDay{Hour: 8}, from, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !got.After(from) {
		t.Fatalf("occurrence not strictly future: %v", got)
	}
	want := time.Date(2025, 11, 26, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextCustomDaysFromTuesday(t *testing.T) {
	t.Parallel()
	// Mon/Wed/Fri/Sun from a Tuesday lands on the following Wednesday.
	got, err := Next(Custom, []int{1, 3, 5, 7}, TimeOfDay{Hour: 9}, tuesday, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2025, 11, 26, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
	if got.Weekday() != time.Wednesday {
		t.Fatalf("weekday = %v, want Wednesday", got.Weekday())
	}
}

func TestNextCustomFullWeekGap(t *testing.T) {
	t.Parallel()
	// Only Tuesdays, reference already past today's slot: a full week out.
	got, err := Next(Custom, []int{2}, TimeOfDay{Hour: 8}, tuesday, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2025, 12, 2, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextWeekdaysSkipsWeekend(t *testing.T) {
	t.Parallel()
	friday := time.Date(2025, 11, 28, 18, 0, 0, 0, time.UTC)
	got, err := Next(Weekdays, nil, TimeOfDay{Hour: 9}, friday, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) // Monday
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextWeekends(t *testing.T) {
	t.Parallel()
	monday := time.Date(2025, 11, 24, 10, 0, 0, 0, time.UTC)
	got, err := Next(Weekends, nil, TimeOfDay{Hour: 8}, monday, time.UTC)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2025, 11, 29, 8, 0, 0, 0, time.UTC) // Saturday
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextIsDeterministic(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("ADT", -3*3600)
	a, err := Next(Daily, nil, TimeOfDay{Hour: 8, Minute: 30}, tuesday, loc)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	b, err := Next(Daily, nil, TimeOfDay{Hour: 8, Minute: 30}, tuesday, loc)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("same inputs produced %v and %v", a, b)
	}
}

func TestNextRejectsBadInput(t *testing.T) {
	t.Parallel()
	if _, err := Next(None, nil, TimeOfDay{}, tuesday, time.UTC); err == nil {
		t.Fatal("expected error for non-recurring rule")
	}
	if _, err := Next(Custom, nil, TimeOfDay{}, tuesday, time.UTC); err == nil {
		t.Fatal("expected error for empty custom days")
	}
	if _, err := Next(Custom, []int{0, 8}, TimeOfDay{}, tuesday, time.UTC); err == nil {
		t.Fatal("expected error for out-of-range days")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tod, err := ParseTimeOfDay("23:15")
	if err != nil {
		t.Fatalf("ParseTimeOfDay error: %v", err)
	}
	if tod.Hour != 23 || tod.Minute != 15 {
		t.Fatalf("unexpected result: %v", tod)
	}
	if tod.String() != "23:15" {
		t.Fatalf("String = %q", tod.String())
	}

	for _, raw := range []string{"24:00", "12:60", "8", "a:b", ""} {
		if _, err := ParseTimeOfDay(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseRuleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Rule
	}{
		{"none", None},
		{"", None},
		{"daily", Daily},
		{"Weekdays", Weekdays},
		{"weekends", Weekends},
		{"custom", Custom},
		{"weekly", Custom},
	}
	for _, tt := range tests {
		got, err := ParseRule(tt.raw)
		if err != nil {
			t.Fatalf("ParseRule(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseRule(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if _, err := ParseRule("fortnightly"); err == nil {
		t.Fatal("expected error for unknown rule")
	}
}

func TestISOWeekday(t *testing.T) {
	t.Parallel()
	if got := ISOWeekday(time.Monday); got != 1 {
		t.Fatalf("Monday = %d, want 1", got)
	}
	if got := ISOWeekday(time.Sunday); got != 7 {
		t.Fatalf("Sunday = %d, want 7", got)
	}
	if got := ISOWeekday(time.Saturday); got != 6 {
		t.Fatalf("Saturday = %d, want 6", got)
	}
}
