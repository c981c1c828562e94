package cron

import (
	"testing"
	"time"
)

func TestParser_ResyncExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"every 5 minutes", "*/5 * * * *"},
		{"hourly descriptor", "@hourly"},
		{"every descriptor", "@every 90s"},
		{"business hours", "0 9-17 * * 1-5"},
		{"surrounding whitespace", "  */10 * * * *  "},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "")
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if sched == nil {
				t.Fatalf("Parse(%q) returned nil schedule", tt.expr)
			}
		})
	}
}

func TestParser_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"four fields", "* * * *"},
		{"six fields", "* * * * * *"},
		{"invalid minute 60", "60 * * * *"},
		{"unknown descriptor", "@fortnightly"},
		{"empty", ""},
		{"blank", "   "},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(tt.expr, "UTC"); err == nil {
				t.Errorf("Parse(%q) should return error", tt.expr)
			}
		})
	}
}

func TestParser_InvalidTimezone(t *testing.T) {
	if _, err := NewParser().Parse("*/5 * * * *", "Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestSchedule_Next(t *testing.T) {
	sched, err := NewParser().Parse("*/5 * * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	after := time.Date(2024, 6, 1, 10, 2, 30, 0, time.UTC)
	want := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	if got := sched.Next(after); !got.Equal(want) {
		t.Errorf("Next(%s) = %s, want %s", after, got, want)
	}
}

func TestSchedule_EveryDescriptor(t *testing.T) {
	sched, err := NewParser().Parse("@every 90s", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	after := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if got := sched.Next(after); got.Sub(after) != 90*time.Second {
		t.Errorf("Next - after = %s, want 90s", got.Sub(after))
	}
}

func TestSchedule_Timezone(t *testing.T) {
	sched, err := NewParser().Parse("0 9 * * *", "America/New_York")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// 12:00 UTC on June 1 is 08:00 EDT; next 09:00 EDT is 13:00 UTC.
	after := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	if got := sched.Next(after); !got.Equal(want) {
		t.Errorf("Next = %s, want %s", got.UTC(), want)
	}
}
