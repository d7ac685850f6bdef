package cron

import (
	"testing"
	"time"
)

func TestParser_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"every minute", "* * * * *"},
		{"every 15 minutes", "*/15 * * * *"},
		{"nightly 02:30", "30 2 * * *"},
		{"weekday mornings", "0 6 * * 1-5"},
		{"first of month", "0 0 1 * *"},
		{"padded", "  0 * * * *  "},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "UTC")
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
		{"six fields", "0 * * * * *"},
		{"minute out of range", "61 * * * *"},
		{"hour out of range", "0 24 * * *"},
		{"garbage", "not a cron"},
		{"empty", ""},
		{"blank", "   "},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(tt.expr, "UTC"); err == nil {
				t.Errorf("Parse(%q) should fail", tt.expr)
			}
		})
	}
}

func TestParser_NextIsStrictlyAfter(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 * * * *", "UTC")
	if err != nil {
		t.Fatal(err)
	}

	onTheHour := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	next := sched.Next(onTheHour)
	want := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", onTheHour, next, want)
	}
}

func TestParser_EvaluatesInScheduleZone(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 9 * * *", "Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}

	// 2026-05-01 00:30 UTC is 09:30 in Tokyo, so the next 09:00 Tokyo is the
	// following day at 00:00 UTC.
	after := time.Date(2026, 5, 1, 0, 30, 0, 0, time.UTC)
	next := sched.Next(after).UTC()
	want := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestParser_UnknownZoneFallsBackToUTC(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 9 * * *", "Mars/Olympus_Mons")
	if err != nil {
		t.Fatalf("lenient Parse should accept unknown zone, got %v", err)
	}

	after := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	want := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	if got := sched.Next(after).UTC(); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestParser_Validate(t *testing.T) {
	p := NewParser()

	if err := p.Validate("*/5 * * * *", "Europe/Paris"); err != nil {
		t.Errorf("Validate valid: %v", err)
	}
	if err := p.Validate("*/5 * * * *", "Mars/Olympus_Mons"); err == nil {
		t.Error("Validate should reject unknown zone")
	}
	if err := p.Validate("bogus", "UTC"); err == nil {
		t.Error("Validate should reject bad expression")
	}
}

func TestLocation(t *testing.T) {
	if Location("") != time.UTC {
		t.Error("empty zone should be UTC")
	}
	if Location("nope/nope") != time.UTC {
		t.Error("unknown zone should be UTC")
	}
	if loc := Location("Europe/Berlin"); loc.String() != "Europe/Berlin" {
		t.Errorf("Location(Europe/Berlin) = %v", loc)
	}
}
