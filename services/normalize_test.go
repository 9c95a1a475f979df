package services

import (
	"testing"

	"github.com/gustakei/lave/models"
)

func kg(v float64) *float64 { return &v }

func TestParseWeight(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "plain integer", input: "123", want: 123.0, ok: true},
		{name: "period decimal", input: "123.45", want: 123.45, ok: true},
		{name: "comma decimal", input: "123,45", want: 123.45, ok: true},
		{name: "unit suffix kg", input: "123.45 kg", want: 123.45, ok: true},
		{name: "unit suffix no space", input: "123,45kg", want: 123.45, ok: true},
		{name: "unit suffix uppercase", input: "123 KG", want: 123.0, ok: true},
		{name: "unit suffix quilos", input: "12 quilos", want: 12.0, ok: true},
		{name: "unit suffix kilo", input: "12 kilo", want: 12.0, ok: true},
		{name: "brazilian thousands", input: "1.234,56", want: 1234.56, ok: true},
		{name: "english thousands", input: "1,234.56", want: 1234.56, ok: true},
		{name: "surrounding junk", input: "  Total: 88,5 kg  ", want: 88.5, ok: true},
		{name: "zero", input: "0", want: 0.0, ok: true},
		{name: "empty", input: "", ok: false},
		{name: "letters only", input: "abc", ok: false},
		{name: "negative rejected", input: "-123", ok: false},
		{name: "lone minus", input: "-", ok: false},
		{name: "lone period", input: ".", ok: false},
		{name: "lone comma", input: ",", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseWeight(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseWeight(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseWeight(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		fuzzy bool
		want  string
		ok    bool
	}{
		{name: "iso", input: "2025-01-15", want: "2025-01-15", ok: true},
		{name: "brazilian slashes", input: "15/01/2025", want: "2025-01-15", ok: true},
		{name: "brazilian dashes", input: "15-01-2025", want: "2025-01-15", ok: true},
		{name: "brazilian dots", input: "15.01.2025", want: "2025-01-15", ok: true},
		{name: "day first wins", input: "01/02/2025", want: "2025-02-01", ok: true},
		{name: "single digit day", input: "5/1/2025", want: "2025-01-05", ok: true},
		{name: "two digit year", input: "15/01/25", want: "2025-01-15", ok: true},
		{name: "embedded text fuzzy", input: "Data: 15/01/2025", fuzzy: true, want: "2025-01-15", ok: true},
		{name: "embedded iso fuzzy", input: "dia 2025-01-15 coleta", fuzzy: true, want: "2025-01-15", ok: true},
		{name: "embedded text strict", input: "Data: 15/01/2025", fuzzy: false, ok: false},
		{name: "empty", input: "", fuzzy: true, ok: false},
		{name: "garbage", input: "invalid", fuzzy: true, ok: false},
		{name: "impossible month", input: "15/13/2025", fuzzy: false, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input, tt.fuzzy)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q, %v) ok = %v, want %v", tt.input, tt.fuzzy, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseDate(%q, %v) = %q, want %q", tt.input, tt.fuzzy, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnitID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"101", "101"},
		{"ABC", "abc"},
		{" 101 ", "101"},
		{"Unit 101", "unit101"},
		{"Unit-101", "unit-101"},
		{"Unit@101", "unit101"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeUnitID(tt.input); got != tt.want {
			t.Errorf("NormalizeUnitID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFilterByDateRange(t *testing.T) {
	rows := []models.Row{
		{Date: "2025-01-10", Kg: kg(100)},
		{Date: "2025-01-11", Kg: kg(200)},
		{Date: "2025-01-12", Kg: kg(300)},
		{Date: "2025-01-13", Kg: kg(400)},
	}

	t.Run("no bounds keeps everything", func(t *testing.T) {
		got := FilterByDateRange(rows, "", "")
		if len(got) != 4 {
			t.Errorf("got %d rows, want 4", len(got))
		}
	})

	t.Run("start bound", func(t *testing.T) {
		got := FilterByDateRange(rows, "2025-01-11", "")
		if len(got) != 3 || got[0].Date != "2025-01-11" {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("end bound", func(t *testing.T) {
		got := FilterByDateRange(rows, "", "2025-01-11")
		if len(got) != 2 || got[len(got)-1].Date != "2025-01-11" {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("both bounds inclusive, order preserved", func(t *testing.T) {
		got := FilterByDateRange(rows, "2025-01-11", "2025-01-12")
		if len(got) != 2 || got[0].Date != "2025-01-11" || got[1].Date != "2025-01-12" {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		once := FilterByDateRange(rows, "2025-01-11", "2025-01-12")
		twice := FilterByDateRange(once, "2025-01-11", "2025-01-12")
		if len(once) != len(twice) {
			t.Fatalf("second filter changed length: %d vs %d", len(once), len(twice))
		}
		for i := range once {
			if once[i].Date != twice[i].Date {
				t.Errorf("row %d changed: %q vs %q", i, once[i].Date, twice[i].Date)
			}
		}
	})

	t.Run("empty result is valid", func(t *testing.T) {
		got := FilterByDateRange(rows, "2026-01-01", "2026-01-31")
		if len(got) != 0 {
			t.Errorf("got %d rows, want 0", len(got))
		}
	})
}

func TestSumWeights(t *testing.T) {
	t.Run("simple sum rounds to 2 decimals", func(t *testing.T) {
		rows := []models.Row{
			{Kg: kg(100.5)},
			{Kg: kg(200.3)},
			{Kg: kg(50.2)},
		}
		if got := SumWeights(rows); got != 351.0 {
			t.Errorf("got %v, want 351.0", got)
		}
	})

	t.Run("rows without weight are skipped", func(t *testing.T) {
		rows := []models.Row{
			{Kg: kg(100)},
			{Kg: nil},
			{Kg: kg(200)},
		}
		if got := SumWeights(rows); got != 300.0 {
			t.Errorf("got %v, want 300.0", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := SumWeights(nil); got != 0.0 {
			t.Errorf("got %v, want 0.0", got)
		}
	})
}

func TestValidateDateRange(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart string
		wantEnd   string
	}{
		{name: "both present", start: "2025-01-01", end: "2025-01-07", wantStart: "2025-01-01", wantEnd: "2025-01-07"},
		{name: "only start fills end", start: "2025-01-01", end: "", wantStart: "2025-01-01", wantEnd: "2025-01-01"},
		{name: "only end fills start", start: "", end: "2025-01-07", wantStart: "2025-01-07", wantEnd: "2025-01-07"},
		{name: "reversed bounds swapped", start: "2025-01-07", end: "2025-01-01", wantStart: "2025-01-01", wantEnd: "2025-01-07"},
		{name: "brazilian input normalized", start: "01/01/2025", end: "07/01/2025", wantStart: "2025-01-01", wantEnd: "2025-01-07"},
		{name: "unparseable bound treated absent", start: "not-a-date", end: "2025-01-07", wantStart: "2025-01-07", wantEnd: "2025-01-07"},
		{name: "both empty", start: "", end: "", wantStart: "", wantEnd: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ValidateDateRange(tt.start, tt.end)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("ValidateDateRange(%q, %q) = (%q, %q), want (%q, %q)",
					tt.start, tt.end, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
