package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "18:00", want: 18 * 60},
		{in: "19:30", want: 19*60 + 30},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:01", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "7:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "+9:00", wantErr: true},
		{in: "-0:30", wantErr: true},
		{in: "09:+5", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q) expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tc.in, got, tc.want)
		}
		if got.String() != tc.in {
			t.Errorf("String() = %q, want %q", got.String(), tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !d.Equal(NewDate(2025, time.June, 1)) {
		t.Fatalf("got %s", d)
	}
	if _, err := ParseDate("2025-13-01"); err == nil {
		t.Fatal("expected error for month 13")
	}
	if _, err := ParseDate("01/06/2025"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	instant := time.Date(2025, time.June, 1, 20, 0, 0, 0, time.UTC)
	if got := DateOf(instant.In(loc)); !got.Equal(NewDate(2025, time.June, 2)) {
		t.Fatalf("DateOf in +10 = %s, want 2025-06-02", got)
	}
}

func TestCalendarJSON(t *testing.T) {
	type payload struct {
		Date  Date      `json:"date"`
		Start TimeOfDay `json:"start"`
	}
	var p payload
	if err := json.Unmarshal([]byte(`{"date":"2025-06-01","start":"18:00"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Date.String() != "2025-06-01" || p.Start != NewTimeOfDay(18, 0) {
		t.Fatalf("unexpected payload %+v", p)
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2025-06-01","start":"18:00"}` {
		t.Fatalf("marshal = %s", out)
	}
	if err := json.Unmarshal([]byte(`{"date":"tomorrow"}`), &p); err == nil {
		t.Fatal("expected error for bad date")
	}
}
