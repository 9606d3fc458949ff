package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2024-01-01", Date{2024, time.January, 1}, false},
		{"2024-02-29T23:30:00-05:00", Date{2024, time.February, 29}, false},
		{" 2023-12-31 ", Date{2023, time.December, 31}, false},
		{"01/02/2024", Date{}, true},
		{"", Date{}, true},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate_NoZoneShift(t *testing.T) {
	// A late-evening timestamp in a western zone keeps its own calendar day.
	d, err := ParseDate("2024-03-10T23:59:59-08:00")
	if err != nil {
		t.Fatalf("ParseDate() failed: %v", err)
	}
	if d.String() != "2024-03-10" {
		t.Errorf("got %s, want 2024-03-10", d)
	}
}

func TestDaysBetween(t *testing.T) {
	from := Date{2024, time.January, 1}

	if got := DaysBetween(from, Date{2024, time.January, 31}); got != 30 {
		t.Errorf("DaysBetween = %d, want 30", got)
	}
	if got := DaysBetween(from, Date{2025, time.January, 1}); got != 366 {
		t.Errorf("DaysBetween over leap year = %d, want 366", got)
	}
	if got := DaysBetween(Date{2024, time.March, 5}, from); got != -64 {
		t.Errorf("DaysBetween backwards = %d, want -64", got)
	}
}

func TestAddDays(t *testing.T) {
	d := Date{2024, time.February, 28}
	if got := d.AddDays(1); got != (Date{2024, time.February, 29}) {
		t.Errorf("AddDays(1) = %v", got)
	}
	if got := d.AddDays(2); got != (Date{2024, time.March, 1}) {
		t.Errorf("AddDays(2) = %v", got)
	}
	if !d.Before(d.AddDays(1)) {
		t.Error("expected d before d+1")
	}
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}

	data, err := json.Marshal(wrapper{D: Date{2024, time.July, 4}})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if string(data) != `{"d":"2024-07-04"}` {
		t.Errorf("Marshal() = %s", data)
	}

	data, _ = json.Marshal(wrapper{})
	if string(data) != `{"d":null}` {
		t.Errorf("zero date marshals to %s, want null", data)
	}

	for _, in := range []string{`{"d":null}`, `{"d":""}`} {
		var w wrapper
		if err := json.Unmarshal([]byte(in), &w); err != nil {
			t.Errorf("Unmarshal(%s) failed: %v", in, err)
		}
		if !w.D.IsZero() {
			t.Errorf("Unmarshal(%s) = %v, want zero", in, w.D)
		}
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"d":12}`), &w); err == nil {
		t.Error("expected error for numeric date")
	}
}

func TestNormalizeSubscriptions(t *testing.T) {
	got := NormalizeSubscriptions([]string{"spotify", "", "netflix", "spotify"})
	want := []string{"netflix", "spotify"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if got := NormalizeSubscriptions(nil); got == nil || len(got) != 0 {
		t.Errorf("NormalizeSubscriptions(nil) = %#v, want empty non-nil", got)
	}
}
