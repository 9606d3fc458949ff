package main

import (
	"testing"
	"time"

	"github.com/teamcache/teamcache/internal/model"
)

func TestParseJoinDate(t *testing.T) {
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    model.Date
		wantErr bool
	}{
		{"", model.Date{}, false},
		{"2024-02-29", model.Date{Year: 2024, Month: time.February, Day: 29}, false},
		{"yesterday", model.Date{Year: 2024, Month: time.February, Day: 29}, false},
		{"tomorrow", model.Date{Year: 2024, Month: time.March, Day: 2}, false},
		{"no date here", model.Date{}, true},
	}

	for _, tt := range tests {
		got, err := parseJoinDate(tt.in, base)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseJoinDate(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseJoinDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
