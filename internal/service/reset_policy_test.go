package service

import (
	"testing"
	"time"
)

func TestIsTrialResetDue(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just reset", 0, false},
		{"one second short", 24*time.Hour - time.Second, false},
		{"exactly one interval", 24 * time.Hour, true},
		{"well past", 48 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsTrialResetDue(base, base.Add(tc.elapsed))
			if got != tc.want {
				t.Errorf("IsTrialResetDue(+%v) = %v, want %v", tc.elapsed, got, tc.want)
			}
		})
	}
}
