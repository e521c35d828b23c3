package db

import "testing"

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		fragment string
		want     string
	}{
		{fragment: "essi", want: "%essi%"},
		{fragment: "", want: "%%"},
		{fragment: "100%", want: `%100\%%`},
		{fragment: "a_b", want: `%a\_b%`},
		{fragment: `back\slash`, want: `%back\\slash%`},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			if got := containsPattern(tt.fragment); got != tt.want {
				t.Errorf("containsPattern(%q) = %q, want %q", tt.fragment, got, tt.want)
			}
		})
	}
}
