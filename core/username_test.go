package core

import "testing"

func TestNormalizeUsername(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{"alice", "alice", false},
		{"  Alice  ", "alice", false},
		{"al-ice.99", "alice99", false},
		{"under_score", "under_score", false},
		{"", "", true},
		{"!!!", "", true},
		{"9lives", "", true},
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
	}
	for _, tc := range cases {
		got, err := NormalizeUsername(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeUsername(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeUsername(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
