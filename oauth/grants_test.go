package oauth

import "testing"

func TestFilterScopes(t *testing.T) {
	cases := []struct {
		approved, requested, want string
	}{
		{"read write", "write admin", "write"},
		{"read write", "read write", "read write"},
		{"read write", "write read", "write read"},
		{"", "read", ""},
		{"read", "", ""},
		{"read write admin", "admin read", "admin read"},
	}
	for _, tc := range cases {
		if got := FilterScopes(tc.approved, tc.requested); got != tc.want {
			t.Errorf("FilterScopes(%q, %q) = %q, want %q", tc.approved, tc.requested, got, tc.want)
		}
	}
}
