package core

import (
	"errors"
	"strings"
)

// ErrInvalidUsername reports a username that normalization cannot save.
var ErrInvalidUsername = errors.New("invalid username")

// NormalizeUsername lowercases, strips everything outside [a-z0-9_],
// requires a letter prefix and caps length at 32. Registration runs all
// usernames through this so lookups are canonical.
func NormalizeUsername(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrInvalidUsername
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "", ErrInvalidUsername
	}
	if out[0] < 'a' || out[0] > 'z' {
		return "", ErrInvalidUsername
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return out, nil
}
