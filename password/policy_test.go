package password

import (
	"errors"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		secret string
		ok     bool
	}{
		{"Passw0rd", true},
		{"NewPass1", true},
		{"abc123", true},
		{"ab12", false},
		{"abcdefgh", false},
		{"12345678", false},
		{"", false},
	}

	for _, tt := range tests {
		err := p.Validate(tt.secret)
		if tt.ok && err != nil {
			t.Fatalf("Validate(%q) unexpected error: %v", tt.secret, err)
		}
		if !tt.ok && !errors.Is(err, ErrPolicy) {
			t.Fatalf("Validate(%q) expected ErrPolicy, got %v", tt.secret, err)
		}
	}
}

func TestPolicyCountsRunes(t *testing.T) {
	p := Policy{MinLength: 3}
	if err := p.Validate("né1"); err != nil {
		t.Fatalf("expected three-rune secret to pass, got %v", err)
	}
}
