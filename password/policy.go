package password

import (
	"fmt"
	"unicode"
)

// DefaultMinLength is the shortest secret accepted by DefaultPolicy.
const DefaultMinLength = 6

// Policy describes the composition rules for a new account secret.
type Policy struct {
	MinLength     int
	RequireLetter bool
	RequireDigit  bool
}

// DefaultPolicy requires six characters with at least one letter and one digit.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     DefaultMinLength,
		RequireLetter: true,
		RequireDigit:  true,
	}
}

// Validate returns an error wrapping ErrPolicy describing the first rule secret breaks.
func (p Policy) Validate(secret string) error {
	if n := len([]rune(secret)); n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPolicy, p.MinLength)
	}

	var letter, digit bool
	for _, r := range secret {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if p.RequireLetter && !letter {
		return fmt.Errorf("%w: must contain a letter", ErrPolicy)
	}
	if p.RequireDigit && !digit {
		return fmt.Errorf("%w: must contain a digit", ErrPolicy)
	}
	return nil
}
