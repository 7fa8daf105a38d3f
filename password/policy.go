package password

import (
	"fmt"
	"unicode"
)

// LengthPolicy rejects passwords shorter than MinLength bytes and passwords
// made entirely of digits. A zero MinLength means 8.
type LengthPolicy struct {
	MinLength int
}

func (p LengthPolicy) Validate(plaintext string) error {
	min := p.MinLength
	if min <= 0 {
		min = 8
	}
	if len(plaintext) < min {
		return fmt.Errorf("password must be at least %d characters", min)
	}

	numeric := true
	for _, r := range plaintext {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		return fmt.Errorf("password cannot be entirely numeric")
	}
	return nil
}
