package auth

import (
	"errors"
)

var (
	ErrPinFormat = errors.New("pin must be 4 to 6 digits")
	ErrPinWeak   = errors.New("pin is too easy to guess")
)

// ValidatePin rejects anything that is not 4-6 ASCII digits, repeated digits
// (0000) and straight runs (1234, 98765).
func ValidatePin(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return ErrPinFormat
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrPinFormat
		}
	}

	same, up, down := true, true, true
	for i := 1; i < len(pin); i++ {
		d := int(pin[i]) - int(pin[i-1])
		same = same && d == 0
		up = up && d == 1
		down = down && d == -1
	}
	if same || up || down {
		return ErrPinWeak
	}
	return nil
}

func HashPin(pin string) (string, error) {
	if err := ValidatePin(pin); err != nil {
		return "", err
	}
	return HashPassword(pin)
}

func CheckPin(pin, hash string) bool {
	if hash == "" {
		return false
	}
	return CheckPasswordHash(pin, hash)
}
