package session

import (
	"errors"
	"fmt"
)

var (
	ErrNameTooShort = errors.New("name too short")
	ErrNameTooLong  = errors.New("name too long")
	ErrNameInvalid  = errors.New("name can only contain numbers, letters, and underscores")
)

// NameError is a rejected display name. Error() is the message shown to the user.
type NameError struct {
	kind error
	msg  string
}

func (e *NameError) Error() string { return e.msg }
func (e *NameError) Unwrap() error { return e.kind }

// Validator checks proposed display names.
type Validator struct {
	MinLength int
	MaxLength int
}

func NewValidator(minLength, maxLength int) *Validator {
	return &Validator{MinLength: minLength, MaxLength: maxLength}
}

// Validate returns the accepted name or a *NameError.
func (v *Validator) Validate(name string) (string, error) {
	if len(name) < v.MinLength {
		return "", &NameError{ErrNameTooShort, fmt.Sprintf("name must be at least %d characters", v.MinLength)}
	}
	if len(name) > v.MaxLength {
		return "", &NameError{ErrNameTooLong, fmt.Sprintf("name must be at most %d characters", v.MaxLength)}
	}
	for i := 0; i < len(name); i++ {
		if !nameChar(name[i]) {
			return "", &NameError{ErrNameInvalid, ErrNameInvalid.Error()}
		}
	}
	return name, nil
}

func nameChar(c byte) bool {
	return c >= '0' && c <= '9' ||
		c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c == '_'
}
