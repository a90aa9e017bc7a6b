// Package validate builds small composable string validators for user
// supplied names and text.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not blank
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// MaxLength checks the maximum length in characters
func MaxLength(max int) Validator {
	return func(v string) error {
		if utf8.RuneCountInString(v) > max {
			return fmt.Errorf("must be no more than %d characters", max)
		}
		return nil
	}
}

// NoneOf rejects the listed values
func NoneOf(forbidden ...string) Validator {
	set := make(map[string]struct{}, len(forbidden))
	for _, f := range forbidden {
		set[f] = struct{}{}
	}
	return func(v string) error {
		if _, ok := set[v]; ok {
			return fmt.Errorf("%q is not allowed", v)
		}
		return nil
	}
}

// Excludes rejects values containing any of the given characters
func Excludes(chars string) Validator {
	return func(v string) error {
		if strings.ContainsAny(v, chars) {
			return fmt.Errorf("must not contain any of %q", chars)
		}
		return nil
	}
}

// Printable rejects control characters
func Printable() Validator {
	return func(v string) error {
		for _, r := range v {
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				return fmt.Errorf("must not contain control characters")
			}
		}
		return nil
	}
}
