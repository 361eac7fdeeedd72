package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
)

// Required validates that a string is not empty after trimming whitespace.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

// LenBetween validates that a string length is within [min, max].
func LenBetween(field, value string, min, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) >= min && len(value) <= max },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d characters long", min, max),
		},
	}
}

// MaxLen validates that a string does not exceed max characters.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= max },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d characters long", max),
		},
	}
}

// Email validates that a string is a parseable email address.
func Email(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			return err == nil && addr.Address == value
		},
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// Matches validates a string against a compiled pattern.
func Matches(field, value string, pattern *regexp.Regexp, message string) Rule {
	return Rule{
		Check: func() bool { return pattern.MatchString(value) },
		Error: ValidationError{Field: field, Message: message},
	}
}

// True validates that a boolean condition holds.
func True(field string, value bool, message string) Rule {
	return Rule{
		Check: func() bool { return value },
		Error: ValidationError{Field: field, Message: message},
	}
}

// Excludes validates that a list does not contain a forbidden value.
func Excludes(field string, values []string, forbidden, message string) Rule {
	return Rule{
		Check: func() bool { return !slices.Contains(values, forbidden) },
		Error: ValidationError{Field: field, Message: message},
	}
}

// When applies a rule only if the condition holds, passing otherwise.
// Useful for optional fields that are validated only when present.
func When(condition bool, rule Rule) Rule {
	if condition {
		return rule
	}
	return Rule{Check: func() bool { return true }, Error: rule.Error}
}
