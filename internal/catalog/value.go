package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

var ErrInvalidValue = errors.New("invalid value")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Digits strips every non-digit character.
func Digits(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < utf8.RuneSelf {
			return r
		}
		return -1
	}, v)
}

// ValidDate reports whether v is a real calendar date in DateLayout.
func ValidDate(v string) bool {
	_, err := time.Parse(DateLayout, v)
	return err == nil
}

// Normalize validates a value about to be written to the field and returns
// its stored form. An empty result means the column is written as NULL.
func (f Field) Normalize(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		if f.Required {
			return "", fmt.Errorf("%w: %s is required", ErrInvalidValue, f.Name)
		}
		return "", nil
	}

	switch f.Shape {
	case DigitsOnly:
		v = Digits(v)
		if v == "" {
			return "", fmt.Errorf("%w: %s must contain digits", ErrInvalidValue, f.Name)
		}
	case EmailLike:
		if !emailPattern.MatchString(v) {
			return "", fmt.Errorf("%w: %s is not an email address", ErrInvalidValue, f.Name)
		}
	case Date:
		if !ValidDate(v) {
			return "", fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", ErrInvalidValue, f.Name)
		}
	}

	if len(f.Values) > 0 {
		canonical, ok := f.oneOf(v)
		if !ok {
			return "", fmt.Errorf("%w: %s must be one of %s", ErrInvalidValue, f.Name, strings.Join(f.Values, ", "))
		}
		v = canonical
	}

	if f.MaxLength > 0 && utf8.RuneCountInString(v) > f.MaxLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidValue, f.Name, f.MaxLength)
	}

	return v, nil
}

func (f Field) oneOf(v string) (string, bool) {
	for _, allowed := range f.Values {
		if strings.EqualFold(allowed, v) {
			return allowed, true
		}
	}
	return "", false
}
