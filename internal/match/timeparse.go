package match

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseSeconds parses a time expression such as "1min20s", "30s", "2m",
// "-10s" or a bare number of seconds.
func ParseSeconds(expr string) (int, error) {
	s := strings.ToLower(strings.Join(strings.Fields(expr), ""))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	sign := 1
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, expr)
	}

	total := 0
	number := ""
	for i := 0; i < len(s); i++ {
		c := rune(s[i])
		if unicode.IsDigit(c) {
			number += string(c)
			continue
		}
		if number == "" {
			return 0, fmt.Errorf("%w: unit without number in %q", ErrInvalidTime, expr)
		}
		value, err := strconv.Atoi(number)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}

		switch c {
		case 'm':
			if strings.HasPrefix(s[i:], "min") {
				i += 2
			}
			total += value * 60
		case 's':
			total += value
		default:
			return 0, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidTime, c, expr)
		}
		number = ""
	}
	if number != "" {
		value, err := strconv.Atoi(number)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
		total += value
	}
	return sign * total, nil
}

// FormatClock renders seconds as mm:ss
func FormatClock(seconds int) string {
	neg := ""
	if seconds < 0 {
		neg = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", neg, seconds/60, seconds%60)
}
