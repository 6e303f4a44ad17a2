package web

import (
	"fmt"
	"strconv"
	"time"
	"unicode"
)

func IsSecureString(s string) bool {
	allowedSafeSymbols := map[rune]bool{
		'_': true,
		'-': true,
		'.': true,
		'@': true,
		'#': true,
		' ': true,
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if _, ok := allowedSafeSymbols[r]; !ok {
				return false
			}
		}
	}
	return true
}

func VerifyStringRequest(s string) bool {
	if len(s) == 0 {
		return false
	}
	if len(s) > 100 {
		return false
	}
	return IsSecureString(s)
}

// ParseJSTimestampString parses a JavaScript Date.now() string (milliseconds
// since epoch) into a Go time.Time object.
func ParseJSTimestampString(jsTimestampStr string) (time.Time, error) {
	unixMilli, err := strconv.ParseInt(jsTimestampStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp string '%s' to int64: %w", jsTimestampStr, err)
	}

	return time.UnixMilli(unixMilli), nil
}
