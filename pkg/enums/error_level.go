package enums

import "fmt"

// ErrorLevel is the severity persisted on error_log rows.
type ErrorLevel string

const (
	ErrorLevelError   ErrorLevel = "ERROR"
	ErrorLevelWarning ErrorLevel = "WARNING"
	ErrorLevelInfo    ErrorLevel = "INFO"
)

var validErrorLevels = []ErrorLevel{
	ErrorLevelError,
	ErrorLevelWarning,
	ErrorLevelInfo,
}

// String implements fmt.Stringer.
func (l ErrorLevel) String() string {
	return string(l)
}

// IsValid reports whether the value is a known ErrorLevel.
func (l ErrorLevel) IsValid() bool {
	for _, candidate := range validErrorLevels {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseErrorLevel converts raw input into an ErrorLevel.
func ParseErrorLevel(value string) (ErrorLevel, error) {
	for _, candidate := range validErrorLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error level %q", value)
}
