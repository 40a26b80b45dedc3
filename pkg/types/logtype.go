// Package types provides the shared domain types for the logvault engine.
package types

import "fmt"

// LogType identifies one of the four compliance log streams.
type LogType string

const (
	LogTypeAuthentication LogType = "authentication"
	LogTypeAccess         LogType = "access"
	LogTypeFinancial      LogType = "financial"
	LogTypeSystem         LogType = "system"
)

// AllLogTypes returns the four log types in their fixed processing order.
func AllLogTypes() []LogType {
	return []LogType{LogTypeAuthentication, LogTypeAccess, LogTypeFinancial, LogTypeSystem}
}

// ParseLogType validates and converts a string into a LogType.
func ParseLogType(s string) (LogType, error) {
	t := LogType(s)
	if !t.Valid() {
		return "", fmt.Errorf("types: invalid log type %q (must be authentication, access, financial, or system)", s)
	}
	return t, nil
}

// Valid reports whether the log type is one of the four known streams.
func (t LogType) Valid() bool {
	switch t {
	case LogTypeAuthentication, LogTypeAccess, LogTypeFinancial, LogTypeSystem:
		return true
	}
	return false
}

func (t LogType) String() string {
	return string(t)
}
