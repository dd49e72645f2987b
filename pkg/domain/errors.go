package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every error that must be reported to clients as a rejected write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches every error raised for an id that does not resolve.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a blank required field or an unresolved reference.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

// Is reports ValidationError as ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned when an id does not resolve to a stored record.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is reports NotFoundError as ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}

// Is reports blocking rule results as validation failures.
func (e RuleViolationError) Is(target error) bool { return target == ErrValidation }

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
