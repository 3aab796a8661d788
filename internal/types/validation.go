package types

import (
	"fmt"
	"strings"
)

// Problem is one defect found while validating a state document.
type Problem struct {
	Field    string // path such as "papers_pool[3].status"
	Message  string
	Expected string
	Found    string
}

func (p Problem) String() string {
	if p.Expected == "" {
		return p.Field + ": " + p.Message
	}
	return fmt.Sprintf("%s: %s (expected %s, found %s)", p.Field, p.Message, p.Expected, p.Found)
}

// ValidationErrors collects problems in the order they were found.
type ValidationErrors struct {
	Problems []Problem
}

// Missing records an absent required field.
func (v *ValidationErrors) Missing(field string) {
	v.Problems = append(v.Problems, Problem{Field: field, Message: "missing required field"})
}

// Invalid records a field whose value is present but unusable. found is
// rendered quoted when it is a string.
func (v *ValidationErrors) Invalid(field, msg, expected string, found any) {
	v.Problems = append(v.Problems, Problem{
		Field:    field,
		Message:  msg,
		Expected: expected,
		Found:    render(found),
	})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Problems) > 0
}

func (v *ValidationErrors) Error() string {
	switch len(v.Problems) {
	case 0:
		return "no validation errors"
	case 1:
		return "invalid state document: " + v.Problems[0].String()
	default:
		return fmt.Sprintf("invalid state document: %d problems", len(v.Problems))
	}
}

// Messages returns one line per problem for a bulleted listing.
func (v *ValidationErrors) Messages() []string {
	lines := make([]string, len(v.Problems))
	for i, p := range v.Problems {
		lines[i] = p.String()
	}
	return lines
}

// OneOf formats a closed set of allowed values.
func OneOf[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return "one of: " + strings.Join(parts, ", ")
}

func render(found any) string {
	switch v := found.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
