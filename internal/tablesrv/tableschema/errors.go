package tableschema

import (
	"regexp"
	"strings"
)

// ValidationError describes one problem with a table definition.
type ValidationError struct {
	Field  string
	Value  any
	ErrStr string
}

func (ve ValidationError) Error() string {
	if len(ve.Field) > 0 {
		return ve.Field + ": " + ve.ErrStr
	}
	return ve.ErrStr
}

type ValidationErrors []ValidationError

func (ves ValidationErrors) Error() string {
	parts := make([]string, 0, len(ves))
	for _, ve := range ves {
		parts = append(parts, ve.Error())
	}
	return strings.Join(parts, "; ")
}

func inQuotes(s string) string {
	return "'" + s + "'"
}

var fieldSegment = regexp.MustCompile(`^([A-Za-z]+)(\[\d+\])?$`)

// jsonPath turns a validator namespace such as "Definition.Columns[1].Name" into the
// request path "columns[1].name".
func jsonPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	for i, s := range segments {
		m := fieldSegment.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		segments[i] = lowerFirst(m[1]) + m[2]
	}
	return strings.Join(segments, ".")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
