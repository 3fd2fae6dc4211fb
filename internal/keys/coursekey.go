package keys

import (
	"fmt"
	"strings"
)

// CourseKey identifies one run of one course. The canonical textual form is
// "course-v1:ORG+COURSE+RUN"; the pre-split legacy form "ORG/COURSE/RUN" is
// still accepted on parse and normalized on output.
type CourseKey struct {
	Org    string
	Course string
	Run    string
}

const courseKeyPrefix = "course-v1:"

type ParseError struct {
	Input   string
	Segment string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid key %q: %s (%s)", e.Input, e.Reason, e.Segment)
}

func parseErr(input, segment, reason string) *ParseError {
	return &ParseError{Input: input, Segment: segment, Reason: reason}
}

// validID reports whether s is a non-empty identifier made of word chars plus
// "-~.:" (and "%" when percent is set, which block ids allow for historical
// escaping).
func validID(s string, percent bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '~' || r == '.' || r == ':':
		case r == '%' && percent:
		default:
			return false
		}
	}
	return true
}

func ParseCourseKey(s string) (CourseKey, error) {
	if strings.TrimSpace(s) != s || s == "" {
		return CourseKey{}, parseErr(s, "key", "leading/trailing whitespace or empty")
	}
	if rest, ok := strings.CutPrefix(s, courseKeyPrefix); ok {
		parts := strings.Split(rest, "+")
		if len(parts) != 3 {
			return CourseKey{}, parseErr(s, "key", "want ORG+COURSE+RUN")
		}
		return newCourseKey(s, parts[0], parts[1], parts[2])
	}
	// Legacy ORG/COURSE/RUN.
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return CourseKey{}, parseErr(s, "key", "not course-v1 and not ORG/COURSE/RUN")
	}
	return newCourseKey(s, parts[0], parts[1], parts[2])
}

func newCourseKey(input, org, course, run string) (CourseKey, error) {
	if !validID(org, false) {
		return CourseKey{}, parseErr(input, "org", "empty or illegal characters")
	}
	if !validID(course, false) {
		return CourseKey{}, parseErr(input, "course", "empty or illegal characters")
	}
	if !validID(run, false) {
		return CourseKey{}, parseErr(input, "run", "empty or illegal characters")
	}
	return CourseKey{Org: org, Course: course, Run: run}, nil
}

func (k CourseKey) String() string {
	return courseKeyPrefix + k.Org + "+" + k.Course + "+" + k.Run
}

func (k CourseKey) IsZero() bool {
	return k == CourseKey{}
}

// Usage builds a usage key for a block placed in this course.
func (k CourseKey) Usage(blockType, blockID string) UsageKey {
	return UsageKey{Course: k, BlockType: blockType, BlockID: blockID}
}
