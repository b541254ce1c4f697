package gateway

import (
	"strconv"
	"strings"
)

func TeacherPath(teacherID string) string { return Join("teachers", teacherID) }

func ProfilePath(teacherID string) string { return Join("teachers", teacherID, "profile") }

func SecurityPath(teacherID string) string { return Join("teachers", teacherID, "security") }

func ChildrenPath(teacherID string) string { return Join("teachers", teacherID, "children") }

func ChildPath(teacherID, childID string) string {
	return Join("teachers", teacherID, "children", childID)
}

func ActivitiesPath(teacherID string) string { return Join("teachers", teacherID, "activities") }

func ActivityPath(teacherID, activityID string) string {
	return Join("teachers", teacherID, "activities", activityID)
}

func ProgressRootPath(teacherID, childID string) string {
	return Join("teachers", teacherID, "children", childID, "progress")
}

func ProgressPath(teacherID, childID, activityID string) string {
	return Join("teachers", teacherID, "children", childID, "progress", activityID)
}

func AnswerPath(teacherID, childID, activityID, questionID string) string {
	return Join("teachers", teacherID, "children", childID, "progress", activityID, "answers", questionID)
}

// Join builds a slash separated path. It does not validate segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Clean validates path and strips surrounding slashes.
func Clean(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if !ValidSegment(seg) {
			return "", ErrInvalidPath
		}
	}
	return path, nil
}

// ValidSegment reports whether s can be used as a single key.
func ValidSegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".#$[]/")
}

// Overlaps reports whether a change at one path can alter the value at the
// other, i.e. one is equal to or an ancestor of the other.
func Overlaps(a, b string) bool {
	return a == b || IsAncestor(a, b) || IsAncestor(b, a)
}

// IsAncestor reports whether ancestor is a strict prefix of path.
func IsAncestor(ancestor, path string) bool {
	return strings.HasPrefix(path, ancestor+"/")
}

// Ancestors lists the strict ancestors of path, nearest last.
func Ancestors(path string) []string {
	segs := strings.Split(path, "/")
	out := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }
