package workout

import "fmt"

// Describe returns the human label "<Kind> on <day> <Month>" for w.
func Describe(w Workout) string {
	return fmt.Sprintf("%s on %d %s", w.Kind.Title(), w.CreatedAt.Day(), w.CreatedAt.Month())
}
