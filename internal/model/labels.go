package model

import "fmt"

// Labels maps model class indices to human-readable names. It is never
// modified after construction and is safe to share between goroutines.
type Labels struct {
	names []string
}

// NewLabels copies names so later changes to the slice cannot leak in.
func NewLabels(names []string) Labels {
	copied := make([]string, len(names))
	copy(copied, names)
	return Labels{names: copied}
}

// Name resolves a class index; unknown indices map to "class<N>".
func (l Labels) Name(classID int) string {
	if classID >= 0 && classID < len(l.names) {
		return l.names[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

// Len returns the number of known classes.
func (l Labels) Len() int {
	return len(l.names)
}
