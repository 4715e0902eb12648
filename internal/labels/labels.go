// Package labels holds the fixed six-class emotion label map.
package labels

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is an emotion class index in [0, NumLabels).
type Label int

const (
	Sadness Label = iota
	Joy
	Love
	Anger
	Fear
	Surprise
)

// NumLabels is the size of the label set.
const NumLabels = 6

// Names maps every label index to its emotion name.
var Names = [NumLabels]string{"sadness", "joy", "love", "anger", "fear", "surprise"}

// Valid reports whether l is inside the label set.
func (l Label) Valid() bool { return l >= 0 && int(l) < NumLabels }

func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("LABEL_%d", int(l))
	}
	return Names[l]
}

// Parse accepts an emotion name (case-insensitive) or its integer code.
func Parse(s string) (Label, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range Names {
		if n == s {
			return Label(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown label %q", s)
	}
	l := Label(n)
	if !l.Valid() {
		return 0, fmt.Errorf("label %d out of range [0,%d]", n, NumLabels-1)
	}
	return l, nil
}

// ID2Label returns the id→name map in the form stored in config.json.
func ID2Label() map[string]string {
	m := make(map[string]string, NumLabels)
	for i, n := range Names {
		m[strconv.Itoa(i)] = n
	}
	return m
}

// Label2ID returns the name→id map in the form stored in config.json.
func Label2ID() map[string]int {
	m := make(map[string]int, NumLabels)
	for i, n := range Names {
		m[n] = i
	}
	return m
}
