// Package dataset loads the labeled emotion splits from the hub, local files
// or the bundled offline sample.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/idlab-discover/emotune-cli/internal/labels"
)

// Standard split names.
const (
	Train      = "train"
	Validation = "validation"
	Test       = "test"
)

// Example is one labeled sentence.
type Example struct {
	Text  string       `json:"text"`
	Label labels.Label `json:"label"`
}

// Split is an ordered list of examples.
type Split []Example

// Texts returns the sentences of s in order.
func (s Split) Texts() []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Text
	}
	return out
}

// LabelIDs returns the integer labels of s in order.
func (s Split) LabelIDs() []int {
	out := make([]int, len(s))
	for i, e := range s {
		out[i] = int(e.Label)
	}
	return out
}

// Shuffle returns a deterministic permutation of s for seed.
func (s Split) Shuffle(seed uint64) Split {
	out := append(Split(nil), s...)
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Take returns at most the first n examples; n <= 0 keeps everything.
func (s Split) Take(n int) Split {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

// Counts returns the number of examples per label.
func (s Split) Counts() [labels.NumLabels]int {
	var c [labels.NumLabels]int
	for _, e := range s {
		if e.Label.Valid() {
			c[e.Label]++
		}
	}
	return c
}

// DatasetDict maps split names to splits.
type DatasetDict map[string]Split

// Get returns the named split or an error listing the available ones.
func (d DatasetDict) Get(name string) (Split, error) {
	s, ok := d[name]
	if !ok {
		return nil, fmt.Errorf("split %q not found (have %s)", name, strings.Join(d.Names(), ", "))
	}
	return s, nil
}

// Names lists split names, sorted.
func (d DatasetDict) Names() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every example carries a label of the six-class set.
func (d DatasetDict) Validate() error {
	for _, name := range d.Names() {
		for i, e := range d[name] {
			if !e.Label.Valid() {
				return fmt.Errorf("split %s row %d: label %d outside [0,%d)", name, i, int(e.Label), labels.NumLabels)
			}
		}
	}
	return nil
}

// Loader produces the splits of a dataset.
type Loader interface {
	Load(ctx context.Context, splits ...string) (DatasetDict, error)
}

// DefaultSplits are the splits the emotion dataset ships.
var DefaultSplits = []string{Train, Validation, Test}

type rawRow struct {
	Text  string          `json:"text"`
	Label json.RawMessage `json:"label"`
}

func (r rawRow) example() (Example, error) {
	raw := strings.TrimSpace(string(r.Label))
	if raw == "" || raw == "null" {
		return Example{}, fmt.Errorf("missing label")
	}
	var s string
	if err := json.Unmarshal(r.Label, &s); err != nil {
		s = raw
	}
	l, err := labels.Parse(s)
	if err != nil {
		return Example{}, err
	}
	return Example{Text: r.Text, Label: l}, nil
}
