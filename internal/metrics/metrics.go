// Package metrics computes evaluation metrics from predictions.
package metrics

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Accuracy is the fraction of positions where pred equals truth. An empty
// input scores 0.
func Accuracy(pred, truth []int) (float64, error) {
	if len(pred) != len(truth) {
		return 0, fmt.Errorf("accuracy: %d predictions for %d labels", len(pred), len(truth))
	}
	if len(pred) == 0 {
		return 0, nil
	}
	hits := 0
	for i := range pred {
		if pred[i] == truth[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(pred)), nil
}

// Argmax returns the column index of the largest value in every row. Ties go
// to the lowest index.
func Argmax(logits mat.Matrix) []int {
	r, c := logits.Dims()
	out := make([]int, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, logits)
		out[i] = floats.MaxIdx(row)
	}
	return out
}

// EvalResult is reported after every evaluation pass.
type EvalResult struct {
	Split    string        `json:"split"`
	Loss     float64       `json:"eval_loss"`
	Accuracy float64       `json:"eval_accuracy"`
	Samples  int           `json:"eval_samples"`
	Runtime  time.Duration `json:"-"`
	Epoch    float64       `json:"epoch"`
	Step     int           `json:"step"`
}

// SamplesPerSecond is the evaluation throughput.
func (r EvalResult) SamplesPerSecond() float64 {
	if r.Runtime <= 0 {
		return 0
	}
	return float64(r.Samples) / r.Runtime.Seconds()
}

// ConfusionMatrix counts (truth, pred) pairs over n classes. Labels outside
// [0,n) are ignored.
func ConfusionMatrix(pred, truth []int, n int) (*mat.Dense, error) {
	if len(pred) != len(truth) {
		return nil, fmt.Errorf("confusion matrix: %d predictions for %d labels", len(pred), len(truth))
	}
	m := mat.NewDense(n, n, nil)
	for i := range pred {
		t, p := truth[i], pred[i]
		if t < 0 || t >= n || p < 0 || p >= n {
			continue
		}
		m.Set(t, p, m.At(t, p)+1)
	}
	return m, nil
}
