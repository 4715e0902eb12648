// Package inference classifies free-form sentences with a trained model.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/idlab-discover/emotune-cli/internal/device"
	"github.com/idlab-discover/emotune-cli/internal/metrics"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

// Prediction is the classification of one sentence.
type Prediction struct {
	Text   string    `json:"text"`
	Label  int       `json:"label"`
	Name   string    `json:"name"`
	Score  float64   `json:"score"`
	Scores []float64 `json:"scores,omitempty"`
}

// Runner encodes inputs on Device and runs the model without gradient
// bookkeeping. Inputs are never moved implicitly: a Device different from
// the model's parameters fails with device.ErrDeviceMismatch.
type Runner struct {
	Tokenizer *tokenizer.Tokenizer
	Model     *model.Classifier
	Device    device.Device
	BatchSize int
}

// NewRunner returns a runner whose inputs are placed on d.
func NewRunner(tok *tokenizer.Tokenizer, m *model.Classifier, d device.Device) *Runner {
	return &Runner{Tokenizer: tok, Model: m, Device: d, BatchSize: 32}
}

// Predict classifies every sentence in order.
func (r *Runner) Predict(ctx context.Context, sentences []string) ([]Prediction, error) {
	if r.Tokenizer == nil || r.Model == nil {
		return nil, errors.New("runner needs a tokenizer and a model")
	}
	if len(sentences) == 0 {
		return nil, nil
	}
	if err := device.Check(r.Model.Params.Device, r.Device); err != nil {
		return nil, err
	}
	bs := r.BatchSize
	if bs <= 0 {
		bs = 32
	}

	out := make([]Prediction, 0, len(sentences))
	err := r.Model.NoGrad(func() error {
		for lo := 0; lo < len(sentences); lo += bs {
			if err := ctx.Err(); err != nil {
				return err
			}
			hi := min(lo+bs, len(sentences))
			batch := model.Batch{Device: r.Device, Encodings: r.Tokenizer.EncodeBatch(sentences[lo:hi])}
			logits, _, err := r.Model.Forward(batch)
			if err != nil {
				return err
			}
			for i, id := range metrics.Argmax(logits) {
				probs := model.Softmax(logits.RawRowView(i))
				out = append(out, Prediction{
					Text:   sentences[lo+i],
					Label:  id,
					Name:   r.Model.Config.LabelName(id),
					Score:  probs[id],
					Scores: probs,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	logf(r.Model.Config.BaseModel, "classified %d sentences on %s", len(out), r.Device)
	return out, nil
}
