package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/metrics"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

// EventKind identifies a ProgressEvent.
type EventKind string

const (
	EventStep  EventKind = "step"
	EventLog   EventKind = "log"
	EventEval  EventKind = "eval"
	EventSave  EventKind = "save"
	EventEpoch EventKind = "epoch"
)

// ProgressEvent is emitted while training so callers can render progress
// and persist metrics.
type ProgressEvent struct {
	Kind         EventKind
	Epoch        int
	Step         int
	MaxSteps     int
	Loss         float64
	LearningRate float64
	Eval         *metrics.EvalResult
	Checkpoint   string
}

// Trainer owns the live model parameters during a run.
type Trainer struct {
	Args      Arguments
	Model     *model.Classifier
	Tokenizer *tokenizer.Tokenizer
	TrainSet  dataset.Split
	EvalSet   dataset.Split

	// OnProgress, when set, receives every ProgressEvent synchronously.
	OnProgress func(ProgressEvent)

	// Hardware and Software are recorded in every trainer_state.json.
	Hardware string
	Software string

	state State
}

// Result summarizes a finished or interrupted run.
type Result struct {
	GlobalStep  int
	Epochs      int
	TrainLoss   float64
	Runtime     time.Duration
	Evaluations []metrics.EvalResult
	Checkpoints []string
	State       State
}

// New validates args and returns a Trainer.
func New(args Arguments, m *model.Classifier, tok *tokenizer.Tokenizer, train, eval dataset.Split) (*Trainer, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if m == nil || tok == nil {
		return nil, errors.New("trainer needs a model and a tokenizer")
	}
	if len(train) == 0 {
		return nil, errors.New("training split is empty")
	}
	if got, want := tok.Vocab.Size(), m.Config.VocabSize; got != want {
		return nil, fmt.Errorf("tokenizer vocabulary has %d tokens, model expects %d", got, want)
	}
	if !args.Device.Equal(m.Params.Device) {
		p, err := m.Params.To(args.Device)
		if err != nil {
			return nil, err
		}
		m.Params = p
	}
	return &Trainer{Args: args, Model: m, Tokenizer: tok, TrainSet: train, EvalSet: eval}, nil
}

func (t *Trainer) emit(ev ProgressEvent) {
	if t.OnProgress != nil {
		t.OnProgress(ev)
	}
}

func stepsPerEpoch(n, bs int) int { return (n + bs - 1) / bs }

// Train runs the configured number of epochs. On context cancellation it
// stops between steps and returns the partial Result with ctx.Err();
// checkpoints already written stay on disk.
func (t *Trainer) Train(ctx context.Context) (*Result, error) {
	start := time.Now()
	a := t.Args
	perEpoch := stepsPerEpoch(len(t.TrainSet), a.TrainBatchSize)
	maxSteps := perEpoch * a.Epochs

	t.state = State{MaxSteps: maxSteps, NumTrainEpochs: a.Epochs, TrainBatchSize: a.TrainBatchSize, LoggingSteps: a.LoggingSteps, EvalSteps: a.EvalSteps, SaveSteps: a.SaveSteps, Hardware: t.Hardware, Software: t.Software}
	res := &Result{}
	opt := newAdamW(t.Model.Params, a)

	encodings := t.Tokenizer.EncodeBatch(t.TrainSet.Texts())
	targets := t.TrainSet.LabelIDs()
	logf(t.Model.Config.BaseModel, "training on %d examples, %d epochs, %d steps", len(encodings), a.Epochs, maxSteps)

	step := 0
	var lossSum float64
	var lossCount, sinceLog int
	var logLoss float64

	finish := func(err error) (*Result, error) {
		res.GlobalStep = step
		res.Runtime = time.Since(start)
		if lossCount > 0 {
			res.TrainLoss = lossSum / float64(lossCount)
		}
		t.state.GlobalStep = step
		res.State = t.state
		return res, err
	}

	for epoch := 0; epoch < a.Epochs; epoch++ {
		order := shuffledIndices(len(encodings), a.Seed+uint64(epoch))
		for b := 0; b < perEpoch; b++ {
			if err := ctx.Err(); err != nil {
				logf(t.Model.Config.BaseModel, "interrupted at step %d", step)
				return finish(err)
			}

			lo, hi := b*a.TrainBatchSize, min((b+1)*a.TrainBatchSize, len(order))
			batch := model.Batch{Device: a.Device, Labels: make([]int, 0, hi-lo)}
			for _, idx := range order[lo:hi] {
				batch.Encodings = append(batch.Encodings, encodings[idx])
				batch.Labels = append(batch.Labels, targets[idx])
			}

			_, cache, err := t.Model.Forward(batch)
			if err != nil {
				return finish(fmt.Errorf("step %d: %w", step, err))
			}
			grads, err := t.Model.Backward(cache, batch.Labels)
			if err != nil {
				return finish(fmt.Errorf("step %d: %w", step, err))
			}
			lr := linearSchedule(a.LearningRate, step, a.WarmupSteps, maxSteps)
			opt.step(t.Model.Params, grads, lr)
			step++

			lossSum += grads.Loss
			lossCount++
			logLoss += grads.Loss
			sinceLog++
			epochF := float64(epoch) + float64(b+1)/float64(perEpoch)
			t.state.Epoch = epochF
			t.emit(ProgressEvent{Kind: EventStep, Epoch: epoch + 1, Step: step, MaxSteps: maxSteps, Loss: grads.Loss, LearningRate: lr})

			if a.LoggingSteps > 0 && step%a.LoggingSteps == 0 {
				entry := LogEntry{Epoch: epochF, Step: step, Loss: logLoss / float64(sinceLog), LearningRate: lr}
				t.state.LogHistory = append(t.state.LogHistory, entry)
				t.emit(ProgressEvent{Kind: EventLog, Epoch: epoch + 1, Step: step, MaxSteps: maxSteps, Loss: entry.Loss, LearningRate: lr})
				logLoss, sinceLog = 0, 0
			}
			if a.EvalStrategy == StrategySteps && step%a.EvalSteps == 0 {
				if err := t.evaluateAndRecord(ctx, res, epochF, step, epoch+1, maxSteps); err != nil {
					return finish(err)
				}
			}
			if a.SaveStrategy == StrategySteps && step%a.SaveSteps == 0 {
				if err := t.saveAndRecord(res, step, epoch+1, maxSteps); err != nil {
					return finish(err)
				}
			}
		}

		res.Epochs = epoch + 1
		t.emit(ProgressEvent{Kind: EventEpoch, Epoch: epoch + 1, Step: step, MaxSteps: maxSteps})
		if a.EvalStrategy == StrategyEpoch {
			if err := t.evaluateAndRecord(ctx, res, float64(epoch+1), step, epoch+1, maxSteps); err != nil {
				return finish(err)
			}
		}
		if a.SaveStrategy == StrategyEpoch {
			if err := t.saveAndRecord(res, step, epoch+1, maxSteps); err != nil {
				return finish(err)
			}
		}
	}

	t.state.LogHistory = append(t.state.LogHistory, LogEntry{Epoch: float64(a.Epochs), Step: step, TrainLoss: lossSum / float64(max(lossCount, 1)), TrainRuntime: time.Since(start).Seconds()})
	return finish(nil)
}

func (t *Trainer) evaluateAndRecord(ctx context.Context, res *Result, epoch float64, step, epochNum, maxSteps int) error {
	if len(t.EvalSet) == 0 {
		return nil
	}
	r, err := t.Evaluate(ctx, t.EvalSet)
	if err != nil {
		return fmt.Errorf("evaluate at step %d: %w", step, err)
	}
	r.Split = dataset.Validation
	r.Epoch, r.Step = epoch, step
	res.Evaluations = append(res.Evaluations, r)
	t.state.LogHistory = append(t.state.LogHistory, LogEntry{Epoch: epoch, Step: step, EvalLoss: &r.Loss, EvalAccuracy: &r.Accuracy, EvalRuntime: r.Runtime.Seconds(), EvalSamples: r.Samples})
	t.state.observe(r)
	t.emit(ProgressEvent{Kind: EventEval, Epoch: epochNum, Step: step, MaxSteps: maxSteps, Eval: &r})
	return nil
}

func (t *Trainer) saveAndRecord(res *Result, step, epochNum, maxSteps int) error {
	t.state.GlobalStep = step
	prevBest := t.state.BestModelCheckpoint
	// The best checkpoint names itself in its own trainer_state.json.
	if t.state.bestStep == step {
		t.state.BestModelCheckpoint = CheckpointDir(t.Args.OutputDir, step)
	}
	dir, err := t.SaveCheckpoint(step)
	if err != nil {
		t.state.BestModelCheckpoint = prevBest
		return err
	}
	res.Checkpoints = append(res.Checkpoints, dir)
	t.emit(ProgressEvent{Kind: EventSave, Epoch: epochNum, Step: step, MaxSteps: maxSteps, Checkpoint: dir})
	return nil
}

// Evaluate scores split against a snapshot of the current parameters, so
// training can keep mutating its own copy.
func (t *Trainer) Evaluate(ctx context.Context, split dataset.Split) (metrics.EvalResult, error) {
	out, err := t.Predict(ctx, split)
	if err != nil {
		return metrics.EvalResult{}, err
	}
	return out.Metrics, nil
}

// PredictionOutput holds raw logits alongside labels and metrics.
type PredictionOutput struct {
	Logits      *mat.Dense
	LabelIDs    []int
	Predictions []int
	Metrics     metrics.EvalResult
}

// Predict runs the model over split without recording gradients.
func (t *Trainer) Predict(ctx context.Context, split dataset.Split) (*PredictionOutput, error) {
	start := time.Now()
	snap := t.Model.Snapshot()
	truth := split.LabelIDs()
	encodings := t.Tokenizer.EncodeBatch(split.Texts())
	logits := mat.NewDense(max(len(split), 1), snap.Config.NumLabels, nil)

	err := snap.NoGrad(func() error {
		bs := t.Args.EvalBatchSize
		for lo := 0; lo < len(encodings); lo += bs {
			if err := ctx.Err(); err != nil {
				return err
			}
			hi := min(lo+bs, len(encodings))
			l, _, err := snap.Forward(model.Batch{Device: t.Args.Device, Encodings: encodings[lo:hi]})
			if err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				logits.SetRow(i, l.RawRowView(i-lo))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &PredictionOutput{LabelIDs: truth}
	res := metrics.EvalResult{Samples: len(split)}
	if len(split) > 0 {
		out.Logits = logits
		out.Predictions = metrics.Argmax(logits)
		if res.Loss, err = model.Loss(logits, truth); err != nil {
			return nil, err
		}
		if res.Accuracy, err = metrics.Accuracy(out.Predictions, truth); err != nil {
			return nil, err
		}
	}
	res.Runtime = time.Since(start)
	out.Metrics = res
	logf(snap.Config.BaseModel, "evaluated %d examples: loss=%.4f accuracy=%.4f", res.Samples, res.Loss, res.Accuracy)
	return out, nil
}
